// Package config provides configuration file support for monitd.
//
// monitd reads one TOML file describing both daemon-wide (ambient)
// settings and the list of supervised services, in the same
// toml.DecodeFile style the teacher's config package uses, generalized
// from a handful of flat sections to the full service graph this daemon
// supervises.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ocochard/monit/internal/model"
)

// Config is the root of monitd's TOML configuration file.
type Config struct {
	Daemon  DaemonConfig    `toml:"daemon"`
	HTTPD   HTTPDConfig     `toml:"httpd"`
	Storage StorageConfig   `toml:"storage"`
	Logging LoggingConfig   `toml:"logging"`
	Mail    MailConfigSMTP  `toml:"mail"`
	Service []ServiceConfig `toml:"service"`
}

// MailConfigSMTP is the daemon-wide outgoing relay every Mail recipient's
// alert is sent through.
type MailConfigSMTP struct {
	Addr     string `toml:"addr"` // host:port
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// DaemonConfig mirrors monitrc's `set daemon` directive.
type DaemonConfig struct {
	PollSeconds   int `toml:"poll_seconds"`
	StartDelaySec int `toml:"start_delay_seconds"`
}

func (d DaemonConfig) pollInterval() time.Duration {
	if d.PollSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.PollSeconds) * time.Second
}

func (d DaemonConfig) startDelay() time.Duration {
	return time.Duration(d.StartDelaySec) * time.Second
}

// HTTPDConfig configures the control surface, spec.md §4.I.
type HTTPDConfig struct {
	Listen         string   `toml:"listen"` // host:port
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	PasswordFormat string   `toml:"password_format"` // "plain" or "bcrypt"
	Cert           string   `toml:"cert"`
	Key            string   `toml:"key"`
	AllowNetworks  []string `toml:"allow"` // CIDR ranges; empty = accept all
}

// StorageConfig names the on-disk locations monitd persists to.
type StorageConfig struct {
	Database        string `toml:"database"`         // SQLite state database path
	LegacyStatefile string `toml:"legacy_statefile"` // one-time binary v0/v1 import source
	PidFile         string `toml:"pidfile"`
}

// LoggingConfig mirrors the teacher's LoggingConfig.
type LoggingConfig struct {
	Syslog string `toml:"syslog"`
	Debug  bool   `toml:"debug"`
}

// ServiceConfig is the TOML shape of one supervised service; build()
// converts it into a *model.Service for model.NewGraph.
type ServiceConfig struct {
	Name           string   `toml:"name"`
	Type           string   `toml:"type"` // filesystem, directory, file, process, host, net, system, fifo, program
	Path           string   `toml:"path"`
	Hostname       string   `toml:"hostname"`
	Argv           []string `toml:"argv"`
	CmdlinePattern string   `toml:"cmdline_pattern"`

	Schedule ScheduleConfig `toml:"schedule"`

	Start   *CommandConfig `toml:"start"`
	Stop    *CommandConfig `toml:"stop"`
	Restart *CommandConfig `toml:"restart"`

	PermMode *int `toml:"perm_mode"`
	PermUID  *int `toml:"perm_uid"`
	PermEUID *int `toml:"perm_euid"`
	PermGID  *int `toml:"perm_gid"`

	ChecksumType   string `toml:"checksum_type"`
	ChecksumExpect string `toml:"checksum_expect"`

	// Per-kind event actions, spec.md §3: each rule carries its own
	// EventAction pair instead of always alerting.
	NonexistAction EventActionConfig `toml:"nonexist_action"`
	PidAction      EventActionConfig `toml:"pid_action"`
	PPidAction     EventActionConfig `toml:"ppid_action"`
	UidAction      EventActionConfig `toml:"uid_action"`
	EuidAction     EventActionConfig `toml:"euid_action"`
	GidAction      EventActionConfig `toml:"gid_action"`

	Port       []PortRuleConfig       `toml:"port"`
	ICMP       []ICMPRuleConfig       `toml:"icmp"`
	Resource   []ResourceRuleConfig   `toml:"resource"`
	Filesystem []FilesystemRuleConfig `toml:"filesystem_rule"`
	Content    []ContentRuleConfig    `toml:"content"`
	Ignore     []ContentRuleConfig    `toml:"ignore"`
	Program    []ProgramRuleConfig    `toml:"program_rule"`
	ActionRate []ActionRateConfig     `toml:"action_rate"`

	DependsOn []string `toml:"depends_on"`

	Recipient []MailConfig        `toml:"recipient"`
	Collector []ServiceCollectorConfig `toml:"collector"`
}

type ScheduleConfig struct {
	Kind string `toml:"kind"` // "every_cycle" (default), "every_n_cycles", "cron", "cron_not"
	N    int    `toml:"n"`
	Expr string `toml:"expr"`
}

type CommandConfig struct {
	Argv    []string `toml:"argv"`
	UID     *int     `toml:"uid"`
	GID     *int     `toml:"gid"`
	Timeout int      `toml:"timeout"`
}

type PortRuleConfig struct {
	Hostname  string            `toml:"hostname"`
	Port      int               `toml:"port"`
	UnixPath  string            `toml:"unix_path"`
	Protocol  string            `toml:"protocol"`
	Net       string            `toml:"net"`
	TLS       bool              `toml:"tls"`
	TimeoutMS int               `toml:"timeout_ms"`
	Retry     int               `toml:"retry"`
	Action    EventActionConfig `toml:"action"`
}

type ICMPRuleConfig struct {
	Count     int               `toml:"count"`
	TimeoutMS int               `toml:"timeout_ms"`
	Action    EventActionConfig `toml:"action"`
}

type ResourceRuleConfig struct {
	Kind   string            `toml:"kind"` // cpu_percent, mem_percent, mem_kbyte, children, load1, ...
	Op     string            `toml:"op"`
	Limit  int64             `toml:"limit"`
	Action EventActionConfig `toml:"action"`
}

type FilesystemRuleConfig struct {
	Kind   string            `toml:"kind"` // inode, space
	Unit   string            `toml:"unit"` // percent, absolute
	Op     string            `toml:"op"`
	Limit  int64             `toml:"limit"`
	Action EventActionConfig `toml:"action"`
}

type ContentRuleConfig struct {
	Pattern string            `toml:"pattern"`
	Negate  bool              `toml:"negate"`
	Action  EventActionConfig `toml:"action"`
}

type ProgramRuleConfig struct {
	Op       string            `toml:"op"`
	Expected int               `toml:"expected"`
	Action   EventActionConfig `toml:"action"`
}

type ActionRateConfig struct {
	Count  int    `toml:"count"`
	Cycle  int    `toml:"cycle"`
	Action string `toml:"action"`
}

type EventActionConfig struct {
	Failed    string `toml:"failed"`
	Succeeded string `toml:"succeeded"`
}

type MailConfig struct {
	To        string   `toml:"to"`
	From      string   `toml:"from"`
	ReplyTo   string   `toml:"reply_to"`
	Subject   string   `toml:"subject"`
	Message   string   `toml:"message"`
	EventMask []string `toml:"events"`
	Reminder  int      `toml:"reminder"`
}

// ServiceCollectorConfig is one per-service upstream aggregator entry.
type ServiceCollectorConfig struct {
	URL           string `toml:"url"`
	TLSSkipVerify bool   `toml:"tls_skip_verify"`
	Timeout       int    `toml:"timeout"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
}

// Load reads and parses a TOML configuration file, grounded on the
// teacher's config.Load.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: file does not exist: %s", path)
	}
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// PollInterval returns the daemon's cycle period, defaulting to 30s.
func (c *Config) PollInterval() time.Duration { return c.Daemon.pollInterval() }

// StartDelay returns the delay before the first validation cycle.
func (c *Config) StartDelay() time.Duration { return c.Daemon.startDelay() }

// BuildGraph converts every ServiceConfig into a *model.Service and
// assembles a model.Graph, resolving DependsOn by name.
func (c *Config) BuildGraph() (*model.Graph, error) {
	services := make([]*model.Service, 0, len(c.Service))
	for _, sc := range c.Service {
		svc, err := sc.build()
		if err != nil {
			return nil, fmt.Errorf("config: service %q: %w", sc.Name, err)
		}
		services = append(services, svc)
	}
	return model.NewGraph(services)
}
