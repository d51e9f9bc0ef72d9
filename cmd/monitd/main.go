// Command monitd is the supervision daemon: it loads a TOML service
// graph, runs the validation loop (internal/scheduler) against it, and
// exposes the control surface (internal/httpd) over HTTP(S), grounded on
// cmonit's cmd/cmonit/main.go flag/signal/pidfile wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/syslog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ocochard/monit/internal/check"
	"github.com/ocochard/monit/internal/clock"
	"github.com/ocochard/monit/internal/config"
	"github.com/ocochard/monit/internal/dispatch"
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/httpd"
	"github.com/ocochard/monit/internal/scheduler"
	"github.com/ocochard/monit/internal/statestore"
	"github.com/ocochard/monit/internal/statusxml"
	"github.com/ocochard/monit/internal/sysinfo"
)

func main() {
	configFile := flag.String("config", "/etc/monitd/monitd.toml", "Configuration file path (TOML)")
	listen := flag.String("listen", "", "Control surface listen address (overrides config httpd.listen)")
	hashPassword := flag.String("hash-password", "", "Generate a bcrypt hash for the given password and exit")
	pidFile := flag.String("pidfile", "", "PID file path (overrides config storage.pidfile)")
	logFile := flag.String("logfile", "", "Log file path served by the control surface's /_viewlog route")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashPassword), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error generating bcrypt hash: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s\n", hash)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[FATAL] monitd: %v", err)
	}

	if cfg.Logging.Syslog != "" {
		priority, err := parseSyslogFacility(cfg.Logging.Syslog)
		if err != nil {
			log.Fatalf("[FATAL] monitd: %v", err)
		}
		writer, err := syslog.New(priority, "monitd")
		if err != nil {
			log.Fatalf("[FATAL] monitd: connect syslog: %v", err)
		}
		log.SetOutput(writer)
		log.SetFlags(0)
	}

	pidPath := cfg.Storage.PidFile
	if *pidFile != "" {
		pidPath = *pidFile
	}
	if pidPath != "" {
		if err := os.MkdirAll(filepath.Dir(pidPath), 0755); err != nil {
			log.Fatalf("[FATAL] monitd: create pidfile directory: %v", err)
		}
		if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
			log.Fatalf("[FATAL] monitd: write pidfile: %v", err)
		}
		defer os.Remove(pidPath)
	}

	graph, err := cfg.BuildGraph()
	if err != nil {
		log.Fatalf("[FATAL] monitd: build service graph: %v", err)
	}
	log.Printf("[INFO] monitd: loaded %d services from %s", len(graph.All()), *configFile)

	if cfg.Storage.Database == "" {
		log.Fatalf("[FATAL] monitd: storage.database is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Database), 0755); err != nil {
		log.Fatalf("[FATAL] monitd: create database directory: %v", err)
	}
	store, err := statestore.Open(cfg.Storage.Database)
	if err != nil {
		log.Fatalf("[FATAL] monitd: %v", err)
	}
	defer store.Close()

	if cfg.Storage.LegacyStatefile != "" {
		if err := statestore.ImportLegacyStatefile(cfg.Storage.LegacyStatefile, graph); err != nil {
			log.Printf("[WARNING] monitd: legacy statefile import: %v", err)
		}
	}
	if err := store.Load(graph); err != nil {
		log.Printf("[WARNING] monitd: state load: %v", err)
	}

	checker := &check.Checker{
		Processes:   sysinfo.LinuxProcessSource{},
		Filesystems: sysinfo.LinuxFilesystemSource{},
		Systems:     sysinfo.LinuxSystemSource{},
		Nets:        sysinfo.LinuxNetSource{},
		Events:      event.New(),
		Clock:       clock.System,
	}

	queue := event.NewQueue(1024)
	if err := store.LoadQueue(queue); err != nil {
		log.Printf("[WARNING] monitd: event queue load: %v", err)
	}
	store.Wire(queue)

	started := time.Now()
	dispatcher := &event.Dispatcher{
		Alerts:  dispatch.NewMailer(dispatch.SMTPConfig(cfg.Mail)),
		Actions: dispatch.Executor{},
		Queue:   queue,
	}

	sched := scheduler.New(graph, checker, dispatcher, cfg.PollInterval())
	sched.StartDelay = cfg.StartDelay()

	dispatcher.Collectors = &dispatch.CollectorClient{
		Snapshot: func() *statusxml.Document {
			uptime := int64(time.Since(started).Seconds())
			// sched.CurrentGraph, not graph: a SIGHUP reload swaps the
			// scheduler onto a new Graph, and the collector snapshot should
			// reflect whichever one is currently in effect.
			return statusxml.Build(sched.CurrentGraph(), hostnameOrEmpty(), "1", hostnameOrEmpty(), started.Unix(), uptime, int(cfg.PollInterval().Seconds()))
		},
	}

	addr := cfg.HTTPD.Listen
	if *listen != "" {
		addr = *listen
	}

	var acl []*net.IPNet
	for _, cidr := range cfg.HTTPD.AllowNetworks {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Fatalf("[FATAL] monitd: httpd.allow %q: %v", cidr, err)
		}
		acl = append(acl, network)
	}

	auth := httpd.Auth{
		Username: cfg.HTTPD.User,
		Password: cfg.HTTPD.Password,
		Format:   httpd.PasswordFormat(cfg.HTTPD.PasswordFormat),
	}
	server := httpd.New(graph, sched, auth)
	server.ACL = acl
	server.TLSCert = cfg.HTTPD.Cert
	server.TLSKey = cfg.HTTPD.Key
	server.Hostname = hostnameOrEmpty()
	server.Version = "1"
	server.LogPath = *logFile

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	if addr != "" {
		go func() {
			if err := server.ListenAndServe(addr); err != nil {
				log.Fatalf("[FATAL] monitd: control surface: %v", err)
			}
		}()
		log.Printf("[INFO] monitd: control surface listening on %s", addr)
	} else {
		log.Printf("[WARNING] monitd: httpd.listen is empty, control surface disabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	for sig := range quit {
		switch sig {
		case syscall.SIGUSR1:
			log.Printf("[INFO] monitd: SIGUSR1 received, waking validation loop")
			sched.Wake()
			continue
		case syscall.SIGHUP:
			reloadConfig(*configFile, sched, store)
			continue
		}
		break
	}

	log.Printf("[INFO] monitd: shutdown signal received")
	cancel()
	if err := store.Save(sched.CurrentGraph()); err != nil {
		log.Printf("[WARNING] monitd: state save: %v", err)
	}
	log.Printf("[INFO] monitd: stopped")
}

// reloadConfig implements spec.md §5's SIGHUP reload path: re-parse the
// configuration file, build a fresh service graph, restore its durable
// state from the statestore the same way startup does, then swap it into
// sched. Scheduler.SetGraph takes the scheduler's own mutex, so the swap
// never lands mid-cycle; the running cycle, if any, keeps evaluating the
// graph it already captured and the new one takes effect on the next one.
func reloadConfig(configFile string, sched *scheduler.Scheduler, store *statestore.Store) {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Printf("[WARNING] monitd: SIGHUP reload: %v", err)
		return
	}
	graph, err := cfg.BuildGraph()
	if err != nil {
		log.Printf("[WARNING] monitd: SIGHUP reload: build service graph: %v", err)
		return
	}
	if err := store.Load(graph); err != nil {
		log.Printf("[WARNING] monitd: SIGHUP reload: state load: %v", err)
	}
	sched.SetGraph(graph)
	log.Printf("[INFO] monitd: SIGHUP received, reloaded %d services from %s", len(graph.All()), configFile)
}

func hostnameOrEmpty() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

func parseSyslogFacility(facility string) (syslog.Priority, error) {
	facilities := map[string]syslog.Priority{
		"daemon": syslog.LOG_DAEMON | syslog.LOG_INFO,
		"local0": syslog.LOG_LOCAL0 | syslog.LOG_INFO,
		"local1": syslog.LOG_LOCAL1 | syslog.LOG_INFO,
		"local2": syslog.LOG_LOCAL2 | syslog.LOG_INFO,
		"local3": syslog.LOG_LOCAL3 | syslog.LOG_INFO,
		"local4": syslog.LOG_LOCAL4 | syslog.LOG_INFO,
		"local5": syslog.LOG_LOCAL5 | syslog.LOG_INFO,
		"local6": syslog.LOG_LOCAL6 | syslog.LOG_INFO,
		"local7": syslog.LOG_LOCAL7 | syslog.LOG_INFO,
	}
	priority, ok := facilities[strings.ToLower(facility)]
	if !ok {
		return 0, fmt.Errorf("unknown syslog facility %q, supported: daemon, local0-local7", facility)
	}
	return priority, nil
}
