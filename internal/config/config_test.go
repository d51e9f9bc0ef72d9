package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ocochard/monit/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitd.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestLoadParsesDaemonAndServiceSections(t *testing.T) {
	path := writeConfig(t, `
[daemon]
poll_seconds = 60

[httpd]
listen = "localhost:2812"

[[service]]
name = "nginx"
type = "process"
path = "/var/run/nginx.pid"

  [service.schedule]
  kind = "every_n_cycles"
  n = 3

  [[service.resource]]
  kind = "cpu_percent"
  op = ">"
  limit = 800
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollInterval().Seconds() != 60 {
		t.Fatalf("PollInterval = %v", cfg.PollInterval())
	}
	if len(cfg.Service) != 1 || cfg.Service[0].Name != "nginx" {
		t.Fatalf("unexpected services: %+v", cfg.Service)
	}
}

func TestBuildGraphConvertsServiceConfig(t *testing.T) {
	path := writeConfig(t, `
[[service]]
name = "nginx"
type = "process"
path = "/var/run/nginx.pid"

  [[service.resource]]
  kind = "cpu_percent"
  op = ">"
  limit = 800

  [[service.port]]
  hostname = "localhost"
  port = 80
  protocol = "HTTP"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g, err := cfg.BuildGraph()
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	svc, ok := g.Lookup("nginx")
	if !ok {
		t.Fatalf("expected nginx in the graph")
	}
	if svc.Type != model.TypeProcess {
		t.Fatalf("Type = %v, want TypeProcess", svc.Type)
	}
	if len(svc.ResourceRules) != 1 || svc.ResourceRules[0].Kind != model.ResCPUPercent {
		t.Fatalf("unexpected resource rules: %+v", svc.ResourceRules)
	}
	if len(svc.PortRules) != 1 || svc.PortRules[0].Net != "tcp" {
		t.Fatalf("unexpected port rules: %+v", svc.PortRules)
	}
}

func TestBuildGraphRejectsUnknownServiceType(t *testing.T) {
	path := writeConfig(t, `
[[service]]
name = "bogus"
type = "not-a-type"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.BuildGraph(); err == nil {
		t.Fatalf("expected an error for an unknown service type")
	}
}
