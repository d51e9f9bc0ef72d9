// Package check implements the per-service-type evaluator functions,
// spec.md §4.F: Process, File, Filesystem, Host/Net, Program and System.
// Each Checker method runs one service's rule set against the current
// telemetry snapshot and posts outcomes through the event engine.
package check

import (
	"github.com/ocochard/monit/internal/clock"
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/netio"
	"github.com/ocochard/monit/internal/probe"
	"github.com/ocochard/monit/internal/sysinfo"
)

// Checker bundles the telemetry sources and the event engine a cycle's
// worth of rule evaluation is driven against.
type Checker struct {
	Processes   sysinfo.ProcessSource
	Filesystems sysinfo.FilesystemSource
	Systems     sysinfo.SystemSource
	Nets        sysinfo.NetSource
	Events      *event.Engine
	Clock       clock.Clock

	prevSamples    map[model.ID]prevSample
	lastSystem     sysinfo.SystemSample
	haveLastSystem bool
	programs       map[model.ID]*programRun

	// Cross-cycle system CPU tick deltas, feeding the cpu-user/cpu-syst/
	// cpu-wait Process resource kinds (spec.md §4.F Process step 4).
	prevSystemSample       sysinfo.SystemSample
	prevSystemAt           int64
	haveSystemTicks        bool
	systemCPUUserPercent   int64
	systemCPUSystemPercent int64
	systemCPUWaitPercent   int64
}

// Evaluate dispatches to the type-specific evaluator for svc.Type, the
// scheduler's single entry point into the check subsystem per spec.md
// §4.H's "invokes F for each eligible service".
func (c *Checker) Evaluate(svc *model.Service) []event.Outcome {
	switch svc.Type {
	case model.TypeFilesystem:
		return c.Filesystem(svc)
	case model.TypeDirectory:
		return c.Directory(svc)
	case model.TypeFile:
		return c.File(svc)
	case model.TypeProcess:
		return c.Process(svc)
	case model.TypeHost:
		return c.Host(svc)
	case model.TypeNet:
		return c.Net(svc)
	case model.TypeSystem:
		return c.System(svc)
	case model.TypeFifo:
		return c.Fifo(svc)
	case model.TypeProgram:
		return c.Program(svc)
	default:
		return nil
	}
}

// skip applies the common prelude's monitor/skip-policy gate (spec.md
// §4.F "Common prelude" steps 1-2). Callers run the type-specific body
// only when skip returns false.
func (c *Checker) skip(svc *model.Service) bool {
	if !svc.Monitor.Enabled() {
		return true
	}
	if svc.Visited {
		svc.Monitor |= model.MonitorWaiting
		return true
	}
	return false
}

func (c *Checker) post(svc *model.Service, kind model.Kind, state model.State, action model.EventAction, message string) event.Outcome {
	a := action.Failed
	if state == model.StateSucceeded {
		a = action.Succeeded
	}
	return c.Events.Post(svc, kind, state, a, message, 1, 1, 0)
}

// connectAndProbe dials a PortRule's target and runs its protocol probe,
// retrying up to rule.Retry attempts before giving up, spec.md §4.F
// Process step 6.
func connectAndProbe(rule model.PortRule, now clock.Clock) (probe.Result, error) {
	var lastErr error
	attempts := rule.Retry
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		result, err := dialAndRunOnce(rule, now)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return probe.Result{}, lastErr
}

func dialAndRunOnce(rule model.PortRule, now clock.Clock) (probe.Result, error) {
	transport := netio.TCP
	switch rule.Net {
	case "udp":
		transport = netio.UDP
	case "unix":
		transport = netio.UNIX
	}

	var tlsOpts *netio.TLSOptions
	if rule.TLS {
		tlsOpts = &netio.TLSOptions{Enabled: true}
	}

	start := clock.NowMillis(now)
	sock, err := netio.Dial(rule.Hostname, rule.Port, rule.UnixPath, transport, tlsOpts, rule.Timeout)
	if err != nil {
		return probe.Result{}, err
	}
	defer sock.Close()

	var result probe.Result
	if rule.Protocol == "HTTP" && rule.HTTP != nil {
		result, err = probe.HTTP(sock, rule.HTTP, rule.Timeout)
	} else if fn, ok := probe.Lookup(rule.Protocol); ok {
		result, err = fn(sock, rule.Timeout)
	} else {
		result, err = probe.Generic(sock, rule.SendExpect, rule.Timeout)
	}
	result.ResponseMS = clock.NowMillis(now) - start
	return result, err
}
