// Package dispatch wires the event engine's three handler collaborators
// (internal/event.AlertSink, UpstreamCollector, ActionExecutor) to
// concrete transports: SMTP mail, an HTTP collector client, and local
// process control, spec.md §4.G.
package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/ocochard/monit/internal/model"
)

// Executor runs a Service's configured lifecycle Commands, the local
// counterpart to the teacher's remote MonitClient.ExecuteAction: instead
// of POSTing to a running Monit agent's control API, it is the agent.
type Executor struct{}

// Execute satisfies event.ActionExecutor, spec.md §4.H.4 / §4.G.
func (Executor) Execute(svc *model.Service, action model.ActionKind) error {
	switch action {
	case model.ActionStart:
		return runCommand(svc.Start)
	case model.ActionStop:
		return runCommand(svc.Stop)
	case model.ActionRestart:
		if svc.Restart != nil {
			return runCommand(svc.Restart)
		}
		if err := runCommand(svc.Stop); err != nil {
			return err
		}
		return runCommand(svc.Start)
	case model.ActionMonitor:
		svc.Monitor = model.MonitorInit
		return nil
	case model.ActionUnmonitor:
		svc.Monitor = model.MonitorNot
		return nil
	case model.ActionExec, model.ActionAlert, model.ActionIgnored:
		return nil
	default:
		return fmt.Errorf("dispatch: unsupported action %s", action)
	}
}

// runCommand launches cmd and waits up to its Timeout, killing it on
// expiry.
func runCommand(cmd *model.Command) error {
	if cmd == nil || len(cmd.Argv) == 0 {
		return nil
	}
	timeout := time.Duration(cmd.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	if cmd.UID != nil || cmd.GID != nil {
		cred := &syscall.Credential{}
		if cmd.UID != nil {
			cred.Uid = uint32(*cmd.UID)
		}
		if cmd.GID != nil {
			cred.Gid = uint32(*cmd.GID)
		}
		c.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	if err := c.Run(); err != nil {
		return fmt.Errorf("dispatch: run %v: %w", cmd.Argv, err)
	}
	return nil
}
