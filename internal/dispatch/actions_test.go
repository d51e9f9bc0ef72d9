package dispatch

import (
	"testing"

	"github.com/ocochard/monit/internal/model"
)

func TestExecuteMonitorTogglesFlagWithoutRunningACommand(t *testing.T) {
	svc := &model.Service{Name: "svc", Monitor: model.MonitorNot}
	var exec Executor

	if err := exec.Execute(svc, model.ActionMonitor); err != nil {
		t.Fatalf("Execute(ActionMonitor): %v", err)
	}
	if svc.Monitor != model.MonitorInit {
		t.Fatalf("Monitor = %v, want MonitorInit", svc.Monitor)
	}

	if err := exec.Execute(svc, model.ActionUnmonitor); err != nil {
		t.Fatalf("Execute(ActionUnmonitor): %v", err)
	}
	if svc.Monitor != model.MonitorNot {
		t.Fatalf("Monitor = %v, want MonitorNot", svc.Monitor)
	}
}

func TestExecuteStartRunsConfiguredCommand(t *testing.T) {
	svc := &model.Service{
		Name:  "svc",
		Start: &model.Command{Argv: []string{"true"}},
	}
	var exec Executor
	if err := exec.Execute(svc, model.ActionStart); err != nil {
		t.Fatalf("Execute(ActionStart): %v", err)
	}
}

func TestExecuteRestartFallsBackToStopThenStart(t *testing.T) {
	svc := &model.Service{
		Name:  "svc",
		Stop:  &model.Command{Argv: []string{"true"}},
		Start: &model.Command{Argv: []string{"true"}},
	}
	var exec Executor
	if err := exec.Execute(svc, model.ActionRestart); err != nil {
		t.Fatalf("Execute(ActionRestart): %v", err)
	}
}

func TestExecuteStartWithNoCommandIsANoop(t *testing.T) {
	svc := &model.Service{Name: "svc"}
	var exec Executor
	if err := exec.Execute(svc, model.ActionStart); err != nil {
		t.Fatalf("Execute(ActionStart) with nil Start: %v", err)
	}
}

func TestExecuteUnsupportedActionErrors(t *testing.T) {
	svc := &model.Service{Name: "svc"}
	var exec Executor
	if err := exec.Execute(svc, model.ActionKind(99)); err == nil {
		t.Fatalf("expected an error for an unsupported action")
	}
}
