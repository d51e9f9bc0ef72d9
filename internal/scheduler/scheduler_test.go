package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ocochard/monit/internal/check"
	"github.com/ocochard/monit/internal/clock"
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

type stubAlertSink struct{ sent int }

func (s *stubAlertSink) Send(svc *model.Service, recipient model.Mail, ev model.Event) error {
	s.sent++
	return nil
}

type stubCollector struct{}

func (stubCollector) Post(svc *model.Service, collector model.Collector, ev model.Event) error {
	return nil
}

type stubActions struct {
	executed []model.ActionKind
}

func (s *stubActions) Execute(svc *model.Service, action model.ActionKind) error {
	s.executed = append(s.executed, action)
	return nil
}

func newTestScheduler(t *testing.T, services []*model.Service) (*Scheduler, *stubActions) {
	t.Helper()
	g, err := model.NewGraph(services)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	actions := &stubActions{}
	dispatcher := &event.Dispatcher{
		Alerts:     &stubAlertSink{},
		Collectors: stubCollector{},
		Actions:    actions,
		Queue:      event.NewQueue(16),
	}
	checker := &check.Checker{Events: event.New(), Clock: clock.System}
	return New(g, checker, dispatcher, time.Minute), actions
}

func enabled(name string, typ model.Type) *model.Service {
	return &model.Service{Name: name, Type: typ, Monitor: model.MonitorYes}
}

func TestRunCycleMarksCascadeOnDependencyFailure(t *testing.T) {
	missing := enabled("db", model.TypeFile)
	missing.Path = filepath.Join(t.TempDir(), "does-not-exist")

	dir := t.TempDir()
	webPath := filepath.Join(dir, "web.conf")
	if err := os.WriteFile(webPath, []byte("ok\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	web := enabled("web", model.TypeFile)
	web.Path = webPath
	web.DependsOn = []string{"db"}

	sched, _ := newTestScheduler(t, []*model.Service{missing, web})
	sched.RunCycle()

	if !web.Visited {
		t.Fatalf("expected web to be marked Visited after db failed")
	}
	if web.Monitor&model.MonitorWaiting == 0 {
		t.Fatalf("expected web.Monitor to carry Waiting after cascade suppression")
	}
}

func TestRunCycleEveryNCyclesSkipsUntilThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.conf")
	if err := os.WriteFile(path, []byte("ok\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	svc := enabled("app", model.TypeFile)
	svc.Path = path
	svc.Schedule = model.Schedule{Kind: model.ScheduleEveryNCycles, N: 3}

	sched, _ := newTestScheduler(t, []*model.Service{svc})

	sched.RunCycle()
	if svc.NCycle != 0 {
		t.Fatalf("expected skipped cycle 1 to not advance NCycle, got %d", svc.NCycle)
	}
	sched.RunCycle()
	if svc.NCycle != 0 {
		t.Fatalf("expected skipped cycle 2 to not advance NCycle, got %d", svc.NCycle)
	}
	sched.RunCycle()
	if svc.NCycle != 1 {
		t.Fatalf("expected the 3rd cycle to admit and advance NCycle, got %d", svc.NCycle)
	}
}

func TestCheckActionRateSignalsTimeout(t *testing.T) {
	svc := enabled("flapper", model.TypeFile)
	svc.Path = "/does/not/matter"
	svc.ActionRates = []model.ActionRate{{Count: 1, Cycle: 2, Action: model.ActionRestart}}
	svc.NStart = 1
	svc.NCycle = 1

	sched, actions := newTestScheduler(t, []*model.Service{svc})
	sched.checkActionRate(svc)

	found := false
	for _, a := range actions.executed {
		if a == model.ActionRestart {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected action-rate timeout to execute a restart, got %+v", actions.executed)
	}
}

func TestDrainPendingActionsClearsPendingAndFiresAction(t *testing.T) {
	svc := enabled("worker", model.TypeFile)
	svc.Path = "/does/not/matter"
	if err := svc.SetPending(model.ActionStart); err != nil {
		t.Fatalf("SetPending: %v", err)
	}

	sched, actions := newTestScheduler(t, []*model.Service{svc})
	sched.drainPendingActions(sched.CurrentGraph())

	if svc.Pending != model.ActionIgnored {
		t.Fatalf("expected Pending cleared, got %v", svc.Pending)
	}
	if svc.NStart != 1 {
		t.Fatalf("expected NStart incremented on a drained start action, got %d", svc.NStart)
	}
	if len(actions.executed) != 1 || actions.executed[0] != model.ActionStart {
		t.Fatalf("expected one executed start action, got %+v", actions.executed)
	}
}
