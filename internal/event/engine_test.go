package event

import (
	"testing"

	"github.com/ocochard/monit/internal/model"
)

func newTestService(name string) *model.Service {
	return &model.Service{Name: name, Type: model.TypeProcess}
}

func TestPostSignalsFailedAfterThreshold(t *testing.T) {
	e := New()
	svc := newTestService("nginx")

	// actionCount=2: the second consecutive failure within a 2-cycle
	// window should be the one that signals.
	out := e.Post(svc, model.KindConnection, model.StateFailed, model.ActionAlert, "connection refused", 2, 2, 0)
	if out.Signal {
		t.Fatalf("expected no signal on first failure")
	}
	out = e.Post(svc, model.KindConnection, model.StateFailed, model.ActionAlert, "connection refused", 2, 2, 0)
	if !out.Signal {
		t.Fatalf("expected signal on second failure within window")
	}
	if out.Event.State != model.StateFailed {
		t.Fatalf("expected Failed state, got %v", out.Event.State)
	}

	// A further failure should not re-signal (already latched Failed).
	out = e.Post(svc, model.KindConnection, model.StateFailed, model.ActionAlert, "connection refused", 2, 2, 0)
	if out.Signal {
		t.Fatalf("expected no re-signal while still failed without reminder due")
	}
}

func TestPostSignalsRecoveryAndReminder(t *testing.T) {
	e := New()
	svc := newTestService("nginx")

	e.Post(svc, model.KindConnection, model.StateFailed, model.ActionAlert, "down", 1, 1, 2)
	out := e.Post(svc, model.KindConnection, model.StateFailed, model.ActionAlert, "still down", 1, 1, 2)
	if out.Signal {
		t.Fatalf("no reminder due yet (age 1 < 2)")
	}
	out = e.Post(svc, model.KindConnection, model.StateFailed, model.ActionAlert, "still down", 1, 1, 2)
	if !out.Signal || !out.Reminder {
		t.Fatalf("expected reminder re-signal at age 2, got signal=%v reminder=%v", out.Signal, out.Reminder)
	}

	out = e.Post(svc, model.KindConnection, model.StateSucceeded, model.ActionAlert, "up", 1, 1, 2)
	if !out.Signal || out.Event.State != model.StateSucceeded {
		t.Fatalf("expected recovery signal, got %+v", out)
	}
}

func TestPostChangedPassesThrough(t *testing.T) {
	e := New()
	svc := newTestService("webapp")
	out := e.Post(svc, model.KindSize, model.StateChanged, model.ActionIgnored, "size changed", 1, 1, 0)
	if !out.Signal || out.Event.State != model.StateChanged {
		t.Fatalf("expected Changed to pass through as a signal, got %+v", out)
	}
}

func TestQueueCapacityEviction(t *testing.T) {
	q := NewQueue(2)
	q.Upsert(model.Event{ID: 1})
	q.Upsert(model.Event{ID: 2})
	q.Upsert(model.Event{ID: 3})
	if q.Len() != 2 {
		t.Fatalf("expected capacity-capped length 2, got %d", q.Len())
	}
	pending := q.Pending()
	if pending[0].ID != 2 || pending[1].ID != 3 {
		t.Fatalf("expected oldest evicted, got %+v", pending)
	}
}

func TestDispatchClearsHandledFlags(t *testing.T) {
	svc := newTestService("db")
	svc.Recipients = []model.Mail{{To: "ops@example.com", EventMask: model.KindAll}}
	d := &Dispatcher{
		Alerts:     stubAlertSink{},
		Collectors: stubCollector{},
		Queue:      NewQueue(10),
	}
	ev := model.Event{ID: 1, EventKind: model.KindConnection, Handler: model.HandlerAlert | model.HandlerMmonit}
	if err := d.Dispatch(svc, ev); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if d.Queue.Len() != 0 {
		t.Fatalf("expected fully-handled event to be dropped from queue")
	}
}

type stubAlertSink struct{}

func (stubAlertSink) Send(svc *model.Service, recipient model.Mail, ev model.Event) error { return nil }

type stubCollector struct{}

func (stubCollector) Post(svc *model.Service, collector model.Collector, ev model.Event) error {
	return nil
}
