package statestore

import (
	"path/filepath"
	"testing"

	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEvent(id int64) model.Event {
	return model.Event{
		ID:           id,
		CollectedAt:  1000,
		ServiceName:  "nginx",
		MonitorSnap:  model.MonitorYes,
		TypeSnap:     model.TypeProcess,
		EventKind:    model.KindNonexist,
		State:        model.StateFailed,
		StateChanged: true,
		Handler:      model.HandlerAlert,
		StateMap:     0b101,
		Count:        2,
		Message:      "process is not running",
		Action:       model.ActionAlert,
	}
}

func TestPersistEventThenLoadQueueRoundTripsEveryField(t *testing.T) {
	s := openTestStore(t)
	ev := sampleEvent(7)
	if err := s.PersistEvent(ev); err != nil {
		t.Fatalf("PersistEvent: %v", err)
	}

	q := event.NewQueue(16)
	if err := s.LoadQueue(q); err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	pending := q.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected one restored event, got %d", len(pending))
	}
	got := pending[0]
	if got != ev {
		t.Fatalf("restored event = %+v, want %+v", got, ev)
	}
}

func TestPersistEventUpsertsOnConflict(t *testing.T) {
	s := openTestStore(t)
	ev := sampleEvent(1)
	if err := s.PersistEvent(ev); err != nil {
		t.Fatalf("PersistEvent: %v", err)
	}
	ev.Count = 9
	ev.Message = "still failing"
	if err := s.PersistEvent(ev); err != nil {
		t.Fatalf("PersistEvent (update): %v", err)
	}

	q := event.NewQueue(16)
	if err := s.LoadQueue(q); err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	pending := q.Pending()
	if len(pending) != 1 || pending[0].Count != 9 || pending[0].Message != "still failing" {
		t.Fatalf("unexpected pending after upsert: %+v", pending)
	}
}

func TestDiscardEventRemovesRow(t *testing.T) {
	s := openTestStore(t)
	if err := s.PersistEvent(sampleEvent(5)); err != nil {
		t.Fatalf("PersistEvent: %v", err)
	}
	if err := s.DiscardEvent(5); err != nil {
		t.Fatalf("DiscardEvent: %v", err)
	}

	q := event.NewQueue(16)
	if err := s.LoadQueue(q); err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected an empty queue after discard, got %d entries", q.Len())
	}
}

func TestWireMirrorsUpsertAndRemoveIntoTheDatabase(t *testing.T) {
	s := openTestStore(t)
	q := event.NewQueue(16)
	s.Wire(q)

	if err := q.Upsert(sampleEvent(3)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reload := event.NewQueue(16)
	if err := s.LoadQueue(reload); err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if reload.Len() != 1 {
		t.Fatalf("expected the wired Upsert to have persisted, got %d entries", reload.Len())
	}

	q.Remove(3)
	reload2 := event.NewQueue(16)
	if err := s.LoadQueue(reload2); err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	if reload2.Len() != 0 {
		t.Fatalf("expected the wired Remove to have discarded the row, got %d entries", reload2.Len())
	}
}

func TestLoadQueueOrdersByIDAscending(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []int64{3, 1, 2} {
		if err := s.PersistEvent(sampleEvent(id)); err != nil {
			t.Fatalf("PersistEvent(%d): %v", id, err)
		}
	}

	q := event.NewQueue(16)
	if err := s.LoadQueue(q); err != nil {
		t.Fatalf("LoadQueue: %v", err)
	}
	pending := q.Pending()
	if len(pending) != 3 || pending[0].ID != 1 || pending[1].ID != 2 || pending[2].ID != 3 {
		t.Fatalf("unexpected order: %+v", pending)
	}
}
