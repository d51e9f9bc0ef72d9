package statestore

import (
	"fmt"

	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

// Wire installs this Store's Persist/Discard callbacks onto q, so every
// Upsert/Remove the event engine performs is mirrored into event_queue
// (spec.md §4.E step 6), and returns the queue for chaining.
func (s *Store) Wire(q *event.Queue) *event.Queue {
	q.Persist = s.PersistEvent
	q.Discard = s.DiscardEvent
	return q
}

// PersistEvent upserts one queued event's full record, grounded on the
// same insert-or-replace idiom Save uses for service_state.
func (s *Store) PersistEvent(ev model.Event) error {
	_, err := s.db.Exec(`
		INSERT INTO event_queue (id, service, monitor_snap, type_snap, kind, state, state_changed, handler, state_map, count, message, action, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			service=excluded.service, monitor_snap=excluded.monitor_snap, type_snap=excluded.type_snap,
			kind=excluded.kind, state=excluded.state, state_changed=excluded.state_changed,
			handler=excluded.handler, state_map=excluded.state_map, count=excluded.count,
			message=excluded.message, action=excluded.action, collected_at=excluded.collected_at`,
		ev.ID, ev.ServiceName, int(ev.MonitorSnap), int(ev.TypeSnap), int(ev.EventKind), int(ev.State),
		boolToInt(ev.StateChanged), int(ev.Handler), ev.StateMap, ev.Count, ev.Message, int(ev.Action), ev.CollectedAt)
	if err != nil {
		return fmt.Errorf("statestore: persist event %d: %w", ev.ID, err)
	}
	return nil
}

// DiscardEvent drops a fully-handled event from the durable queue.
func (s *Store) DiscardEvent(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM event_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("statestore: discard event %d: %w", id, err)
	}
	return nil
}

// LoadQueue restores every previously-queued event into q, so events that
// still owed a handler dispatch when the process last stopped are retried
// on the first cycle after restart. Call this before Wire: Upsert would
// otherwise immediately re-persist every restored row back through q.Persist.
func (s *Store) LoadQueue(q *event.Queue) error {
	rows, err := s.db.Query(`
		SELECT id, service, monitor_snap, type_snap, kind, state, state_changed, handler, state_map, count, message, action, collected_at
		FROM event_queue ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("statestore: load queue: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev model.Event
		var monitorSnap, typeSnap, kind, state, handler, action int
		var stateChanged int
		if err := rows.Scan(&ev.ID, &ev.ServiceName, &monitorSnap, &typeSnap, &kind, &state, &stateChanged,
			&handler, &ev.StateMap, &ev.Count, &ev.Message, &action, &ev.CollectedAt); err != nil {
			return fmt.Errorf("statestore: load queue: scan: %w", err)
		}
		ev.MonitorSnap = model.Monitor(monitorSnap)
		ev.TypeSnap = model.Type(typeSnap)
		ev.EventKind = model.Kind(kind)
		ev.State = model.State(state)
		ev.StateChanged = stateChanged != 0
		ev.Handler = model.HandlerFlag(handler)
		ev.Action = model.ActionKind(action)

		if err := q.Upsert(ev); err != nil {
			return fmt.Errorf("statestore: load queue: upsert event %d: %w", ev.ID, err)
		}
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
