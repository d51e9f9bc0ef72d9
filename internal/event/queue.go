package event

import "github.com/ocochard/monit/internal/model"

// Queue persists events that still owe a handler dispatch (HandlerAlert
// or HandlerMmonit set) across cycles, spec.md §4.E step 6. The original
// implementation used one file per queued event; this port keeps a
// table-backed store instead (internal/statestore's SQLite database),
// matching the teacher's single-persistence-layer style rather than
// introducing a second on-disk format.
type Queue struct {
	capacity int
	items    map[int64]model.Event
	order    []int64
	Persist  func(model.Event) error
	Discard  func(int64) error
}

// NewQueue builds an in-memory queue capped at capacity entries; Persist
// and Discard, if set, are invoked to mirror changes to durable storage
// (wired to internal/statestore in production).
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity, items: make(map[int64]model.Event)}
}

// Upsert inserts or replaces a queued event. If the queue is at capacity
// and this is a new entry, the oldest entry is evicted first.
func (q *Queue) Upsert(ev model.Event) error {
	if _, exists := q.items[ev.ID]; !exists {
		if q.capacity > 0 && len(q.items) >= q.capacity {
			oldest := q.order[0]
			q.order = q.order[1:]
			delete(q.items, oldest)
			if q.Discard != nil {
				_ = q.Discard(oldest)
			}
		}
		q.order = append(q.order, ev.ID)
	}
	q.items[ev.ID] = ev
	if q.Persist != nil {
		return q.Persist(ev)
	}
	return nil
}

// Remove drops a fully-handled event from the queue.
func (q *Queue) Remove(id int64) {
	if _, ok := q.items[id]; !ok {
		return
	}
	delete(q.items, id)
	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	if q.Discard != nil {
		_ = q.Discard(id)
	}
}

// Pending returns every currently-queued event, oldest first, for the
// scheduler to retry on the next cycle.
func (q *Queue) Pending() []model.Event {
	out := make([]model.Event, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.items[id])
	}
	return out
}

// Len reports the current queue depth.
func (q *Queue) Len() int { return len(q.items) }
