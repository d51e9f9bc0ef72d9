// Package event implements the event engine (spec.md §4.E): it turns a
// per-rule pass/fail observation into a state transition, tracks a
// 64-evaluation sliding history per (service, kind), and decides when to
// dispatch alert/collector/action handlers.
package event

import (
	"github.com/ocochard/monit/internal/model"
)

// recordKey identifies one (service, kind) event slot.
type recordKey struct {
	service model.ID
	kind    model.Kind
}

// record is the engine's private bookkeeping for one (service, kind)
// pair, separate from the model.Event the caller receives back so the
// 64-bit history survives across calls without living on the exported
// type the rest of the system passes around.
type record struct {
	stateMap    uint64
	lastSignal  model.State // last state a handler was actually dispatched for
	reminderAge int
	nextID      int64
}

// Engine owns the per-(service,kind) history records and a monotonic
// event id counter, grounded on spec.md §4.E's "lookup or allocate the
// event record keyed by (service.id, kind)".
type Engine struct {
	records map[recordKey]*record
	nextID  int64
}

// New builds an empty Engine.
func New() *Engine {
	return &Engine{records: make(map[recordKey]*record)}
}

// Outcome is what Post decides happened, for the caller (internal/check,
// internal/scheduler) to act on: dispatch handlers, run an action, or do
// nothing this cycle.
type Outcome struct {
	Event     model.Event
	Signal    bool // a handler-worthy transition occurred (first Failed, reminder due, or first Succeeded)
	Reminder  bool // this dispatch is a reminder re-send, not the initial failure
}

// Post records one rule evaluation's outcome and decides whether it
// constitutes a reportable transition, per spec.md §4.E steps 1-3.
// actionCycles/actionCount parameterize the sliding-window failure/success
// threshold (model.ActionRate's Cycle/Count, reused here per predicate);
// reminderCycles is model.Mail's shared Reminder cadence, applied while
// the predicate stays Failed.
func (e *Engine) Post(svc *model.Service, kind model.Kind, state model.State, action model.ActionKind, message string, actionCycles, actionCount, reminderCycles int) Outcome {
	key := recordKey{service: svc.ID, kind: kind}
	rec, ok := e.records[key]
	if !ok {
		rec = &record{lastSignal: model.StateInit}
		e.records[key] = rec
	}

	if state == model.StateChanged || state == model.StateChangedNot {
		return e.emit(svc, kind, state, action, message, rec, true, false)
	}

	rec.stateMap <<= 1
	if state == model.StateFailed {
		rec.stateMap |= 1
	}

	window := actionCycles
	if window <= 0 || window > 64 {
		window = 64
	}
	mask := uint64(1)<<uint(window) - 1
	if window == 64 {
		mask = ^uint64(0)
	}
	windowed := rec.stateMap & mask

	failures := popcount(windowed)
	successes := window - failures

	threshold := actionCount
	if threshold <= 0 {
		threshold = 1
	}

	switch {
	case failures >= threshold && rec.lastSignal != model.StateFailed:
		rec.lastSignal = model.StateFailed
		rec.reminderAge = 0
		return e.emit(svc, kind, model.StateFailed, action, message, rec, true, false)
	case rec.lastSignal == model.StateFailed && state == model.StateFailed:
		rec.reminderAge++
		if reminderCycles > 0 && rec.reminderAge >= reminderCycles {
			rec.reminderAge = 0
			return e.emit(svc, kind, model.StateFailed, action, message, rec, true, true)
		}
		return e.emit(svc, kind, model.StateFailed, action, message, rec, false, false)
	case successes >= threshold && rec.lastSignal != model.StateSucceeded:
		rec.lastSignal = model.StateSucceeded
		rec.reminderAge = 0
		return e.emit(svc, kind, model.StateSucceeded, action, message, rec, true, false)
	default:
		return e.emit(svc, kind, state, action, message, rec, false, false)
	}
}

func (e *Engine) emit(svc *model.Service, kind model.Kind, state model.State, action model.ActionKind, message string, rec *record, signal, reminder bool) Outcome {
	e.nextID++
	ev := model.Event{
		ID:          e.nextID,
		Service:     svc.ID,
		ServiceName: svc.Name,
		MonitorSnap: svc.Monitor,
		TypeSnap:    svc.Type,
		EventKind:   kind,
		State:       state,
		StateChanged: signal,
		StateMap:    rec.stateMap,
		Message:     message,
		Action:      action,
	}
	if signal {
		ev.Handler = model.HandlerAlert | model.HandlerMmonit
	}
	return Outcome{Event: ev, Signal: signal, Reminder: reminder}
}

func popcount(v uint64) int {
	n := 0
	for v != 0 {
		v &= v - 1
		n++
	}
	return n
}
