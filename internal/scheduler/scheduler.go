// Package scheduler implements the validation loop, spec.md §4.H: one
// ticker-driven goroutine that refreshes system-wide telemetry, walks the
// service graph in dependency order, invokes the check subsystem per
// eligible service, posts reportable transitions to the event dispatcher,
// enforces action-rate timeouts, and drains pending control-surface
// actions. It plays the role cmonit's main() loop plays for the collector
// HTTP server: a single long-running goroutine woken by a channel.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ocochard/monit/internal/check"
	"github.com/ocochard/monit/internal/clock"
	"github.com/ocochard/monit/internal/depgraph"
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

// Scheduler owns one validation loop over a service Graph.
type Scheduler struct {
	// Graph must not be read or written directly once Run has started;
	// use CurrentGraph/SetGraph, which serialize access through mu so a
	// SIGHUP config reload (spec.md §5, §9 "Global mutable state") can
	// swap in a freshly parsed graph without racing a running cycle.
	Graph      *model.Graph
	Checker    *check.Checker
	Dispatcher *event.Dispatcher
	Clock      clock.Clock

	// PollInterval is the cycle period (monit.conf's `set daemon N`).
	PollInterval time.Duration
	// StartDelay defers the first cycle, spec.md §4.H.
	StartDelay time.Duration

	// wake preempts the poll sleep; the control surface (internal/httpd)
	// sends on it in response to a "validate" action or POST wake request.
	wake chan struct{}
	// doAction, when true, tells the next cycle to drain pending
	// per-service actions before running its normal checks (spec.md
	// §4.H.4). The control surface sets it when a POST action lands.
	doAction bool

	mu sync.Mutex // guards Graph
}

// New builds a Scheduler with a buffered wake channel, matching the
// "single preemptible sleep" suspension point of spec.md §5.
func New(g *model.Graph, checker *check.Checker, dispatcher *event.Dispatcher, pollInterval time.Duration) *Scheduler {
	return &Scheduler{
		Graph:        g,
		Checker:      checker,
		Dispatcher:   dispatcher,
		Clock:        clock.System,
		PollInterval: pollInterval,
		wake:         make(chan struct{}, 1),
	}
}

// Wake preempts the current sleep and requests an immediate cycle. Safe to
// call from the control surface's goroutine.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default: // a wake is already pending; coalesce
	}
}

// CurrentGraph returns the Graph in effect for the next cycle. Safe to
// call concurrently with Run.
func (s *Scheduler) CurrentGraph() *model.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Graph
}

// SetGraph atomically swaps in a freshly built Graph, spec.md §5's SIGHUP
// reload path: the cycle in progress, if any, already captured its own
// Graph reference at the top of RunCycle, so the swap only takes effect
// starting with the next cycle.
func (s *Scheduler) SetGraph(g *model.Graph) {
	s.mu.Lock()
	s.Graph = g
	s.mu.Unlock()
}

// RequestActionDrain marks the next cycle to run the pending-action drain
// pass before its normal checks, spec.md §4.H.4. The control surface calls
// this when it accepts a POST action for a service.
func (s *Scheduler) RequestActionDrain() {
	s.doAction = true
	s.Wake()
}

// Run blocks, executing one validation cycle every PollInterval (after an
// initial StartDelay), until ctx is cancelled. A pending Wake() preempts
// the sleep and runs a cycle immediately.
func (s *Scheduler) Run(ctx context.Context) {
	if s.StartDelay > 0 {
		select {
		case <-time.After(s.StartDelay):
		case <-ctx.Done():
			return
		}
	}

	for {
		s.RunCycle()

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-time.After(s.PollInterval):
		}
	}
}

// RunCycle executes one complete validation iteration, spec.md §4.H: reset
// cascade-visited flags, drain pending actions if requested, evaluate
// services in dependency order applying the skip policy and cascade
// suppression, enforce action-rate timeouts, and dispatch any reportable
// transitions.
func (s *Scheduler) RunCycle() {
	g := s.CurrentGraph()
	depgraph.ResetVisited(g)

	if s.doAction {
		s.doAction = false
		s.drainPendingActions(g)
	}

	order, err := depgraph.Order(g)
	if err != nil {
		log.Printf("[ERROR] scheduler: %v", err)
		order = g.ConfigOrder() // degrade to configuration order rather than stall the cycle
	}

	now := s.Clock.Now()
	for _, id := range order {
		svc := g.Get(id)
		s.evaluateService(g, svc, now)
	}
}

// evaluateService applies the common admission checks (schedule, cascade
// suppression) and, if admitted, runs the check subsystem and dispatches
// any reportable outcomes.
func (s *Scheduler) evaluateService(g *model.Graph, svc *model.Service, now time.Time) {
	if !svc.Monitor.Enabled() {
		return
	}
	if svc.Visited {
		svc.Monitor |= model.MonitorWaiting
		return
	}
	if !svc.Schedule.Admit(now) {
		svc.Monitor |= model.MonitorWaiting
		return
	}
	svc.Monitor &^= model.MonitorWaiting

	s.checkActionRate(svc)

	svc.NCycle++
	outcomes := s.Checker.Evaluate(svc)

	failed := false
	for _, outcome := range outcomes {
		if outcome.Event.EventKind != model.KindConnection && outcome.Event.EventKind != model.KindNonexist {
			continue
		}
		if outcome.Event.State == model.StateFailed {
			failed = true
		}
	}
	if failed {
		depgraph.MarkCascade(g, svc.ID)
	}

	s.dispatchOutcomes(svc, outcomes)
}

// dispatchOutcomes hands every signal-worthy outcome to the Dispatcher,
// spec.md §4.E steps 4-6.
func (s *Scheduler) dispatchOutcomes(svc *model.Service, outcomes []event.Outcome) {
	for _, outcome := range outcomes {
		if !outcome.Signal {
			continue
		}
		if err := s.Dispatcher.Dispatch(svc, outcome.Event); err != nil {
			log.Printf("[WARN] scheduler: dispatch %s/%s: %v", svc.Name, outcome.Event.EventKind, err)
		}
	}
}

// checkActionRate evaluates each {count, cycle, action} restart-storm
// guard, spec.md §4.H.3: nstart >= count within the last `cycle` checks
// raises a Timeout event; once ncycle exceeds every rule's cycle window,
// both counters reset.
func (s *Scheduler) checkActionRate(svc *model.Service) {
	if len(svc.ActionRates) == 0 {
		return
	}
	maxCycle := 0
	for _, rate := range svc.ActionRates {
		if rate.Cycle > maxCycle {
			maxCycle = rate.Cycle
		}
		if svc.NStart >= rate.Count && svc.NCycle <= rate.Cycle {
			outcome := s.Checker.Events.Post(svc, model.KindTimeout, model.StateFailed, rate.Action,
				"action-rate threshold reached", 1, 1, 0)
			s.dispatchOutcomes(svc, []event.Outcome{outcome})
		}
	}
	if svc.NCycle > maxCycle {
		svc.NStart = 0
		svc.NCycle = 0
	}
}

// drainPendingActions executes every service's pending action, clearing it
// and firing an Action event, spec.md §4.H.4.
func (s *Scheduler) drainPendingActions(g *model.Graph) {
	for _, svc := range g.All() {
		svc.Lock()
		pending := svc.Pending
		svc.Unlock()
		if pending == model.ActionIgnored {
			continue
		}
		if pending == model.ActionStart {
			svc.NStart++
		}
		if err := s.Dispatcher.Actions.Execute(svc, pending); err != nil {
			log.Printf("[WARN] scheduler: execute pending action %s on %s: %v", pending, svc.Name, err)
		}
		// Action is already ActionIgnored on the posted event: Execute ran
		// above, and Dispatcher.Dispatch would otherwise run it a second
		// time via its own ev.Action != ActionIgnored branch.
		outcome := s.Checker.Events.Post(svc, model.KindAction, model.StateSucceeded, model.ActionIgnored,
			fmt.Sprintf("%s executed", pending), 1, 1, 0)
		s.dispatchOutcomes(svc, []event.Outcome{outcome})
		svc.ClearPending()
	}
}
