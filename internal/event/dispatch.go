package event

import (
	"github.com/ocochard/monit/internal/model"
)

// AlertSink delivers one event to one mail recipient. The concrete SMTP
// transport is out of scope (spec.md Non-goals); internal/dispatch wires
// a Markdown-rendering implementation on top of it.
type AlertSink interface {
	Send(svc *model.Service, recipient model.Mail, ev model.Event) error
}

// UpstreamCollector posts one event to one configured collector.
type UpstreamCollector interface {
	Post(svc *model.Service, collector model.Collector, ev model.Event) error
}

// ActionExecutor runs a concrete service action (start/stop/restart/exec/
// monitor/unmonitor).
type ActionExecutor interface {
	Execute(svc *model.Service, action model.ActionKind) error
}

// Dispatcher wires the three handler collaborators together and owns the
// retry queue for events that could not be fully handled this cycle,
// per spec.md §4.E steps 4-6.
type Dispatcher struct {
	Alerts     AlertSink
	Collectors UpstreamCollector
	Actions    ActionExecutor
	Queue      *Queue
}

// Dispatch runs the handlers for one reportable transition. A failed
// AlertSink send keeps the HandlerAlert flag set (retried next cycle); a
// successful UpstreamCollector.Post on any collector clears HandlerMmonit,
// as does a service with no collectors configured. When both flags clear, the event is fully handled and dropped from the
// queue; otherwise it is (re-)enqueued up to the queue's capacity.
func (d *Dispatcher) Dispatch(svc *model.Service, ev model.Event) error {
	if ev.Handler&model.HandlerAlert != 0 {
		allSent := true
		for _, recipient := range svc.Recipients {
			if recipient.EventMask&ev.EventKind == 0 {
				continue
			}
			if err := d.Alerts.Send(svc, recipient, ev); err != nil {
				allSent = false
			}
		}
		if allSent {
			ev.Handler &^= model.HandlerAlert
		}
	}

	if ev.Handler&model.HandlerMmonit != 0 {
		if len(svc.Collectors) == 0 {
			ev.Handler &^= model.HandlerMmonit
		}
		for _, collector := range svc.Collectors {
			if err := d.Collectors.Post(svc, collector, ev); err == nil {
				ev.Handler &^= model.HandlerMmonit
				break
			}
		}
	}

	if ev.Action != model.ActionIgnored && d.Actions != nil {
		if err := d.Actions.Execute(svc, ev.Action); err != nil {
			return err
		}
	}

	if ev.Handler == 0 {
		d.Queue.Remove(ev.ID)
		return nil
	}
	return d.Queue.Upsert(ev)
}
