package check

import (
	"fmt"

	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

// evalPortRule probes one PortRule with retry, spec.md §4.F Process step
// 6, and posts a Connection event.
func (c *Checker) evalPortRule(svc *model.Service, rule model.PortRule) []event.Outcome {
	result, err := connectAndProbe(rule, c.Clock)
	if err != nil {
		return []event.Outcome{c.post(svc, model.KindConnection, model.StateFailed, rule.Action, err.Error())}
	}
	msg := fmt.Sprintf("response time %dms", result.ResponseMS)
	if result.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, result.Detail)
	}
	return []event.Outcome{c.post(svc, model.KindConnection, model.StateSucceeded, rule.Action, msg)}
}

// evalICMPRule sends Count echo requests and posts Icmp Succeeded on any
// reply, Failed if all fail, spec.md §4.F "Host / Net" step 1. pingHost
// uses an unprivileged datagram ICMP socket the host may not permit; when
// it returns an error this degrades to "skipped but neutral" rather than
// a false failure, per the spec's explicit carve-out.
func (c *Checker) evalICMPRule(svc *model.Service, rule model.ICMPRule) []event.Outcome {
	ok, rtt, err := pingHost(svc.Hostname, rule.Count, rule.Timeout)
	if err != nil {
		// ICMP socket unavailable (or host unresolvable): neutral, no event.
		return nil
	}
	if !ok {
		return []event.Outcome{c.post(svc, model.KindIcmp, model.StateFailed, rule.Action, "no ICMP reply")}
	}
	return []event.Outcome{c.post(svc, model.KindIcmp, model.StateSucceeded, rule.Action, fmt.Sprintf("response time %dms", rtt))}
}
