package check

import (
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

// Host evaluates a Host or Net service, spec.md §4.F "Host / Net": ICMP
// checks, then port checks unless the last ICMP attempt was unavailable.
func (c *Checker) Host(svc *model.Service) []event.Outcome {
	if c.skip(svc) {
		return nil
	}
	var out []event.Outcome
	icmpUnavailable := false

	for _, rule := range svc.ICMPRules {
		results := c.evalICMPRule(svc, rule)
		icmpUnavailable = len(results) == 0
		out = append(out, results...)
	}

	if icmpUnavailable && len(svc.ICMPRules) > 0 {
		return out // skip port checks this cycle
	}

	for _, rule := range svc.PortRules {
		out = append(out, c.evalPortRule(svc, rule)...)
	}
	return out
}

// Net is an alias for Host: Net services share the same evaluation body
// (ICMP then port rules), spec.md §4.F "Host / Net".
func (c *Checker) Net(svc *model.Service) []event.Outcome {
	return c.Host(svc)
}
