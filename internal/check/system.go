package check

import (
	"fmt"

	"github.com/ocochard/monit/internal/clock"
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/sysinfo"
)

// System evaluates a System service, spec.md §4.F "System": host-wide
// resource rules against the cycle-wide system snapshot. Sampling the
// snapshot (rather than evaluating it) is also where the Checker caches
// the totals Process resource rules need for percent-of-total
// comparisons.
func (c *Checker) System(svc *model.Service) []event.Outcome {
	sample, err := c.Systems.Sample()
	if err != nil {
		return []event.Outcome{c.post(svc, model.KindData, model.StateFailed, model.DefaultEventAction(), err.Error())}
	}

	now := clock.NowMillis(c.Clock)
	if c.haveSystemTicks {
		deltaSeconds := float64(now-c.prevSystemAt) / 1000.0
		c.systemCPUUserPercent = sysinfo.CPUPercent(c.prevSystemSample.CPUUserTicks, sample.CPUUserTicks, deltaSeconds, sysinfo.ClockTicksPerSec)
		c.systemCPUSystemPercent = sysinfo.CPUPercent(c.prevSystemSample.CPUSystemTicks, sample.CPUSystemTicks, deltaSeconds, sysinfo.ClockTicksPerSec)
		c.systemCPUWaitPercent = sysinfo.CPUPercent(c.prevSystemSample.CPUWaitTicks, sample.CPUWaitTicks, deltaSeconds, sysinfo.ClockTicksPerSec)
	}
	c.prevSystemSample = sample
	c.prevSystemAt = now
	c.haveSystemTicks = true

	c.lastSystem = sample
	c.haveLastSystem = true

	if c.skip(svc) {
		return nil
	}

	info := &model.SystemInfo{
		Load1: sample.Load1, Load5: sample.Load5, Load15: sample.Load15,
		MemKbyte: sample.MemKbyte, SwapKbyte: sample.SwapKbyte,
		MemPercent:  sysinfo.MemPercent(sample.MemKbyte, sample.MemTotalKbyte),
		SwapPercent: sysinfo.MemPercent(sample.SwapKbyte, sample.SwapTotal),
	}
	svc.Info = info

	var out []event.Outcome
	for _, rule := range svc.ResourceRules {
		observed := systemResourceValue(rule.Kind, sample, info)
		state := model.StateSucceeded
		if rule.Op.Match(observed, float64(rule.Limit)) {
			state = model.StateFailed
		}
		out = append(out, c.post(svc, model.KindResource, state, rule.Action, fmt.Sprintf("system resource kind %d: observed %.1f, limit %d", rule.Kind, observed, rule.Limit)))
	}
	return out
}

func systemResourceValue(kind model.ResourceKind, sample sysinfo.SystemSample, info *model.SystemInfo) float64 {
	switch kind {
	case model.ResLoad1:
		return sample.Load1
	case model.ResLoad5:
		return sample.Load5
	case model.ResLoad15:
		return sample.Load15
	case model.ResTotalMemPercent:
		return float64(info.MemPercent)
	case model.ResTotalMemKbyte:
		return float64(sample.MemKbyte)
	default:
		return 0
	}
}
