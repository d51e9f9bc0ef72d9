package check

import (
	"fmt"

	"github.com/ocochard/monit/internal/clock"
	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/sysinfo"
)

// prevSample remembers the previous cycle's raw telemetry for one
// process, needed to derive CPU-percent deltas (spec.md §4.F Process
// step 4's resource rules) without polluting model.ProcessInfo with
// sysinfo-specific raw tick counters.
type prevSample struct {
	sysinfo.ProcessSample
	at int64 // millis
}

// Process evaluates a Process service, spec.md §4.F "Process": pid
// acquisition, process-record deltas, resource rules, then port/icmp
// probes with a startup grace period.
func (c *Checker) Process(svc *model.Service) []event.Outcome {
	if c.skip(svc) {
		return nil
	}
	var out []event.Outcome

	pid, err := c.Processes.PIDOf(svc.Path, svc.CmdlinePattern)
	if err != nil || pid == 0 {
		out = append(out, c.post(svc, model.KindNonexist, model.StateFailed, svc.NonexistAction.OrDefault(), "process not found"))
		return out
	}
	out = append(out, c.post(svc, model.KindNonexist, model.StateSucceeded, svc.NonexistAction.OrDefault(), "process found"))

	prevInfo, _ := svc.Info.(*model.ProcessInfo)
	sample, err := c.Processes.Sample(pid)
	if err != nil {
		out = append(out, c.post(svc, model.KindData, model.StateFailed, model.DefaultEventAction(), err.Error()))
		return out
	}

	if c.prevSamples == nil {
		c.prevSamples = map[model.ID]prevSample{}
	}
	prev, hadPrev := c.prevSamples[svc.ID]
	now := clock.NowMillis(c.Clock)
	c.prevSamples[svc.ID] = prevSample{ProcessSample: sample, at: now}

	info := &model.ProcessInfo{
		PID: sample.PID, PPID: sample.PPID,
		UID: sample.UID, EUID: sample.EUID, GID: sample.GID,
		Zombie: sample.Zombie, Children: sample.Children,
		MemKbyte: sample.MemKbyte, Uptime: sample.Uptime,
	}
	if hadPrev {
		info.PrevPID = prev.PID
		info.PrevPPID = prev.PPID
		deltaSeconds := float64(now-prev.at) / 1000.0
		info.CPUPercent = sysinfo.CPUPercent(prev.CPUTicks, sample.CPUTicks, deltaSeconds, sysinfo.ClockTicksPerSec)
		info.CPUPercentTotal = sysinfo.CPUPercent(
			prev.CPUTicks+prev.ChildrenCPUTicks, sample.CPUTicks+sample.ChildrenCPUTicks,
			deltaSeconds, sysinfo.ClockTicksPerSec)
	}
	if c.haveLastSystem {
		info.MemPercent = sysinfo.MemPercent(sample.MemKbyte, c.lastSystem.MemTotalKbyte)
		info.MemPercentTotal = sysinfo.MemPercent(sample.MemKbyte+sample.ChildrenMemKbyte, c.lastSystem.MemTotalKbyte)
	}
	svc.Info = info

	if sample.Zombie {
		out = append(out, c.post(svc, model.KindData, model.StateFailed, model.DefaultEventAction(), "process is a zombie"))
	}
	if hadPrev && prev.PID != 0 && prev.PID != sample.PID {
		out = append(out, c.post(svc, model.KindPid, model.StateChanged, svc.PidAction.OrDefault(), "pid changed"))
	}
	if hadPrev && prev.PPID != 0 && prev.PPID != sample.PPID {
		out = append(out, c.post(svc, model.KindPPid, model.StateChanged, svc.PPidAction.OrDefault(), "ppid changed"))
	}
	if svc.PermUID != nil && *svc.PermUID != sample.UID {
		out = append(out, c.post(svc, model.KindUid, model.StateFailed, svc.UidAction.OrDefault(), fmt.Sprintf("uid %d, expected %d", sample.UID, *svc.PermUID)))
	}
	if svc.PermEUID != nil && *svc.PermEUID != sample.EUID {
		out = append(out, c.post(svc, model.KindUid, model.StateFailed, svc.EuidAction.OrDefault(), fmt.Sprintf("euid %d, expected %d", sample.EUID, *svc.PermEUID)))
	}
	if svc.PermGID != nil && *svc.PermGID != sample.GID {
		out = append(out, c.post(svc, model.KindGid, model.StateFailed, svc.GidAction.OrDefault(), fmt.Sprintf("gid %d, expected %d", sample.GID, *svc.PermGID)))
	}
	if svc.UptimeLimit != nil {
		state := model.StateSucceeded
		if svc.UptimeLimit.Op.Match(float64(sample.Uptime), float64(svc.UptimeLimit.Limit)) {
			state = model.StateFailed
		}
		out = append(out, c.post(svc, model.KindUptime, state, svc.UptimeLimit.Action, fmt.Sprintf("uptime %ds", sample.Uptime)))
	}

	for _, rule := range svc.ResourceRules {
		out = append(out, c.evalProcessResourceRule(svc, rule, sample, info))
	}

	if svc.Start != nil && sample.Uptime < int64(svc.Start.Timeout) {
		return out // startup grace: skip port checks this cycle
	}

	for _, rule := range svc.PortRules {
		out = append(out, c.evalPortRule(svc, rule)...)
	}
	for _, rule := range svc.ICMPRules {
		out = append(out, c.evalICMPRule(svc, rule)...)
	}

	return out
}

// evalProcessResourceRule evaluates one {kind, op, limit} resource
// predicate against the current process sample, spec.md §4.F Process
// step 4's bullet list of resource kinds. cpu-user/cpu-syst/cpu-wait and
// load1/5/15 read the host-wide System snapshot (c.lastSystem, refreshed
// once per cycle by Checker.System); total-mem%/total-memKb/total-cpu%
// are this process's own self+children cumulative totals, grounded on
// original_source/src/validate.c's priv.process.total_cpu_percent /
// total_mem_percent / total_mem_kbyte.
func (c *Checker) evalProcessResourceRule(svc *model.Service, rule model.ResourceRule, sample sysinfo.ProcessSample, info *model.ProcessInfo) event.Outcome {
	var observed int64
	switch rule.Kind {
	case model.ResCPUPercent:
		observed = info.CPUPercent
	case model.ResMemPercent:
		observed = info.MemPercent
	case model.ResMemKbyte:
		observed = sample.MemKbyte
	case model.ResChildren:
		observed = int64(sample.Children)
	case model.ResCPUUser:
		observed = c.systemCPUUserPercent
	case model.ResCPUSystem:
		observed = c.systemCPUSystemPercent
	case model.ResCPUWait:
		observed = c.systemCPUWaitPercent
	case model.ResTotalMemPercent:
		observed = info.MemPercentTotal
	case model.ResTotalMemKbyte:
		observed = sample.MemKbyte + sample.ChildrenMemKbyte
	case model.ResTotalCPUPercent:
		observed = info.CPUPercentTotal
	case model.ResLoad1:
		observed = int64(c.lastSystem.Load1 * 10)
	case model.ResLoad5:
		observed = int64(c.lastSystem.Load5 * 10)
	case model.ResLoad15:
		observed = int64(c.lastSystem.Load15 * 10)
	default:
		observed = 0
	}
	state := model.StateSucceeded
	if rule.Op.Match(float64(observed), float64(rule.Limit)) {
		state = model.StateFailed
	}
	return c.post(svc, model.KindResource, state, rule.Action, fmt.Sprintf("resource kind %d: observed %d, limit %d", rule.Kind, observed, rule.Limit))
}
