package check

import (
	"fmt"

	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/sysinfo"
)

// Filesystem evaluates a Filesystem service, spec.md §4.F "Filesystem":
// statfs-derived usage, a Data acquisition event, then inode/space rules.
// Mountpoint resolution (symlink/device-string lookup) is delegated to
// the configuration layer, which stores the resolved mountpoint directly
// in Service.Path.
func (c *Checker) Filesystem(svc *model.Service) []event.Outcome {
	if c.skip(svc) {
		return nil
	}

	sample, err := c.Filesystems.Sample(svc.Path)
	if err != nil {
		return []event.Outcome{c.post(svc, model.KindData, model.StateFailed, model.DefaultEventAction(), err.Error())}
	}
	out := []event.Outcome{c.post(svc, model.KindData, model.StateSucceeded, model.DefaultEventAction(), "filesystem usage acquired")}

	prevInfo, _ := svc.Info.(*model.FilesystemInfo)
	spacePercent := percentX10(sample.BlocksTotal-sample.BlocksFree, sample.BlocksTotal)
	inodePercent := percentX10(sample.InodesTotal-sample.InodesFree, sample.InodesTotal)
	info := &model.FilesystemInfo{
		BlockSize: sample.BlockSize, BlocksTotal: sample.BlocksTotal,
		BlocksFree: sample.BlocksFree, BlocksAvail: sample.BlocksAvail,
		InodesTotal: sample.InodesTotal, InodesFree: sample.InodesFree,
		SpacePercent: spacePercent, InodePercent: inodePercent,
	}
	if prevInfo != nil {
		info.PrevFlags = prevInfo.Flags
		if info.Flags != prevInfo.Flags {
			out = append(out, c.post(svc, model.KindFsFlag, model.StateChanged, model.DefaultEventAction(), "filesystem flags changed"))
		}
	}
	svc.Info = info

	for _, rule := range svc.FilesystemRules {
		out = append(out, c.evalFilesystemRule(svc, rule, sample))
	}
	return out
}

func (c *Checker) evalFilesystemRule(svc *model.Service, rule model.FilesystemRule, sample sysinfo.FilesystemSample) event.Outcome {
	var observed int64
	switch rule.Kind {
	case model.FSRuleInode:
		if rule.Unit == model.FSUnitPercent {
			observed = percentX10(sample.InodesTotal-sample.InodesFree, sample.InodesTotal)
		} else {
			observed = sample.InodesTotal - sample.InodesFree
		}
	case model.FSRuleSpace:
		if rule.Unit == model.FSUnitPercent {
			observed = percentX10(sample.BlocksTotal-sample.BlocksFree, sample.BlocksTotal)
		} else {
			observed = (sample.BlocksTotal - sample.BlocksFree) * sample.BlockSize
		}
	}
	state := model.StateSucceeded
	if rule.Op.Match(float64(observed), float64(rule.Limit)) {
		state = model.StateFailed
	}
	return c.post(svc, model.KindResource, state, rule.Action, fmt.Sprintf("filesystem usage %d, limit %d", observed, rule.Limit))
}

// percentX10 derives a fixed-point x10 percentage, clamped to 0 when
// total is zero, spec.md §4.F Filesystem step 2.
func percentX10(used, total int64) int64 {
	if total <= 0 {
		return 0
	}
	return int64(1000 * used / total)
}
