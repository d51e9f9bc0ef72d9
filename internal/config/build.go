package config

import (
	"fmt"

	"github.com/ocochard/monit/internal/model"
)

func (sc ServiceConfig) build() (*model.Service, error) {
	typ, err := parseType(sc.Type)
	if err != nil {
		return nil, err
	}

	svc := &model.Service{
		Name:           sc.Name,
		Type:           typ,
		Path:           sc.Path,
		Hostname:       sc.Hostname,
		Argv:           sc.Argv,
		CmdlinePattern: sc.CmdlinePattern,
		Schedule:       sc.Schedule.build(),
		PermMode:       sc.PermMode,
		PermUID:        sc.PermUID,
		PermEUID:       sc.PermEUID,
		PermGID:        sc.PermGID,
		ChecksumType:   sc.ChecksumType,
		ChecksumExpect: sc.ChecksumExpect,
		DependsOn:      sc.DependsOn,
		Monitor:        model.MonitorInit,
		NonexistAction: sc.NonexistAction.build(),
		PidAction:      sc.PidAction.build(),
		PPidAction:     sc.PPidAction.build(),
		UidAction:      sc.UidAction.build(),
		EuidAction:     sc.EuidAction.build(),
		GidAction:      sc.GidAction.build(),
	}

	svc.Start = sc.Start.build()
	svc.Stop = sc.Stop.build()
	svc.Restart = sc.Restart.build()

	for _, p := range sc.Port {
		rule, err := p.build()
		if err != nil {
			return nil, err
		}
		svc.PortRules = append(svc.PortRules, rule)
	}
	for _, i := range sc.ICMP {
		svc.ICMPRules = append(svc.ICMPRules, model.ICMPRule{
			Count: i.Count, Timeout: i.TimeoutMS, Action: i.Action.build(),
		})
	}
	for _, r := range sc.Resource {
		rule, err := r.build()
		if err != nil {
			return nil, err
		}
		svc.ResourceRules = append(svc.ResourceRules, rule)
	}
	for _, f := range sc.Filesystem {
		rule, err := f.build()
		if err != nil {
			return nil, err
		}
		svc.FilesystemRules = append(svc.FilesystemRules, rule)
	}
	for _, ct := range sc.Content {
		svc.ContentRules = append(svc.ContentRules, model.ContentRule{
			Pattern: ct.Pattern, Negate: ct.Negate, Action: ct.Action.build(),
		})
	}
	for _, ig := range sc.Ignore {
		svc.IgnoreRules = append(svc.IgnoreRules, model.ContentRule{
			Pattern: ig.Pattern, Negate: ig.Negate, Action: ig.Action.build(),
		})
	}
	for _, pr := range sc.Program {
		op, err := parseOperator(pr.Op)
		if err != nil {
			return nil, err
		}
		svc.ProgramRules = append(svc.ProgramRules, model.ProgramRule{
			Op: op, Expected: pr.Expected, Action: pr.Action.build(),
		})
	}
	for _, ar := range sc.ActionRate {
		action, err := model.ParseAction(ar.Action)
		if err != nil {
			return nil, err
		}
		svc.ActionRates = append(svc.ActionRates, model.ActionRate{
			Count: ar.Count, Cycle: ar.Cycle, Action: action,
		})
	}

	for _, rc := range sc.Recipient {
		var mask model.Kind
		for _, name := range rc.EventMask {
			k, err := parseKind(name)
			if err != nil {
				return nil, err
			}
			mask |= k
		}
		if len(rc.EventMask) == 0 {
			mask = model.KindAll
		}
		svc.Recipients = append(svc.Recipients, model.Mail{
			To: rc.To, From: rc.From, ReplyTo: rc.ReplyTo, Subject: rc.Subject,
			Message: rc.Message, EventMask: mask, Reminder: rc.Reminder,
		})
	}
	for _, cc := range sc.Collector {
		svc.Collectors = append(svc.Collectors, model.Collector{
			URL: cc.URL, TLSSkipVerify: cc.TLSSkipVerify, Timeout: cc.Timeout,
			Username: cc.Username, Password: cc.Password,
		})
	}

	return svc, nil
}

func (cc *CommandConfig) build() *model.Command {
	if cc == nil {
		return nil
	}
	return &model.Command{Argv: cc.Argv, UID: cc.UID, GID: cc.GID, Timeout: cc.Timeout}
}

func (sc ScheduleConfig) build() model.Schedule {
	switch sc.Kind {
	case "every_n_cycles":
		return model.Schedule{Kind: model.ScheduleEveryNCycles, N: sc.N}
	case "cron":
		return model.Schedule{Kind: model.ScheduleCron, Expr: sc.Expr}
	case "cron_not":
		return model.Schedule{Kind: model.ScheduleCronNot, Expr: sc.Expr}
	default:
		return model.Schedule{Kind: model.ScheduleEveryCycle}
	}
}

func (ac EventActionConfig) build() model.EventAction {
	action := model.DefaultEventAction()
	if ac.Failed != "" {
		if a, err := model.ParseAction(ac.Failed); err == nil {
			action.Failed = a
		}
	}
	if ac.Succeeded != "" {
		if a, err := model.ParseAction(ac.Succeeded); err == nil {
			action.Succeeded = a
		}
	}
	return action
}

func (p PortRuleConfig) build() (model.PortRule, error) {
	net := p.Net
	if net == "" {
		net = "tcp"
	}
	return model.PortRule{
		Hostname: p.Hostname, Port: p.Port, UnixPath: p.UnixPath,
		Protocol: p.Protocol, Net: net, TLS: p.TLS,
		Timeout: p.TimeoutMS, Retry: p.Retry, Action: p.Action.build(),
	}, nil
}

func (r ResourceRuleConfig) build() (model.ResourceRule, error) {
	kind, err := parseResourceKind(r.Kind)
	if err != nil {
		return model.ResourceRule{}, err
	}
	op, err := parseOperator(r.Op)
	if err != nil {
		return model.ResourceRule{}, err
	}
	return model.ResourceRule{Kind: kind, Op: op, Limit: r.Limit, Action: r.Action.build()}, nil
}

func (f FilesystemRuleConfig) build() (model.FilesystemRule, error) {
	var kind model.FilesystemRuleKind
	switch f.Kind {
	case "inode":
		kind = model.FSRuleInode
	case "space", "":
		kind = model.FSRuleSpace
	default:
		return model.FilesystemRule{}, fmt.Errorf("unknown filesystem rule kind %q", f.Kind)
	}
	unit := model.FSUnitPercent
	if f.Unit == "absolute" {
		unit = model.FSUnitAbsolute
	}
	op, err := parseOperator(f.Op)
	if err != nil {
		return model.FilesystemRule{}, err
	}
	return model.FilesystemRule{Kind: kind, Unit: unit, Op: op, Limit: f.Limit, Action: f.Action.build()}, nil
}

func parseType(s string) (model.Type, error) {
	switch s {
	case "filesystem":
		return model.TypeFilesystem, nil
	case "directory":
		return model.TypeDirectory, nil
	case "file":
		return model.TypeFile, nil
	case "process":
		return model.TypeProcess, nil
	case "host":
		return model.TypeHost, nil
	case "system":
		return model.TypeSystem, nil
	case "fifo":
		return model.TypeFifo, nil
	case "program":
		return model.TypeProgram, nil
	case "net":
		return model.TypeNet, nil
	default:
		return 0, fmt.Errorf("unknown service type %q", s)
	}
}

func parseOperator(s string) (model.Operator, error) {
	switch s {
	case "", "==":
		return model.OpEqual, nil
	case "!=":
		return model.OpNotEqual, nil
	case ">":
		return model.OpGreater, nil
	case ">=":
		return model.OpGreaterEqual, nil
	case "<":
		return model.OpLess, nil
	case "<=":
		return model.OpLessEqual, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}

func parseResourceKind(s string) (model.ResourceKind, error) {
	switch s {
	case "cpu_percent":
		return model.ResCPUPercent, nil
	case "cpu_user":
		return model.ResCPUUser, nil
	case "cpu_system":
		return model.ResCPUSystem, nil
	case "cpu_wait":
		return model.ResCPUWait, nil
	case "mem_percent":
		return model.ResMemPercent, nil
	case "mem_kbyte":
		return model.ResMemKbyte, nil
	case "children":
		return model.ResChildren, nil
	case "total_mem_percent":
		return model.ResTotalMemPercent, nil
	case "total_mem_kbyte":
		return model.ResTotalMemKbyte, nil
	case "total_cpu_percent":
		return model.ResTotalCPUPercent, nil
	case "load1":
		return model.ResLoad1, nil
	case "load5":
		return model.ResLoad5, nil
	case "load15":
		return model.ResLoad15, nil
	default:
		return 0, fmt.Errorf("unknown resource kind %q", s)
	}
}

func parseKind(s string) (model.Kind, error) {
	switch s {
	case "all":
		return model.KindAll, nil
	case "action":
		return model.KindAction, nil
	case "checksum":
		return model.KindChecksum, nil
	case "connection":
		return model.KindConnection, nil
	case "content":
		return model.KindContent, nil
	case "data":
		return model.KindData, nil
	case "exec":
		return model.KindExec, nil
	case "fsflag":
		return model.KindFsFlag, nil
	case "gid":
		return model.KindGid, nil
	case "icmp":
		return model.KindIcmp, nil
	case "instance":
		return model.KindInstance, nil
	case "invalid":
		return model.KindInvalid, nil
	case "nonexist":
		return model.KindNonexist, nil
	case "permission":
		return model.KindPermission, nil
	case "pid":
		return model.KindPid, nil
	case "ppid":
		return model.KindPPid, nil
	case "resource":
		return model.KindResource, nil
	case "size":
		return model.KindSize, nil
	case "status":
		return model.KindStatus, nil
	case "timeout":
		return model.KindTimeout, nil
	case "timestamp":
		return model.KindTimestamp, nil
	case "uid":
		return model.KindUid, nil
	case "uptime":
		return model.KindUptime, nil
	case "link":
		return model.KindLink, nil
	case "speed":
		return model.KindSpeed, nil
	case "saturation":
		return model.KindSaturation, nil
	case "bytein":
		return model.KindByteIn, nil
	case "byteout":
		return model.KindByteOut, nil
	case "packetin":
		return model.KindPacketIn, nil
	case "packetout":
		return model.KindPacketOut, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}
