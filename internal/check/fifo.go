package check

import (
	"os"

	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

// Fifo evaluates a Fifo service, spec.md §3 "Directory/Fifo: mode, uid,
// gid, timestamp" — identical shape to Directory but validating the
// named-pipe mode bit instead of IsDir.
func (c *Checker) Fifo(svc *model.Service) []event.Outcome {
	if c.skip(svc) {
		return nil
	}
	var out []event.Outcome

	st, err := os.Stat(svc.Path)
	if err != nil {
		out = append(out, c.post(svc, model.KindNonexist, model.StateFailed, model.DefaultEventAction(), "fifo not found"))
		return out
	}
	out = append(out, c.post(svc, model.KindNonexist, model.StateSucceeded, model.DefaultEventAction(), "fifo found"))

	if st.Mode()&os.ModeNamedPipe == 0 {
		out = append(out, c.post(svc, model.KindInvalid, model.StateFailed, model.DefaultEventAction(), "not a named pipe"))
		return out
	}

	info := &model.FifoInfo{Mode: int(st.Mode().Perm()), Timestamp: st.ModTime().Unix()}
	if uid, gid, ok := ownerOf(st); ok {
		info.UID, info.GID = uid, gid
	}
	svc.Info = info

	out = append(out, evalPermissionRules(c, svc, st)...)
	return out
}
