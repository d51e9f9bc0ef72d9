package check

import (
	"fmt"
	"os"

	"github.com/ocochard/monit/internal/event"
	"github.com/ocochard/monit/internal/model"
)

// Directory evaluates a Directory service, spec.md §3 "Directory/Fifo:
// mode, uid, gid, timestamp" and §4.F's common existence/type/permission
// prelude, narrowed to the fields a directory actually carries.
func (c *Checker) Directory(svc *model.Service) []event.Outcome {
	if c.skip(svc) {
		return nil
	}
	var out []event.Outcome

	st, err := os.Stat(svc.Path)
	if err != nil {
		out = append(out, c.post(svc, model.KindNonexist, model.StateFailed, model.DefaultEventAction(), "directory not found"))
		return out
	}
	out = append(out, c.post(svc, model.KindNonexist, model.StateSucceeded, model.DefaultEventAction(), "directory found"))

	if !st.IsDir() {
		out = append(out, c.post(svc, model.KindInvalid, model.StateFailed, model.DefaultEventAction(), "not a directory"))
		return out
	}

	info := &model.DirectoryInfo{Mode: int(st.Mode().Perm()), Timestamp: st.ModTime().Unix()}
	if uid, gid, ok := ownerOf(st); ok {
		info.UID, info.GID = uid, gid
	}
	svc.Info = info

	out = append(out, evalPermissionRules(c, svc, st)...)
	return out
}

// evalPermissionRules evaluates the permission/uid/gid rules shared by
// Directory and Fifo services (File evaluates the same rules inline
// alongside its checksum/size/content-specific ones).
func evalPermissionRules(c *Checker, svc *model.Service, st os.FileInfo) []event.Outcome {
	var out []event.Outcome
	if svc.PermMode != nil && int(st.Mode().Perm()) != *svc.PermMode {
		out = append(out, c.post(svc, model.KindPermission, model.StateFailed, model.DefaultEventAction(),
			fmt.Sprintf("permission mismatch: mode %o, expected %o", st.Mode().Perm(), *svc.PermMode)))
	}
	uid, gid, ok := ownerOf(st)
	if ok && svc.PermUID != nil && uid != *svc.PermUID {
		out = append(out, c.post(svc, model.KindUid, model.StateFailed, model.DefaultEventAction(),
			fmt.Sprintf("uid mismatch: %d, expected %d", uid, *svc.PermUID)))
	}
	if ok && svc.PermGID != nil && gid != *svc.PermGID {
		out = append(out, c.post(svc, model.KindGid, model.StateFailed, model.DefaultEventAction(),
			fmt.Sprintf("gid mismatch: %d, expected %d", gid, *svc.PermGID)))
	}
	return out
}
