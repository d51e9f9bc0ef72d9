package check

import (
	"os"
	"syscall"
)

// inodeOf extracts the inode number from a os.FileInfo on Linux, used to
// detect log rotation / file replacement (spec.md §4.F File step 5).
func inodeOf(st os.FileInfo) (uint64, bool) {
	sys, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return sys.Ino, true
}

// ownerOf extracts uid/gid from a os.FileInfo on Linux, used by the
// permission rule checks shared by Directory, Fifo and File services.
func ownerOf(st os.FileInfo) (uid, gid int, ok bool) {
	sys, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return int(sys.Uid), int(sys.Gid), true
}
