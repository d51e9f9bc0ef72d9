package probe

import (
	"fmt"
	"time"

	"github.com/ocochard/monit/internal/netio"
)

// rdateEpochOffset is the number of seconds between the RFC 868 epoch
// (1900-01-01) and the Unix epoch (1970-01-01), grounded on
// original_source/src/protocols/rdate.c.
const rdateEpochOffset = 2208988800

// rdateMaxDrift is the maximum tolerated |delta| between the remote and
// local clock, spec.md §4.C "Rdate".
const rdateMaxDrift = 3 * time.Second

// Rdate reads a 32-bit big-endian RFC 868 timestamp and checks it is
// within rdateMaxDrift of local time, grounded on
// original_source/src/protocols/rdate.c's check_rdate.
func Rdate(sock *netio.Socket, timeoutMs int) (Result, error) {
	buf := make([]byte, 4)
	if _, err := sock.Read(buf, 4, timeoutMs); err != nil {
		return Result{}, fmt.Errorf("probe: rdate: read timestamp: %w", err)
	}
	seconds1900 := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	remoteUnix := int64(seconds1900) - rdateEpochOffset
	remote := time.Unix(remoteUnix, 0)

	drift := time.Since(remote)
	if drift < 0 {
		drift = -drift
	}
	if drift > rdateMaxDrift {
		return Result{}, fmt.Errorf("probe: rdate: clock drift %s exceeds %s (remote time %s)", drift, rdateMaxDrift, remote)
	}
	return Result{Detail: remote.String()}, nil
}
