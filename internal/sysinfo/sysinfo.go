// Package sysinfo reads process, filesystem and host telemetry the check
// subsystem evaluates resource rules against (spec.md §4.D). Production
// code reads Linux's /proc and statfs(2); tests substitute a fake Source.
package sysinfo

// ProcessSample is one point-in-time reading for a single process.
type ProcessSample struct {
	PID, PPID        int
	UID, EUID        int
	GID              int
	Zombie           bool
	Children         int
	MemKbyte         int64
	ChildrenMemKbyte int64 // sum of immediate children's resident memory
	CPUTicks         int64 // utime+stime, raw kernel ticks; internal/check computes the delta percentage
	ChildrenCPUTicks int64 // sum of immediate children's utime+stime
	Uptime           int64 // seconds
}

// SystemSample is one point-in-time reading of host-wide resource usage.
type SystemSample struct {
	Load1, Load5, Load15    float64
	CPUUserTicks            int64
	CPUSystemTicks          int64
	CPUWaitTicks            int64
	MemKbyte, MemTotalKbyte int64
	SwapKbyte, SwapTotal    int64
}

// FilesystemSample is one point-in-time statfs(2) reading.
type FilesystemSample struct {
	BlockSize                        int64
	BlocksTotal, BlocksFree, BlocksAvail int64
	InodesTotal, InodesFree          int64
}

// NetSample is one point-in-time reading of a network interface's
// counters (spec.md §4.D / §7 ByteIn/ByteOut/PacketIn/PacketOut).
type NetSample struct {
	LinkUp                       bool
	SpeedBps                     int64
	Duplex                       bool
	BytesIn, BytesOut            uint64
	PacketsIn, PacketsOut        uint64
	ErrorsIn, ErrorsOut          uint64
}

// ProcessSource resolves a pidfile or command-line pattern to a pid and
// reads its telemetry. PIDOf returns 0, nil when no matching process
// exists (a Process service's "not running" state, not an error).
type ProcessSource interface {
	PIDOf(pidfilePath, cmdlinePattern string) (int, error)
	Sample(pid int) (ProcessSample, error)
}

// SystemSource reads host-wide resource usage.
type SystemSource interface {
	Sample() (SystemSample, error)
}

// FilesystemSource reads a mounted filesystem's usage.
type FilesystemSource interface {
	Sample(path string) (FilesystemSample, error)
}

// NetSource reads one network interface's counters.
type NetSource interface {
	Sample(iface string) (NetSample, error)
}

// CPUPercent derives a fixed-point x10 CPU percentage from two raw tick
// samples taken deltaSeconds apart, against clockTicksPerSec (typically
// 100 on Linux), matching spec.md §3's fixed-point encoding.
func CPUPercent(prevTicks, curTicks int64, deltaSeconds float64, clockTicksPerSec int64) int64 {
	if deltaSeconds <= 0 || clockTicksPerSec <= 0 {
		return 0
	}
	deltaTicks := curTicks - prevTicks
	if deltaTicks < 0 {
		deltaTicks = 0
	}
	pct := (float64(deltaTicks) / float64(clockTicksPerSec)) / deltaSeconds * 100.0
	return int64(pct*10 + 0.5)
}

// MemPercent returns a fixed-point x10 percentage of used over total.
func MemPercent(usedKbyte, totalKbyte int64) int64 {
	if totalKbyte <= 0 {
		return 0
	}
	return int64(float64(usedKbyte) / float64(totalKbyte) * 1000)
}
