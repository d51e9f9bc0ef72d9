package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ClockTicksPerSec is Linux's USER_HZ, read once at process start via
// sysconf(_SC_CLK_TCK) in the original C sources; 100 is the value on
// every mainstream Linux distribution and kernel configuration.
const ClockTicksPerSec = 100

// LinuxProcessSource reads process telemetry from /proc, grounded on
// original_source/src/process/sysdep_LINUX.c and
// other_examples/021ededc_guillermo-go.procstat__stat.go.go's /proc/pid/stat
// field layout.
type LinuxProcessSource struct{}

func (LinuxProcessSource) PIDOf(pidfilePath, cmdlinePattern string) (int, error) {
	if pidfilePath != "" {
		data, err := os.ReadFile(pidfilePath)
		if err != nil {
			return 0, nil // pidfile absent: not running, not an error
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return 0, fmt.Errorf("sysinfo: malformed pidfile %s: %w", pidfilePath, err)
		}
		if !processExists(pid) {
			return 0, nil
		}
		return pid, nil
	}
	if cmdlinePattern != "" {
		return findByCmdline(cmdlinePattern)
	}
	return 0, fmt.Errorf("sysinfo: neither pidfile nor cmdline pattern given")
}

func processExists(pid int) bool {
	_, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	return err == nil
}

func findByCmdline(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("sysinfo: invalid cmdline pattern %q: %w", pattern, err)
	}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("sysinfo: read /proc: %w", err)
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil {
			continue
		}
		joined := strings.ReplaceAll(string(cmdline), "\x00", " ")
		if re.MatchString(joined) {
			return pid, nil
		}
	}
	return 0, nil
}

func (LinuxProcessSource) Sample(pid int) (ProcessSample, error) {
	statPath := filepath.Join("/proc", strconv.Itoa(pid), "stat")
	data, err := os.ReadFile(statPath)
	if err != nil {
		return ProcessSample{}, fmt.Errorf("sysinfo: read %s: %w", statPath, err)
	}

	// The comm field is parenthesized and may itself contain spaces, so
	// locate it by the last ')' rather than whitespace splitting blindly,
	// matching the caveat other_examples/021ededc_guillermo-go.procstat__stat.go.go
	// documents for its own %c scan.
	line := string(data)
	parenEnd := strings.LastIndexByte(line, ')')
	if parenEnd < 0 {
		return ProcessSample{}, fmt.Errorf("sysinfo: malformed stat line for pid %d", pid)
	}
	fields := strings.Fields(line[parenEnd+1:])
	// fields[0] = state, fields[1] = ppid, ... (offset by 2 from full stat
	// layout since pid and comm were consumed above)
	if len(fields) < 20 {
		return ProcessSample{}, fmt.Errorf("sysinfo: truncated stat line for pid %d", pid)
	}
	ppid, _ := strconv.Atoi(fields[1])
	utime, _ := strconv.ParseInt(fields[11], 10, 64)
	stime, _ := strconv.ParseInt(fields[12], 10, 64)
	starttime, _ := strconv.ParseInt(fields[19], 10, 64)

	zombie := strings.TrimSpace(fields[0]) == "Z"

	statusPath := filepath.Join("/proc", strconv.Itoa(pid), "status")
	uid, euid, gid, vmRSSKbyte := parseStatus(statusPath)

	uptimeSeconds, _ := systemUptimeSeconds()
	startSeconds := float64(starttime) / float64(ClockTicksPerSec)
	uptime := int64(uptimeSeconds - startSeconds)
	if uptime < 0 {
		uptime = 0
	}

	children, childCPUTicks, childMemKbyte := childrenStats(pid)

	return ProcessSample{
		PID: pid, PPID: ppid,
		UID: uid, EUID: euid, GID: gid,
		Zombie:           zombie,
		Children:         children,
		MemKbyte:         vmRSSKbyte,
		ChildrenMemKbyte: childMemKbyte,
		CPUTicks:         utime + stime,
		ChildrenCPUTicks: childCPUTicks,
		Uptime:           uptime,
	}, nil
}

func parseStatus(path string) (uid, euid, gid int, vmRSSKbyte int64) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "Uid:"):
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				uid, _ = strconv.Atoi(fields[1])
				euid, _ = strconv.Atoi(fields[2])
			}
		case strings.HasPrefix(line, "Gid:"):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				gid, _ = strconv.Atoi(fields[1])
			}
		case strings.HasPrefix(line, "VmRSS:"):
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				vmRSSKbyte, _ = strconv.ParseInt(fields[1], 10, 64)
			}
		}
	}
	return
}

// childrenStats scans /proc for pid's immediate children, returning
// their count and the sums of their CPU ticks and resident memory —
// the "cumulative with children" totals spec.md §4.F Process step 4's
// total-cpu%/total-mem%/total-memKb resource kinds need, grounded on
// original_source/src/validate.c's priv.process.total_cpu_percent /
// total_mem_percent / total_mem_kbyte (self + children).
func childrenStats(pid int) (count int, cpuTicks int64, memKbyte int64) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, 0, 0
	}
	target := strconv.Itoa(pid)
	for _, e := range entries {
		childPID, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", e.Name(), "stat"))
		if err != nil {
			continue
		}
		parenEnd := strings.LastIndexByte(string(data), ')')
		if parenEnd < 0 {
			continue
		}
		fields := strings.Fields(string(data)[parenEnd+1:])
		if len(fields) < 14 || fields[1] != target {
			continue
		}
		count++
		utime, _ := strconv.ParseInt(fields[11], 10, 64)
		stime, _ := strconv.ParseInt(fields[12], 10, 64)
		cpuTicks += utime + stime

		_, _, _, vmRSSKbyte := parseStatus(filepath.Join("/proc", strconv.Itoa(childPID), "status"))
		memKbyte += vmRSSKbyte
	}
	return count, cpuTicks, memKbyte
}

func systemUptimeSeconds() (float64, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, fmt.Errorf("sysinfo: malformed /proc/uptime")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// LinuxSystemSource reads host-wide CPU, memory and load telemetry from
// /proc/loadavg, /proc/stat and /proc/meminfo, grounded on
// original_source/src/process/sysdep_LINUX.c's whole-system accounting.
type LinuxSystemSource struct{}

func (LinuxSystemSource) Sample() (SystemSample, error) {
	var s SystemSample

	if data, err := os.ReadFile("/proc/loadavg"); err == nil {
		fields := strings.Fields(string(data))
		if len(fields) >= 3 {
			s.Load1, _ = strconv.ParseFloat(fields[0], 64)
			s.Load5, _ = strconv.ParseFloat(fields[1], 64)
			s.Load15, _ = strconv.ParseFloat(fields[2], 64)
		}
	}

	if f, err := os.Open("/proc/stat"); err == nil {
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "cpu ") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) >= 6 {
				user, _ := strconv.ParseInt(fields[1], 10, 64)
				nice, _ := strconv.ParseInt(fields[2], 10, 64)
				sys, _ := strconv.ParseInt(fields[3], 10, 64)
				iowait, _ := strconv.ParseInt(fields[5], 10, 64)
				s.CPUUserTicks = user + nice
				s.CPUSystemTicks = sys
				s.CPUWaitTicks = iowait
			}
			break
		}
	}

	if f, err := os.Open("/proc/meminfo"); err == nil {
		defer f.Close()
		vals := map[string]int64{}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			k, v, ok := strings.Cut(sc.Text(), ":")
			if !ok {
				continue
			}
			fields := strings.Fields(v)
			if len(fields) == 0 {
				continue
			}
			n, _ := strconv.ParseInt(fields[0], 10, 64)
			vals[k] = n
		}
		s.MemTotalKbyte = vals["MemTotal"]
		s.MemKbyte = vals["MemTotal"] - vals["MemFree"] - vals["Cached"] - vals["Buffers"]
		s.SwapTotal = vals["SwapTotal"]
		s.SwapKbyte = vals["SwapTotal"] - vals["SwapFree"]
	}

	return s, nil
}

// LinuxFilesystemSource reads mounted filesystem usage via statfs(2),
// grounded on original_source/src/device/sysdep_LINUX.c.
type LinuxFilesystemSource struct{}

func (LinuxFilesystemSource) Sample(path string) (FilesystemSample, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FilesystemSample{}, fmt.Errorf("sysinfo: statfs %s: %w", path, err)
	}
	return FilesystemSample{
		BlockSize:    int64(st.Bsize),
		BlocksTotal:  int64(st.Blocks),
		BlocksFree:   int64(st.Bfree),
		BlocksAvail:  int64(st.Bavail),
		InodesTotal:  int64(st.Files),
		InodesFree:   int64(st.Ffree),
	}, nil
}

// LinuxNetSource reads interface counters from /proc/net/dev and link
// state from /sys/class/net, grounded on
// original_source/src/device/sysdep_LINUX.c's network statistics section.
type LinuxNetSource struct{}

func (LinuxNetSource) Sample(iface string) (NetSample, error) {
	data, err := os.ReadFile("/proc/net/dev")
	if err != nil {
		return NetSample{}, fmt.Errorf("sysinfo: read /proc/net/dev: %w", err)
	}
	var sample NetSample
	found := false
	for _, line := range strings.Split(string(data), "\n") {
		name, rest, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 16 {
			continue
		}
		sample.BytesIn, _ = strconv.ParseUint(fields[0], 10, 64)
		sample.PacketsIn, _ = strconv.ParseUint(fields[1], 10, 64)
		sample.ErrorsIn, _ = strconv.ParseUint(fields[2], 10, 64)
		sample.BytesOut, _ = strconv.ParseUint(fields[8], 10, 64)
		sample.PacketsOut, _ = strconv.ParseUint(fields[9], 10, 64)
		sample.ErrorsOut, _ = strconv.ParseUint(fields[10], 10, 64)
		found = true
		break
	}
	if !found {
		return NetSample{}, fmt.Errorf("sysinfo: interface %s not found in /proc/net/dev", iface)
	}

	if op, err := os.ReadFile(filepath.Join("/sys/class/net", iface, "operstate")); err == nil {
		sample.LinkUp = strings.TrimSpace(string(op)) == "up"
	}
	if speed, err := os.ReadFile(filepath.Join("/sys/class/net", iface, "speed")); err == nil {
		if mbps, err := strconv.ParseInt(strings.TrimSpace(string(speed)), 10, 64); err == nil && mbps > 0 {
			sample.SpeedBps = mbps * 1_000_000
		}
	}
	if duplex, err := os.ReadFile(filepath.Join("/sys/class/net", iface, "duplex")); err == nil {
		sample.Duplex = strings.TrimSpace(string(duplex)) == "full"
	}
	return sample, nil
}
