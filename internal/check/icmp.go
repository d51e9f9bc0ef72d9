package check

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// pingHost sends up to count ICMP echo requests to host and reports
// whether any reply was received along with the last round-trip time in
// milliseconds, spec.md §4.F "Host / Net" step 1. It uses an unprivileged
// SOCK_DGRAM ICMP socket (Linux's ping_group_range facility) rather than
// a raw socket, so it degrades gracefully (returns an error, treated by
// the caller as "skipped but available, neutral") when the capability is
// not present instead of requiring the supervisor to run as root.
func pingHost(host string, count, timeoutMs int) (ok bool, rttMS int64, err error) {
	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return false, 0, fmt.Errorf("check: icmp: resolve %s: %w", host, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_ICMP)
	if err != nil {
		return false, 0, fmt.Errorf("check: icmp: unprivileged ICMP socket unavailable: %w", err)
	}
	defer unix.Close(fd)

	timeout := unix.Timeval{Sec: int64(timeoutMs / 1000), Usec: int32((timeoutMs % 1000) * 1000)}
	_ = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &timeout)

	var sockaddr unix.SockaddrInet4
	copy(sockaddr.Addr[:], addr.IP.To4())

	if count < 1 {
		count = 1
	}
	var lastRTT int64
	for seq := 0; seq < count; seq++ {
		packet := buildEchoRequest(uint16(unix.Getpid()&0xffff), uint16(seq))
		start := time.Now()
		if err := unix.Sendto(fd, packet, 0, &sockaddr); err != nil {
			continue
		}
		buf := make([]byte, 256)
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil || n < 8 {
			continue
		}
		lastRTT = time.Since(start).Milliseconds()
		ok = true
	}
	return ok, lastRTT, nil
}

// buildEchoRequest assembles a minimal ICMP echo request payload; the
// kernel fills in the IP header and, for SOCK_DGRAM ICMP sockets, the
// identifier field, so only type/code/checksum/sequence are meaningful
// here.
func buildEchoRequest(id, seq uint16) []byte {
	packet := make([]byte, 8)
	packet[0] = 8 // type: echo request
	packet[1] = 0 // code
	binary.BigEndian.PutUint16(packet[4:], id)
	binary.BigEndian.PutUint16(packet[6:], seq)
	checksum := icmpChecksum(packet)
	binary.BigEndian.PutUint16(packet[2:], checksum)
	return packet
}

func icmpChecksum(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}
