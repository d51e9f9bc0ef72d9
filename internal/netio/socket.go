// Package netio implements the buffered byte-stream socket abstraction
// protocol probes are built on (spec.md §4.B): TCP/UDP/UNIX transports,
// optional TLS, and bounded-timeout read/write primitives. Sockets are
// scope-owned — created and released within a single check invocation,
// per spec.md §3 Ownership rules.
package netio

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const readBufSize = 1460 // spec.md §5 resource bound: one read buffer per socket

// Transport selects the wire transport.
type Transport int

const (
	TCP Transport = iota
	UDP
	UNIX
)

// TLSOptions configures the optional TLS handshake layered above a
// connected TCP socket.
type TLSOptions struct {
	Enabled            bool
	InsecureSkipVerify bool // "self-signed-accept flag"
	ServerName         string
	MinValidDays       int  // reject certs expiring within this many days; 0 = no check
	ExpectPeerMD5      string
	RootCAs            *x509.CertPool
}

// Socket is a scope-owned byte stream with per-operation millisecond
// timeouts, backed by a 1460-byte read buffer, spec.md §4.B.
type Socket struct {
	conn    net.Conn
	br      *bufio.Reader
	network string
	addr    string
	err     string // actionable error message set by a failed probe
}

// Dial connects to host:port (or, for UNIX, a filesystem path) over the
// given transport, optionally negotiating TLS, within timeoutMs
// milliseconds. For TCP this performs a non-blocking connect bounded by
// the deadline; Go's net.Dialer already implements that contract
// portably, so it is used directly rather than hand-rolling
// connect()+select() as the original C implementation does.
func Dial(host string, port int, path string, transport Transport, tlsOpts *TLSOptions, timeoutMs int) (*Socket, error) {
	network, addr := "", ""
	switch transport {
	case TCP:
		network, addr = "tcp", net.JoinHostPort(host, portStr(port))
	case UDP:
		network, addr = "udp", net.JoinHostPort(host, portStr(port))
	case UNIX:
		network, addr = "unix", path
	default:
		return nil, fmt.Errorf("netio: unsupported transport %d", transport)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("netio: connect %s %s: %w", network, addr, err)
	}

	if tlsOpts != nil && tlsOpts.Enabled {
		conn, err = wrapTLS(conn, host, tlsOpts, timeoutMs)
		if err != nil {
			return nil, err
		}
	}

	return &Socket{conn: conn, br: bufio.NewReaderSize(conn, readBufSize), network: network, addr: addr}, nil
}

func portStr(p int) string { return fmt.Sprintf("%d", p) }

// looksNumeric reports whether host is a bare IP literal, in which case
// SNI is not set (spec.md §4.B).
func looksNumeric(host string) bool {
	return net.ParseIP(host) != nil
}

func wrapTLS(conn net.Conn, host string, opts *TLSOptions, timeoutMs int) (net.Conn, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify,
		RootCAs:            opts.RootCAs,
	}
	if !looksNumeric(host) {
		if opts.ServerName != "" {
			cfg.ServerName = opts.ServerName
		} else {
			cfg.ServerName = host
		}
	}
	tconn := tls.Client(conn, cfg)
	_ = tconn.SetDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond))
	if err := tconn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netio: tls handshake: %w", err)
	}
	_ = tconn.SetDeadline(time.Time{})

	if opts.MinValidDays > 0 || opts.ExpectPeerMD5 != "" {
		if err := verifyPeerCertificate(tconn, opts); err != nil {
			tconn.Close()
			return nil, err
		}
	}
	return tconn, nil
}

// Write writes buf in full, looping on partial writes until the deadline
// expires, spec.md §4.B.
func (s *Socket) Write(buf []byte, timeoutMs int) (int, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	total := 0
	for total < len(buf) {
		n, err := s.conn.Write(buf[total:])
		total += n
		if err != nil {
			return total, fmt.Errorf("netio: write: %w", err)
		}
	}
	return total, nil
}

// Print is a convenience wrapper over Write for formatted protocol
// commands, e.g. probes issuing "GET %s HTTP/1.1\r\n".
func (s *Socket) Print(timeoutMs int, format string, args ...any) error {
	_, err := s.Write([]byte(fmt.Sprintf(format, args...)), timeoutMs)
	return err
}

// ReadByte reads a single byte, returning io.EOF on a clean close.
func (s *Socket) ReadByte(timeoutMs int) (byte, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)); err != nil {
		return 0, err
	}
	b, err := s.br.ReadByte()
	if err == io.EOF {
		return 0, io.EOF
	}
	if err != nil {
		return 0, fmt.Errorf("netio: read byte: %w", err)
	}
	return b, nil
}

// ReadLine reads until '\n' inclusive (stripping a trailing "\r\n") or
// until maxLen bytes have been read without finding one, in which case it
// returns what it has without the terminator and ok=false.
func (s *Socket) ReadLine(maxLen int, timeoutMs int) (line string, ok bool, err error) {
	if err = s.conn.SetReadDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)); err != nil {
		return "", false, err
	}
	var b strings.Builder
	for b.Len() < maxLen {
		c, rerr := s.br.ReadByte()
		if rerr != nil {
			return b.String(), false, fmt.Errorf("netio: read line: %w", rerr)
		}
		if c == '\n' {
			return strings.TrimSuffix(strings.TrimSuffix(b.String(), "\r"), ""), true, nil
		}
		b.WriteByte(c)
	}
	return b.String(), false, nil
}

// Read reads exactly n bytes into buf (buf must be at least n long),
// bounded by timeoutMs.
func (s *Socket) Read(buf []byte, n int, timeoutMs int) (int, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)); err != nil {
		return 0, err
	}
	total := 0
	for total < n {
		m, err := s.br.Read(buf[total:n])
		total += m
		if err != nil {
			return total, fmt.Errorf("netio: read: %w", err)
		}
	}
	return total, nil
}

// IsReady reports whether the socket is readable without blocking (TCP),
// or, for UDP, attempts to detect an ICMP port-unreachable error that the
// kernel has queued for the socket. UDP ICMP-error detection requires
// reading the socket's error queue (MSG_ERRQUEUE on Linux); this
// implementation covers the common TCP case fully and treats a UDP
// socket as always "ready" (best-effort, matching a UDP check's
// fire-and-forget nature) since the error queue path is platform-specific
// beyond what this supervisor's portable core owns.
func (s *Socket) IsReady() (bool, error) {
	if s.network != "tcp" {
		return true, nil
	}
	sc, ok := s.conn.(syscall.Conn)
	if !ok {
		return true, nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, err
	}
	var ready bool
	var pollErr error
	err = raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, e := unix.Poll(fds, 0)
		if e != nil {
			pollErr = e
			return
		}
		ready = n > 0 && fds[0].Revents&unix.POLLIN != 0
	})
	if err != nil {
		return false, err
	}
	return ready, pollErr
}

// SetError latches an actionable error message on the socket, as every
// probe does on failure per spec.md §4.C.
func (s *Socket) SetError(format string, args ...any) { s.err = fmt.Sprintf(format, args...) }

// Error returns the last latched error message, if any.
func (s *Socket) Error() string { return s.err }

// Close releases the underlying connection.
func (s *Socket) Close() error { return s.conn.Close() }

// Conn exposes the underlying net.Conn for probes that need raw access
// (e.g. setting custom deadlines around a multi-step handshake).
func (s *Socket) Conn() net.Conn { return s.conn }
