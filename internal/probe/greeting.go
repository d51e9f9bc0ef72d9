package probe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ocochard/monit/internal/netio"
)

const lineBufMax = 1024 // original_source/src/protocols/*.c: char buf[STRLEN]

// readStatusLine reads one line and discards SMTP-style multi-line
// continuations ("250-" prefix, status code followed by '-'), grounded on
// original_source/src/protocols/smtp.c's expect().
func readStatusLine(sock *netio.Socket, timeoutMs int) (string, error) {
	for {
		line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
		if err != nil {
			return "", err
		}
		if len(line) > 3 && line[3] == '-' {
			continue
		}
		return line, nil
	}
}

// SMTP performs EHLO (falling back to HELO when EHLO is not answered with
// 250) and QUIT against an SMTP greeting, grounded on
// original_source/src/protocols/smtp.c.
func SMTP(sock *netio.Socket, timeoutMs int) (Result, error) {
	line, err := readStatusLine(sock, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: smtp: greeting: %w", err)
	}
	if err := expectStatus(line, 220); err != nil {
		return Result{}, fmt.Errorf("probe: smtp: %w", err)
	}
	if err := sock.Print(timeoutMs, "EHLO localhost\r\n"); err != nil {
		return Result{}, fmt.Errorf("probe: smtp: ehlo: %w", err)
	}
	line, err = readStatusLine(sock, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: smtp: ehlo response: %w", err)
	}
	if expectStatus(line, 250) != nil {
		if err := sock.Print(timeoutMs, "HELO localhost\r\n"); err != nil {
			return Result{}, fmt.Errorf("probe: smtp: helo: %w", err)
		}
		line, err = readStatusLine(sock, timeoutMs)
		if err != nil {
			return Result{}, fmt.Errorf("probe: smtp: helo response: %w", err)
		}
	}
	if err := expectStatus(line, 250); err != nil {
		return Result{}, fmt.Errorf("probe: smtp: %w", err)
	}
	_ = sock.Print(timeoutMs, "QUIT\r\n")
	return Result{Detail: line}, nil
}

func expectStatus(line string, want int) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fmt.Errorf("empty status line")
	}
	got, err := strconv.Atoi(fields[0])
	if err != nil || got != want {
		return fmt.Errorf("expected status %d, got %q", want, line)
	}
	return nil
}

// POP checks for a "+OK" greeting and sends QUIT, grounded on
// original_source/src/protocols/pop.c.
func POP(sock *netio.Socket, timeoutMs int) (Result, error) {
	line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: pop: greeting: %w", err)
	}
	if !strings.HasPrefix(line, "+OK") {
		return Result{}, fmt.Errorf("probe: pop: unexpected greeting %q", line)
	}
	_ = sock.Print(timeoutMs, "QUIT\r\n")
	return Result{Detail: line}, nil
}

// IMAP checks for a "* OK" greeting, grounded on
// original_source/src/protocols/imap.c.
func IMAP(sock *netio.Socket, timeoutMs int) (Result, error) {
	line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: imap: greeting: %w", err)
	}
	if !strings.HasPrefix(line, "* OK") {
		return Result{}, fmt.Errorf("probe: imap: unexpected greeting %q", line)
	}
	_ = sock.Print(timeoutMs, "A1 LOGOUT\r\n")
	return Result{Detail: line}, nil
}

// NNTP checks for a 200 or 201 status-code greeting, grounded on
// original_source/src/protocols/nntp.c.
func NNTP(sock *netio.Socket, timeoutMs int) (Result, error) {
	line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: nntp: greeting: %w", err)
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Result{}, fmt.Errorf("probe: nntp: empty greeting")
	}
	code, err := strconv.Atoi(fields[0])
	if err != nil || (code != 200 && code != 201) {
		return Result{}, fmt.Errorf("probe: nntp: unexpected greeting %q", line)
	}
	return Result{Detail: line}, nil
}

// FTP checks for a 220 greeting and sends QUIT, grounded on
// original_source/src/protocols/ftp.c.
func FTP(sock *netio.Socket, timeoutMs int) (Result, error) {
	line, err := readStatusLine(sock, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: ftp: greeting: %w", err)
	}
	if err := expectStatus(line, 220); err != nil {
		return Result{}, fmt.Errorf("probe: ftp: %w", err)
	}
	_ = sock.Print(timeoutMs, "QUIT\r\n")
	return Result{Detail: line}, nil
}

// ClamAV sends a PING and expects PONG, grounded on
// original_source/src/protocols/clamav.c.
func ClamAV(sock *netio.Socket, timeoutMs int) (Result, error) {
	if err := sock.Print(timeoutMs, "zPING\000"); err != nil {
		return Result{}, fmt.Errorf("probe: clamav: ping: %w", err)
	}
	line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: clamav: pong: %w", err)
	}
	if !strings.HasPrefix(line, "PONG") {
		return Result{}, fmt.Errorf("probe: clamav: unexpected reply %q", line)
	}
	return Result{Detail: line}, nil
}

// Sieve checks for an implementation capability dump terminated by "OK",
// grounded on original_source/src/protocols/sieve.c.
func Sieve(sock *netio.Socket, timeoutMs int) (Result, error) {
	for {
		line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
		if err != nil {
			return Result{}, fmt.Errorf("probe: sieve: %w", err)
		}
		if strings.HasPrefix(line, "OK") {
			return Result{Detail: line}, nil
		}
		if strings.HasPrefix(line, "NO") || strings.HasPrefix(line, "BYE") {
			return Result{}, fmt.Errorf("probe: sieve: server reported %q", line)
		}
	}
}

// PostfixPolicy sends a minimal smtpd_access_policy request and expects
// an "action=" response, grounded on
// original_source/src/protocols/postfix_policy.c.
func PostfixPolicy(sock *netio.Socket, timeoutMs int) (Result, error) {
	request := "request=smtpd_access_policy\n" +
		"protocol_state=RCPT\n" +
		"protocol_name=SMTP\n" +
		"sender=monit@localhost\n" +
		"recipient=monit@localhost\n\n"
	if err := sock.Print(timeoutMs, "%s", request); err != nil {
		return Result{}, fmt.Errorf("probe: postfix_policy: request: %w", err)
	}
	line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: postfix_policy: response: %w", err)
	}
	if !strings.HasPrefix(line, "action=") {
		return Result{}, fmt.Errorf("probe: postfix_policy: unexpected response %q", line)
	}
	return Result{Detail: line}, nil
}

// SSH reads the identification string, verifies the "SSH-" prefix and
// echoes it back per the version-exchange handshake, grounded on
// original_source/src/protocols/ssh.c.
func SSH(sock *netio.Socket, timeoutMs int) (Result, error) {
	line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: ssh: identification string: %w", err)
	}
	if !strings.HasPrefix(line, "SSH-") {
		return Result{}, fmt.Errorf("probe: ssh: protocol error %q", line)
	}
	if err := sock.Print(timeoutMs, "%s\r\n", line); err != nil {
		return Result{}, fmt.Errorf("probe: ssh: echo identification string: %w", err)
	}
	return Result{Detail: line}, nil
}
