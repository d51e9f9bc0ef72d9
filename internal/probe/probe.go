// Package probe implements the protocol probe library, spec.md §4.C: one
// function per wire protocol, each driving an internal/netio.Socket
// through a fixed handshake and returning a nil error on success or a
// descriptive error identifying which step failed.
package probe

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ocochard/monit/internal/netio"
)

// Result carries probe-specific telemetry the check subsystem folds into
// model.HostInfo / model.ProcessInfo, alongside the pass/fail error.
type Result struct {
	ResponseMS int64
	Detail     string // e.g. negotiated cipher, server banner, scoreboard summary
}

// Func is the shape every protocol probe implements.
type Func func(sock *netio.Socket, timeoutMs int) (Result, error)

// registry maps a rule's Protocol name (spec.md model.PortRule.Protocol)
// to its probe implementation. "DEFAULT" is the generic send/expect probe
// driven by the rule's own SendExpect program rather than a fixed
// protocol, so it is dispatched separately by the caller.
var registry = map[string]Func{
	"HTTP":            nil, // HTTP needs the rule's HTTPCheck, dispatched separately
	"SMTP":            SMTP,
	"POP":             POP,
	"IMAP":            IMAP,
	"NNTP":            NNTP,
	"FTP":             FTP,
	"CLAMAV":          ClamAV,
	"SSH":             SSH,
	"MYSQL":           MySQL,
	"MEMCACHE":        Memcache,
	"REDIS":           Redis,
	"SIEVE":           Sieve,
	"POSTFIX_POLICY":  PostfixPolicy,
	"SIP":             SIP,
	"WEBSOCKET":       WebSocket,
	"RDATE":           Rdate,
	"APACHE_STATUS":   ApacheStatus,
}

// Lookup returns the probe for a named protocol, or false if the name is
// unknown to the registry (callers should fall back to the generic
// send/expect probe for any name not found here, matching Monit's
// behavior of treating an unrecognized protocol as "DEFAULT").
func Lookup(protocol string) (Func, bool) {
	f, ok := registry[strings.ToUpper(protocol)]
	return f, ok && f != nil
}

// unescapeSendBuffer expands "\0xNN" escapes in a generic send/expect
// program's Send string, so a rule can push raw bytes including NUL,
// mirroring original_source/src/protocols/generic.c's
// _escapeZeroInExpectBuffer counterpart on the send side.
func unescapeSendBuffer(s string) []byte {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == '0' && (s[i+2] == 'x' || s[i+2] == 'X') {
			var b int
			if _, err := fmt.Sscanf(s[i+3:i+5], "%02x", &b); err == nil {
				out = append(out, byte(b))
				i += 4
				continue
			}
		}
		out = append(out, s[i])
	}
	return out
}

func matchExpect(pattern string, line string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("probe: invalid expect regex %q: %w", pattern, err)
	}
	return re.MatchString(line), nil
}
