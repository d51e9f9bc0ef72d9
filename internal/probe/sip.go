package probe

import (
	"fmt"
	"strings"

	"github.com/ocochard/monit/internal/netio"
)

// SIP sends an OPTIONS request (the standard SIP liveness probe, since it
// elicits a reply without establishing a dialog) and checks for a
// "SIP/2.0" status line, grounded on
// original_source/src/protocols/sip.c.
func SIP(sock *netio.Socket, timeoutMs int) (Result, error) {
	request := "OPTIONS sip:monit@localhost SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP localhost;branch=z9hG4bK-monit\r\n" +
		"Max-Forwards: 70\r\n" +
		"To: <sip:monit@localhost>\r\n" +
		"From: <sip:monit@localhost>;tag=monit\r\n" +
		"Call-ID: monit-check\r\n" +
		"CSeq: 1 OPTIONS\r\n" +
		"Content-Length: 0\r\n\r\n"
	if err := sock.Print(timeoutMs, "%s", request); err != nil {
		return Result{}, fmt.Errorf("probe: sip: request: %w", err)
	}
	line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: sip: response: %w", err)
	}
	if !strings.HasPrefix(line, "SIP/2.0") {
		return Result{}, fmt.Errorf("probe: sip: unexpected response %q", line)
	}
	return Result{Detail: line}, nil
}
