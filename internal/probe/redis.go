package probe

import (
	"fmt"
	"strings"

	"github.com/ocochard/monit/internal/netio"
)

// Redis sends an inline PING and expects a "+PONG" simple-string reply,
// grounded on original_source/src/protocols/redis.c.
func Redis(sock *netio.Socket, timeoutMs int) (Result, error) {
	if err := sock.Print(timeoutMs, "PING\r\n"); err != nil {
		return Result{}, fmt.Errorf("probe: redis: ping: %w", err)
	}
	line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: redis: pong: %w", err)
	}
	if !strings.HasPrefix(line, "+PONG") {
		return Result{}, fmt.Errorf("probe: redis: unexpected reply %q", line)
	}
	return Result{Detail: line}, nil
}
