package probe

import (
	"fmt"
	"strings"

	"github.com/ocochard/monit/internal/netio"
)

// ApacheStatus issues "GET /server-status?auto HTTP/1.0" and summarizes
// the worker scoreboard into a bucket count, grounded on
// original_source/src/protocols/apache_status.c's parse_scoreboard.
func ApacheStatus(sock *netio.Socket, timeoutMs int) (Result, error) {
	request := "GET /server-status?auto HTTP/1.0\r\n" +
		"Host: localhost\r\n" +
		"Connection: close\r\n\r\n"
	if err := sock.Print(timeoutMs, "%s", request); err != nil {
		return Result{}, fmt.Errorf("probe: apache_status: request: %w", err)
	}

	var body strings.Builder
	for {
		b, err := sock.ReadByte(timeoutMs)
		if err != nil {
			break
		}
		body.WriteByte(b)
	}

	text := body.String()
	idx := strings.Index(text, "Scoreboard:")
	if idx < 0 {
		return Result{}, fmt.Errorf("probe: apache_status: no scoreboard found in response")
	}
	line := text[idx+len("Scoreboard:"):]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	line = strings.TrimSpace(line)

	buckets := classifyScoreboard(line)
	return Result{Detail: fmt.Sprintf("open=%d waiting=%d start=%d read=%d reply=%d keepalive=%d dns=%d closing=%d logging=%d graceful=%d cleanup=%d",
		buckets["."], buckets["_"], buckets["S"], buckets["R"], buckets["W"], buckets["K"], buckets["D"], buckets["C"], buckets["L"], buckets["G"], buckets["I"])}, nil
}

// classifyScoreboard tallies each scoreboard character, mirroring the eleven
// buckets original_source/src/protocols/apache_status.c counts (start,
// request, reply/wait, keepalive, dns, close, logging, graceful-close,
// idle-cleanup, plus open/waiting slots).
func classifyScoreboard(scoreboard string) map[string]int {
	counts := map[string]int{}
	for _, c := range scoreboard {
		counts[string(c)]++
	}
	return counts
}
