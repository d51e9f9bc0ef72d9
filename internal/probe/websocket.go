package probe

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/textproto"
	"strings"

	"github.com/ocochard/monit/internal/netio"
)

// websocketGUID is the fixed GUID RFC 6455 defines for computing
// Sec-WebSocket-Accept, grounded on
// original_source/src/protocols/websocket.c.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// WebSocket performs the HTTP Upgrade handshake and verifies the server's
// Sec-WebSocket-Accept digest, grounded on
// original_source/src/protocols/websocket.c's check_websocket.
func WebSocket(sock *netio.Socket, timeoutMs int) (Result, error) {
	keyBytes := make([]byte, 16)
	if _, err := rand.Read(keyBytes); err != nil {
		return Result{}, fmt.Errorf("probe: websocket: nonce: %w", err)
	}
	key := base64.StdEncoding.EncodeToString(keyBytes)

	request := "GET / HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if err := sock.Print(timeoutMs, "%s", request); err != nil {
		return Result{}, fmt.Errorf("probe: websocket: request: %w", err)
	}

	statusLine, _, err := sock.ReadLine(lineBufMax, timeoutMs)
	if err != nil {
		return Result{}, fmt.Errorf("probe: websocket: status line: %w", err)
	}
	if !strings.Contains(statusLine, "101") {
		return Result{}, fmt.Errorf("probe: websocket: unexpected status %q", statusLine)
	}

	header := textproto.MIMEHeader{}
	for {
		line, _, err := sock.ReadLine(lineBufMax, timeoutMs)
		if err != nil {
			return Result{}, fmt.Errorf("probe: websocket: headers: %w", err)
		}
		if line == "" {
			break
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
		}
	}

	expect := computeAccept(key)
	got := header.Get("Sec-Websocket-Accept")
	if got != expect {
		return Result{}, fmt.Errorf("probe: websocket: accept digest mismatch: got %q, want %q", got, expect)
	}
	return Result{Detail: statusLine}, nil
}

func computeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
