package probe

import (
	"encoding/binary"
	"fmt"

	"github.com/ocochard/monit/internal/netio"
)

// clientSecureConnection and clientPluginAuth are capability-flag bits
// the handshake packet's length depends on, grounded on
// original_source/src/protocols/mysql.c's capability flag table.
const (
	clientSecureConnection = 1 << 13
	clientPluginAuth       = 1 << 19
)

// MySQL reads the server's initial handshake packet and extracts the
// protocol version and capability flags; a malformed packet fails the
// probe. This mirrors _handshakeInit in
// original_source/src/protocols/mysql.c without completing the
// authentication handshake (a read-only liveness probe).
func MySQL(sock *netio.Socket, timeoutMs int) (Result, error) {
	header := make([]byte, 4)
	if _, err := sock.Read(header, 4, timeoutMs); err != nil {
		return Result{}, fmt.Errorf("probe: mysql: packet header: %w", err)
	}
	payloadLen := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
	if payloadLen <= 0 || payloadLen > 4096 {
		return Result{}, fmt.Errorf("probe: mysql: implausible handshake length %d", payloadLen)
	}
	payload := make([]byte, payloadLen)
	if _, err := sock.Read(payload, payloadLen, timeoutMs); err != nil {
		return Result{}, fmt.Errorf("probe: mysql: handshake payload: %w", err)
	}

	if len(payload) < 1 {
		return Result{}, fmt.Errorf("probe: mysql: empty handshake payload")
	}
	protocolVersion := payload[0]

	nul := indexByte(payload[1:], 0)
	if nul < 0 {
		return Result{}, fmt.Errorf("probe: mysql: malformed server version string")
	}
	serverVersion := string(payload[1 : 1+nul])
	cursor := 1 + nul + 1 // skip version + NUL

	if cursor+4 > len(payload) {
		return Result{}, fmt.Errorf("probe: mysql: truncated handshake (connection id)")
	}
	connectionID := binary.LittleEndian.Uint32(payload[cursor : cursor+4])
	cursor += 4 + 8 + 1 // connection id, 8-byte auth-plugin-data-part-1, filler

	if cursor+2 > len(payload) {
		return Result{}, fmt.Errorf("probe: mysql: truncated handshake (capability flags lower)")
	}
	capLower := binary.LittleEndian.Uint16(payload[cursor : cursor+2])
	cursor += 2

	var capabilities uint32 = uint32(capLower)
	if cursor+1 <= len(payload) {
		cursor += 1 // character set
		if cursor+2 <= len(payload) {
			cursor += 2 // status flags
			if cursor+2 <= len(payload) {
				capUpper := binary.LittleEndian.Uint16(payload[cursor : cursor+2])
				capabilities |= uint32(capUpper) << 16
			}
		}
	}

	return Result{Detail: fmt.Sprintf("protocol=%d version=%s connection_id=%d capabilities=0x%x", protocolVersion, serverVersion, connectionID, capabilities)}, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
