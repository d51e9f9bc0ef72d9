package probe

import (
	"fmt"

	"github.com/ocochard/monit/internal/netio"
)

const memcacheLen = 24

// Memcache sends a binary-protocol No-op request and validates the
// response magic byte, grounded on
// original_source/src/protocols/memcache.c's check_memcache.
func Memcache(sock *netio.Socket, timeoutMs int) (Result, error) {
	const magicRequest = 0x80
	const magicResponse = 0x81
	const opcodeNoOp = 0x0a

	request := make([]byte, memcacheLen)
	request[0] = magicRequest
	request[1] = opcodeNoOp

	if _, err := sock.Write(request, timeoutMs); err != nil {
		return Result{}, fmt.Errorf("probe: memcache: request: %w", err)
	}

	response := make([]byte, memcacheLen)
	n, err := sock.Read(response, memcacheLen, timeoutMs)
	if err != nil || n != memcacheLen {
		return Result{}, fmt.Errorf("probe: memcache: received %d bytes, expected %d: %v", n, memcacheLen, err)
	}
	if response[0] != magicResponse {
		return Result{}, fmt.Errorf("probe: memcache: invalid response magic 0x%02x", response[0])
	}
	status := uint16(response[6])<<8 | uint16(response[7])
	if status != 0 {
		return Result{}, fmt.Errorf("probe: memcache: response status 0x%04x", status)
	}
	return Result{}, nil
}
