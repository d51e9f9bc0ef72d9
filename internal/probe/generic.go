package probe

import (
	"fmt"

	"github.com/ocochard/monit/internal/model"
	"github.com/ocochard/monit/internal/netio"
)

const expectBufferMax = 2048 // original_source/src/protocols/generic.c: Run.expectbuffer default

// Generic drives a rule's send/expect program: each step optionally sends
// a byte string (possibly containing \0xNN escapes) and optionally
// expects a regex match on the next line read, grounded on
// original_source/src/protocols/generic.c's check_generic.
func Generic(sock *netio.Socket, steps []model.SendExpectStep, timeoutMs int) (Result, error) {
	for i, step := range steps {
		if step.Send != "" {
			if err := sock.Print(timeoutMs, "%s", string(unescapeSendBuffer(step.Send))); err != nil {
				return Result{}, fmt.Errorf("probe: generic: step %d send: %w", i, err)
			}
		}
		if step.Expect != "" {
			line, _, err := sock.ReadLine(expectBufferMax, timeoutMs)
			if err != nil {
				return Result{}, fmt.Errorf("probe: generic: step %d read: %w", i, err)
			}
			ok, err := matchExpect(step.Expect, line)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				return Result{}, fmt.Errorf("probe: generic: step %d: expected %q, got %q", i, step.Expect, line)
			}
		}
	}
	return Result{}, nil
}
