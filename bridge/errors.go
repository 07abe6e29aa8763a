package bridge

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/relaycore/httpbridge/internal/cancel"
	"github.com/relaycore/httpbridge/wireengine"
)

// Error taxonomy (spec.md §7). Every operation that fails returns one of
// these, wrapped with fmt.Errorf("...: %w", ...) where extra context helps;
// callers should classify with errors.Is.
var (
	// ErrBadResource: handle not found, wrong type, or parent dead.
	ErrBadResource = errors.New("bad resource")

	// ErrNullBuffer: a required buffer argument was absent (nil).
	ErrNullBuffer = errors.New("null buffer")

	// ErrCommunication: the one-shot to the engine was dropped; the peer
	// is already gone and there is no sender left to retry against.
	ErrCommunication = errors.New("internal communication error")

	// ErrCancelled: the resource's token fired during the operation.
	ErrCancelled = cancel.ErrCancelled

	// ErrTransport: a non-benign error bubbled up from the engine.
	ErrTransport = errors.New("transport error")

	// ErrBusy: a second conflicting operation was attempted concurrently
	// on a handle that only tolerates one in-flight use (§5's
	// "shared-resource policy" — a programmer error, not a race).
	ErrBusy = errors.New("resource busy")
)

// isBenignHangup classifies an engine error the way spec.md §7 classifies
// a "not-connected" I/O error: ordinary end-of-connection, not a fault.
// readRequest's own io.EOF (peer closed between requests) and the common
// OS-level "connection reset/closed" errors all count.
func isBenignHangup(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, wireengine.ErrProtocol) {
		return false
	}
	return false
}
