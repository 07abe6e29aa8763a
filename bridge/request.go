package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/relaycore/httpbridge/internal/cancel"
	"github.com/relaycore/httpbridge/internal/resource"
	"github.com/relaycore/httpbridge/wireengine"
)

// Request is the R-handle payload: a request's body stream, tagged with
// the two-state tracking spec.md's "Fresh"/"Reading" design calls for. In
// this port the underlying reader never actually changes shape between the
// two states (wireengine.Request.Body is already a pull-based io.Reader,
// not a whole-request value that needs converting) — the state still
// matters because UpgradeWS's precondition is "no read has happened yet".
type Request struct {
	conn       *Connection
	connHandle resource.Handle
	raw        *wireengine.Request
	cancel     *cancel.Token

	mu      sync.Mutex
	reading bool // true once a read (or an upgrade attempt) has consumed Fresh
	busy    bool // true while a read is in flight
}

type readResult struct {
	n   int
	err error
}

// ReadRequest copies the next chunk of the request body into buf, returning
// (0, nil) at end of body (spec.md §4.3). At most one read may be in
// flight on a given R-handle at a time.
func (b *Bridge) ReadRequest(ctx context.Context, rh resource.Handle, buf []byte) (int, error) {
	if buf == nil {
		return 0, fmt.Errorf("read-request: %w", ErrNullBuffer)
	}

	req, ok := resource.Get[*Request](b.table, rh)
	if !ok {
		return 0, fmt.Errorf("read-request: %w", ErrBadResource)
	}

	conn, ok := resource.Get[*Connection](b.table, req.connHandle)
	if !ok {
		return 0, fmt.Errorf("read-request: %w", ErrBadResource)
	}

	req.mu.Lock()
	if req.busy {
		req.mu.Unlock()
		return 0, fmt.Errorf("read-request: %w", ErrBusy)
	}
	req.busy = true
	req.reading = true
	req.mu.Unlock()

	// busy is cleared by the goroutine itself, not by this call returning:
	// ctx/cancellation below can make ReadRequest return before the
	// underlying Read does (io.Reader has no way to abort a call already in
	// flight), and clearing busy here would let a second ReadRequest start
	// a second goroutine racing the first one on raw.Body and buf.
	resultCh := make(chan readResult, 1)
	go func() {
		n, err := req.raw.Body.Read(buf)
		req.mu.Lock()
		req.busy = false
		req.mu.Unlock()
		resultCh <- readResult{n, err}
	}()

	select {
	case r := <-resultCh:
		if r.err == nil || r.err == io.EOF {
			return r.n, nil
		}
		b.closeConnection(req.connHandle, conn)
		return r.n, fmt.Errorf("read-request: %w: %v", ErrTransport, r.err)

	case <-ctx.Done():
		return 0, ctx.Err()

	case <-req.cancel.Done():
		return 0, ErrCancelled

	case <-conn.cancel.Done():
		return 0, ErrCancelled
	}
}
