package bridge

import (
	"context"
	"fmt"

	"github.com/relaycore/httpbridge/internal/resource"
	"github.com/relaycore/httpbridge/wsconn"
)

// UpgradeWS steals the raw byte stream behind a request's connection once
// the caller has already sent a 101 response for it via Respond, and hands
// back a WS-handle for the resulting WebSocket session (spec.md §4.5). rh
// must still be Fresh — no ReadRequest may have run against it.
func (b *Bridge) UpgradeWS(ctx context.Context, rh resource.Handle) (resource.Handle, error) {
	req, ok := resource.Take[*Request](b.table, rh)
	if !ok {
		return 0, fmt.Errorf("upgrade-ws: %w", ErrBadResource)
	}

	req.mu.Lock()
	if req.reading {
		req.mu.Unlock()
		return 0, fmt.Errorf("upgrade-ws: request is not Fresh: %w", ErrBadResource)
	}
	req.reading = true
	req.mu.Unlock()

	conn, ok := resource.Get[*Connection](b.table, req.connHandle)
	if !ok {
		return 0, fmt.Errorf("upgrade-ws: %w", ErrBadResource)
	}

	select {
	case <-conn.engine.Done():
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-conn.cancel.Done():
		return 0, ErrCancelled
	}

	if err := conn.engine.Err(); err != nil && !isBenignHangup(err) {
		return 0, fmt.Errorf("upgrade-ws: %w: %v", ErrTransport, err)
	}

	raw, br := conn.engine.Hijack()
	session := wsconn.NewServer(raw, br)

	h := b.table.Add(session)
	return h, nil
}

// WSSession returns the WebSocket session stored at a WS-handle returned
// by UpgradeWS.
func (b *Bridge) WSSession(h resource.Handle) (*wsconn.Conn, bool) {
	return resource.Get[*wsconn.Conn](b.table, h)
}
