package bridge

import (
	"context"
	"fmt"

	"github.com/relaycore/httpbridge/internal/cancel"
	"github.com/relaycore/httpbridge/internal/header"
	"github.com/relaycore/httpbridge/internal/resource"
	"github.com/relaycore/httpbridge/wireengine"
)

// Connection is the C-handle payload: one accepted socket plus the engine
// goroutine driving its HTTP/1.1 exchanges (spec.md §4.1/§4.2).
type Connection struct {
	self   resource.Handle
	engine *wireengine.Conn
	scheme string
	cancel *cancel.Token
}

// NextRequestResult is the tuple NextRequest hands back: the next parsed
// request's method/headers/URL, its optional body R-handle (present only
// when the request has a body or is a WebSocket upgrade candidate), and
// the one-shot response sender S-handle.
type NextRequestResult struct {
	Request *resource.Handle
	Sender  resource.Handle

	Method  string
	URL     string
	Headers []header.Field
}

// NextRequest blocks until the connection's engine offers a parsed request,
// the connection ends (returns nil, nil), or ctx/the connection's own
// cancellation fires first (spec.md §4.2).
func (b *Bridge) NextRequest(ctx context.Context, ch resource.Handle) (*NextRequestResult, error) {
	conn, ok := resource.Get[*Connection](b.table, ch)
	if !ok {
		return nil, fmt.Errorf("next-request: %w", ErrBadResource)
	}

	select {
	case <-conn.cancel.Done():
		return nil, ErrCancelled
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case <-conn.cancel.Done():
		return nil, ErrCancelled

	case call := <-conn.engine.Slot():
		return b.buildNextRequest(conn, call), nil

	case <-conn.engine.Done():
		err := conn.engine.Err()
		b.closeConnection(ch, conn)
		if err == nil || isBenignHangup(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("next-request: %w: %v", ErrTransport, err)
	}
}

func (b *Bridge) buildNextRequest(conn *Connection, call *wireengine.Call) *NextRequestResult {
	req := call.Req
	isUpgrade := header.IsWebSocketUpgrade(req.Headers)

	hostHeader, _ := req.Header("Host")
	url := header.ReconstructURL(conn.scheme, req.Target, hostHeader, conn.engine.LocalAddr)

	result := &NextRequestResult{
		Method:  req.Method,
		URL:     url,
		Headers: header.Normalize(req.Headers),
	}

	if req.HasBody || isUpgrade {
		r := &Request{
			conn:       conn,
			connHandle: conn.self,
			raw:        req,
			cancel:     cancel.New(context.Background()),
		}
		h := b.table.Add(r)
		result.Request = &h
	}

	sender := &ResponseSender{conn: conn, call: call}
	result.Sender = b.table.Add(sender)

	return result
}
