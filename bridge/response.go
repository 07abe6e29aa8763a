package bridge

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/relaycore/httpbridge/internal/cancel"
	"github.com/relaycore/httpbridge/internal/header"
	"github.com/relaycore/httpbridge/internal/resource"
	"github.com/relaycore/httpbridge/wireengine"
)

// ResponseSender is the S-handle payload: a one-shot channel to the engine
// goroutine waiting on this exchange's Call.RespCh. Respond consumes it.
type ResponseSender struct {
	conn *Connection
	call *wireengine.Call
}

// ResponseBody is the B-handle payload: the streaming half of a response,
// returned by Respond when the caller asks for a streamed body.
type ResponseBody struct {
	conn   *Connection
	stream chan *wireengine.StreamChunk
	cancel *cancel.Token

	mu   sync.Mutex
	busy bool
}

// Respond sends the response head for sh's exchange. When streamed is
// false, inline is sent as a fixed Content-Length body and Respond returns
// no B-handle; a 101 Switching Protocols response gets no Content-Length
// header (inline is normally empty there). When streamed is true, Respond starts a chunked body and
// returns the B-handle the caller drives with WriteResponse/CloseResponse;
// inline is ignored (spec.md §4.4).
func (b *Bridge) Respond(ctx context.Context, sh resource.Handle, status int, headers []header.Field, streamed bool, inline []byte) (*resource.Handle, error) {
	sender, ok := resource.Take[*ResponseSender](b.table, sh)
	if !ok {
		return nil, fmt.Errorf("respond: %w", ErrBadResource)
	}
	conn := sender.conn

	if _, ok := resource.Get[*Connection](b.table, conn.self); !ok {
		return nil, fmt.Errorf("respond: %w", ErrBadResource)
	}

	resp := &wireengine.Response{
		Status:  status,
		Headers: append([]header.Field(nil), headers...),
		HeadAck: make(chan error, 1),
	}

	var body *ResponseBody
	var bHandle resource.Handle
	if !streamed {
		resp.HasInline = true
		resp.InlineBody = inline
		if status != http.StatusSwitchingProtocols {
			resp.Headers = append(resp.Headers, wireengine.ContentLengthHeader(len(inline)))
		}
	} else {
		resp.Stream = make(chan *wireengine.StreamChunk)
		body = &ResponseBody{conn: conn, stream: resp.Stream, cancel: cancel.New(context.Background())}
	}

	select {
	case sender.call.RespCh <- resp:
	case <-conn.engine.Done():
		return nil, fmt.Errorf("respond: %w", ErrCommunication)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case ackErr := <-resp.HeadAck:
		if ackErr != nil {
			b.closeConnection(conn.self, conn)
			return nil, fmt.Errorf("respond: %w: %v", ErrTransport, ackErr)
		}
	case <-conn.engine.Done():
		err := conn.engine.Err()
		b.closeConnection(conn.self, conn)
		if err != nil && !isBenignHangup(err) {
			return nil, fmt.Errorf("respond: %w: %v", ErrTransport, err)
		}
		return nil, fmt.Errorf("respond: %w", ErrCommunication)
	}

	if body != nil {
		bHandle = b.table.Add(body)
		return &bHandle, nil
	}
	return nil, nil
}

// WriteResponse submits one chunk of a streamed response body, blocking
// until the engine has flushed it (spec.md §4.4's write-body op).
func (b *Bridge) WriteResponse(ctx context.Context, bh resource.Handle, data []byte) error {
	if data == nil {
		return fmt.Errorf("write-response: %w", ErrNullBuffer)
	}

	body, ok := resource.Get[*ResponseBody](b.table, bh)
	if !ok {
		return fmt.Errorf("write-response: %w", ErrBadResource)
	}

	body.mu.Lock()
	if body.busy {
		body.mu.Unlock()
		return fmt.Errorf("write-response: %w", ErrBusy)
	}
	body.busy = true
	body.mu.Unlock()
	defer func() {
		body.mu.Lock()
		body.busy = false
		body.mu.Unlock()
	}()

	return b.sendChunk(ctx, body, data)
}

// CloseResponse ends a streamed response body. The B-handle is invalid
// afterward (spec.md §4.4's close-body op).
func (b *Bridge) CloseResponse(ctx context.Context, bh resource.Handle) error {
	body, ok := resource.Take[*ResponseBody](b.table, bh)
	if !ok {
		return fmt.Errorf("close-response: %w", ErrBadResource)
	}
	return b.sendChunk(ctx, body, nil)
}

func (b *Bridge) sendChunk(ctx context.Context, body *ResponseBody, data []byte) error {
	if _, ok := resource.Get[*Connection](b.table, body.conn.self); !ok {
		return fmt.Errorf("write-response: %w", ErrBadResource)
	}

	msg := &wireengine.StreamChunk{Data: data, Reply: make(chan error, 1)}

	select {
	case body.stream <- msg:
	case <-body.conn.engine.Done():
		return fmt.Errorf("write-response: %w", ErrCommunication)
	case <-body.cancel.Done():
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-msg.Reply:
		if err != nil {
			b.closeConnection(body.conn.self, body.conn)
			return fmt.Errorf("write-response: %w: %v", ErrTransport, err)
		}
		return nil
	case <-body.conn.engine.Done():
		err := body.conn.engine.Err()
		b.closeConnection(body.conn.self, body.conn)
		if err != nil && !isBenignHangup(err) {
			return fmt.Errorf("write-response: %w: %v", ErrTransport, err)
		}
		return fmt.Errorf("write-response: %w", ErrCommunication)
	}
}
