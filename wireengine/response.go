package wireengine

import "github.com/relaycore/httpbridge/internal/header"

// Response is the head + body-production plan the host hands back to the
// engine through a Call's reply channel. Exactly one of InlineBody (with
// HasInline true) or Stream (non-nil) describes the body.
type Response struct {
	Status  int
	Headers []header.Field

	HasInline  bool
	InlineBody []byte

	// Stream receives one StreamChunk per write-response call, in call
	// order, followed by exactly one StreamChunk with Data == nil to end
	// the body (close-response). Only set when HasInline is false.
	Stream chan *StreamChunk

	// HeadAck receives exactly one value once the engine has attempted to
	// flush the status line and headers (and, for an inline body, the body
	// too): nil on success, the write error otherwise. This is the
	// respond operation's synchronization point with the engine goroutine —
	// the Go-channel replacement for spec.md's "co-poll the engine once so
	// headers are flushed".
	HeadAck chan error
}

// StreamChunk is one body write (or, with Data == nil, the end-of-body
// signal) submitted to a streaming Response. Reply receives the write's
// outcome once the engine has flushed it (or failed to).
type StreamChunk struct {
	Data  []byte
	Reply chan error
}

// Call is the single-element mailbox payload: one parsed request plus the
// one-shot channel the host's respond operation delivers a Response
// through. This is the ServiceSlot's contents (spec.md C3).
type Call struct {
	Req    *Request
	RespCh chan *Response
}
