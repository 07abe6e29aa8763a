// Package wireengine is the "assumed available" HTTP/1.x connection-serving
// engine spec.md treats as an external collaborator: it owns the wire
// parser, the body framer, and the per-connection read/write loop. bridge
// drives it through the pull-style operations it exposes (Conn.Slot and the
// Call, Response, and StreamChunk types); wireengine itself never touches
// the host's resource table.
package wireengine

import (
	"io"
	"strings"

	"github.com/relaycore/httpbridge/internal/header"
)

// Request is a parsed HTTP/1.1 request as handed up by a Conn's read loop.
type Request struct {
	Method string
	Target string
	Proto  string

	// Headers preserves on-the-wire order and byte values exactly as
	// parsed; no case folding, no deduplication (that is bridge/header's
	// job, applied when building the host-visible NextRequest tuple).
	Headers []header.Field

	// HasBody reports whether wire framing promises body bytes: a known
	// positive Content-Length, or chunked Transfer-Encoding (whose exact
	// size isn't known up front, so it is conservatively treated as having
	// a body). A request with neither reads io.EOF immediately from Body.
	HasBody bool
	Body    io.Reader
}

// Header returns the first value of the named header (case-insensitive),
// and whether one was present.
func (r *Request) Header(name string) (string, bool) {
	for _, f := range r.Headers {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// KeepAlive reports whether the connection should remain open after this
// request's response completes, per HTTP/1.0 vs HTTP/1.1 defaults and any
// explicit Connection header.
func (r *Request) KeepAlive() bool {
	conn, _ := r.Header("Connection")
	conn = strings.ToLower(conn)

	switch r.Proto {
	case "HTTP/1.0":
		return strings.Contains(conn, "keep-alive")
	default: // HTTP/1.1 and newer default to persistent connections
		return !strings.Contains(conn, "close")
	}
}
