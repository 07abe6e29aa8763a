package wireengine

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"strconv"
	"sync"

	"golang.org/x/net/http/httpguts"

	"github.com/relaycore/httpbridge/internal/bufpool"
	"github.com/relaycore/httpbridge/internal/cancel"
	"github.com/relaycore/httpbridge/internal/header"
)

// Conn drives one connection's HTTP/1.1 read/respond loop on its own
// goroutine (the Go-idiomatic replacement for spec.md's single cooperative
// "engine future" — see DESIGN.md's cooperative-polling open question).
// It never blocks the caller: bridge observes it by selecting over Slot(),
// Done(), and its own cancellation.
type Conn struct {
	raw       net.Conn
	br        *bufio.Reader
	bw        *bufio.Writer
	Scheme    string
	LocalAddr string

	slot chan *Call
	done chan struct{}

	mu       sync.Mutex
	err      error
	hijacked bool

	cancelTok *cancel.Token
}

// Start begins serving raw over the HTTP/1.1 protocol, scoped to ctx
// (cancelling ctx has the same effect as Cancel; it does not close raw).
// Its read/write buffers come from internal/bufpool rather than fresh
// bufio.NewReaderSize/NewWriterSize calls, the same per-connection
// allocation the teacher's BytePool existed to avoid.
func Start(ctx context.Context, raw net.Conn, scheme string) *Conn {
	c := &Conn{
		raw:       raw,
		br:        bufpool.GetReader(raw),
		bw:        bufpool.GetWriter(raw),
		Scheme:    scheme,
		LocalAddr: raw.LocalAddr().String(),
		slot:      make(chan *Call, 1),
		done:      make(chan struct{}),
		cancelTok: cancel.New(ctx),
	}
	go c.serve()
	return c
}

// Slot is the ServiceSlot (C3): one parsed request + reply channel at a
// time, offered here once the previous exchange has fully completed.
func (c *Conn) Slot() <-chan *Call { return c.slot }

// Done is closed once the connection's goroutine has exited, whether
// cleanly, on a transport error (see Err), or via cancellation.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection: io.EOF when the peer hung
// up between requests, another read/write error for a transport failure, or
// nil when the loop ended by cancellation or after a non-keep-alive exchange.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Cancel fires the connection's cancellation token. The serve loop stops at
// its next wait on the slot, the response channel, or a streamed body chunk;
// a socket read or write already in progress is not interrupted (Close
// releases it by closing the socket).
func (c *Conn) Cancel() { c.cancelTok.Fire() }

// Close releases the underlying socket and, unless the connection was
// hijacked for a WebSocket upgrade, returns its buffers to the pool. Safe
// to call after Done().
func (c *Conn) Close() error {
	c.mu.Lock()
	hijacked := c.hijacked
	c.mu.Unlock()

	if !hijacked {
		bufpool.PutReader(c.br)
		bufpool.PutWriter(c.bw)
	}
	return c.raw.Close()
}

func (c *Conn) setErr(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *Conn) serve() {
	defer close(c.done)

	for {
		req, err := readRequest(c.br)
		if err != nil {
			c.setErr(err)
			return
		}

		call := &Call{Req: req, RespCh: make(chan *Response, 1)}

		select {
		case c.slot <- call:
		case <-c.cancelTok.Done():
			return
		}

		var resp *Response
		select {
		case resp = <-call.RespCh:
		case <-c.cancelTok.Done():
			return
		}
		if resp == nil {
			// respond's one-shot sender was dropped without sending: the
			// connection has nothing left to say, end the exchange.
			return
		}

		if err := c.writeHead(resp); err != nil {
			c.setErr(err)
			ackHeadOnce(resp, err)
			return
		}

		if resp.Status == http.StatusSwitchingProtocols {
			// The host is about to steal the raw connection (bridge's
			// UpgradeWS). There is no HTTP body and nothing further for
			// this goroutine to parse: flush the (typically empty) body,
			// ack, and yield without touching br/raw again.
			err := c.writeInlineBody(resp.InlineBody)
			c.setErr(err)
			ackHeadOnce(resp, err)
			return
		}

		if resp.HasInline {
			err := c.writeInlineBody(resp.InlineBody)
			ackHeadOnce(resp, err)
			if err != nil {
				c.setErr(err)
				return
			}
		} else {
			if err := c.bw.Flush(); err != nil {
				c.setErr(err)
				ackHeadOnce(resp, err)
				return
			}
			ackHeadOnce(resp, nil)
			if err := c.writeStreamedBody(resp.Stream); err != nil {
				c.setErr(err)
				return
			}
		}

		if !req.KeepAlive() {
			return
		}
	}
}

func ackHeadOnce(resp *Response, err error) {
	if resp.HeadAck == nil {
		return
	}
	select {
	case resp.HeadAck <- err:
	default:
	}
}

// Hijack returns the raw connection and its buffered reader for a connection
// whose serve loop has already yielded (Done is closed) after a 101
// response — the host must wait on Done before calling this, or it may race
// the goroutine's own last read/write of raw/br.
func (c *Conn) Hijack() (net.Conn, *bufio.Reader) {
	c.mu.Lock()
	c.hijacked = true
	c.mu.Unlock()
	return c.raw, c.br
}

func (c *Conn) writeHead(resp *Response) error {
	if _, err := fmt.Fprintf(c.bw, "HTTP/1.1 %d %s\r\n", resp.Status, http.StatusText(resp.Status)); err != nil {
		return err
	}
	for _, f := range resp.Headers {
		if !httpguts.ValidHeaderFieldName(f.Name) || !httpguts.ValidHeaderFieldValue(f.Value) {
			return fmt.Errorf("%w: invalid response header %q", ErrProtocol, f.Name)
		}
		if _, err := fmt.Fprintf(c.bw, "%s: %s\r\n", f.Name, f.Value); err != nil {
			return err
		}
	}
	if !resp.HasInline {
		if _, ok := findHeader(resp.Headers, "Transfer-Encoding"); !ok {
			if _, err := c.bw.WriteString("Transfer-Encoding: chunked\r\n"); err != nil {
				return err
			}
		}
	}
	_, err := c.bw.WriteString("\r\n")
	return err
}

func findHeader(fields []header.Field, name string) (string, bool) {
	for _, f := range fields {
		if len(f.Name) == len(name) && (f.Name == name) {
			return f.Value, true
		}
	}
	return "", false
}

func (c *Conn) writeInlineBody(body []byte) error {
	if len(body) > 0 {
		if _, err := c.bw.Write(body); err != nil {
			return err
		}
	}
	return c.bw.Flush()
}

func (c *Conn) writeStreamedBody(chunks chan *StreamChunk) error {
	cw := httputil.NewChunkedWriter(c.bw)
	if err := c.bw.Flush(); err != nil {
		return err
	}

	for {
		select {
		case msg := <-chunks:
			if msg.Data == nil {
				// cw.Close writes only the zero-length chunk; the blank
				// line that ends the (empty) trailer section is ours to add.
				err := cw.Close()
				if err == nil {
					_, err = c.bw.WriteString("\r\n")
				}
				if err == nil {
					err = c.bw.Flush()
				}
				msg.Reply <- err
				return err
			}

			_, err := cw.Write(msg.Data)
			if err == nil {
				err = c.bw.Flush()
			}
			msg.Reply <- err
			if err != nil {
				return err
			}
		case <-c.cancelTok.Done():
			return cancel.ErrCancelled
		}
	}
}

// ContentLengthHeader is a small helper bridge uses so both packages agree
// on how a fixed-size body's length is rendered.
func ContentLengthHeader(n int) header.Field {
	return header.Field{Name: "Content-Length", Value: strconv.Itoa(n)}
}
