package bridge

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

// clientResult is what a background reader collects off the client side of
// a pipeConn while the test goroutine drives Respond/WriteResponse/
// CloseResponse. net.Pipe is synchronous and unbuffered, so the engine's
// writes (head, inline body, each streamed chunk) block until something
// reads them — every test below must have a concurrent reader running
// before it calls an operation that writes to the wire, or engine and test
// goroutine deadlock against each other.
type clientResult struct {
	status int
	body   []byte
	err    error
}

// readClientResponse reads one full HTTP response (headers plus body,
// chunked or fixed-length) off client in the background and delivers it on
// the returned channel once complete.
func readClientResponse(client net.Conn) <-chan clientResult {
	out := make(chan clientResult, 1)
	go func() {
		resp, err := http.ReadResponse(bufio.NewReader(client), nil)
		if err != nil {
			out <- clientResult{err: err}
			return
		}
		body, err := io.ReadAll(resp.Body)
		out <- clientResult{status: resp.StatusCode, body: body, err: err}
	}()
	return out
}

// pipeConn gives each test a connected in-memory net.Conn pair so the
// engine's real read/write loop runs against a fake client.
func pipeConn(t *testing.T) (client net.Conn, server net.Conn) {
	t.Helper()
	client, server = net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func writeRequest(t *testing.T, w io.Writer, raw string) {
	t.Helper()
	if _, err := io.WriteString(w, raw); err != nil {
		t.Fatalf("write request: %v", err)
	}
}

func withDeadline(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 2*time.Second)
}

func TestSimpleGETInlineResponse(t *testing.T) {
	client, server := pipeConn(t)
	b := New()
	ctx, cancel := withDeadline(t)
	defer cancel()

	ch := b.Register(ctx, server, "http")

	go writeRequest(t, client, "GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n")

	next, err := b.NextRequest(ctx, ch)
	if err != nil || next == nil {
		t.Fatalf("NextRequest: %v, %+v", err, next)
	}
	if next.Method != "GET" || next.URL != "http://example.com/hello" {
		t.Fatalf("unexpected tuple: %+v", next)
	}
	if next.Request != nil {
		t.Fatalf("GET with no body should have no R-handle")
	}

	resCh := readClientResponse(client)

	if _, err := b.Respond(ctx, next.Sender, 200, nil, false, []byte("hi")); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	select {
	case res := <-resCh:
		if res.err != nil {
			t.Fatalf("read response: %v", res.err)
		}
		if res.status != 200 {
			t.Fatalf("unexpected status %d", res.status)
		}
		if string(res.body) != "hi" {
			t.Fatalf("unexpected body %q", res.body)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response")
	}
}

func TestPOSTWithStreamedBody(t *testing.T) {
	client, server := pipeConn(t)
	b := New()
	ctx, cancel := withDeadline(t)
	defer cancel()

	ch := b.Register(ctx, server, "http")

	body := "abcdef"
	go writeRequest(t, client, "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Length: 6\r\n\r\n"+body)

	next, err := b.NextRequest(ctx, ch)
	if err != nil || next == nil {
		t.Fatalf("NextRequest: %v", err)
	}
	if next.Request == nil {
		t.Fatalf("POST with Content-Length should have an R-handle")
	}

	var got []byte
	buf := make([]byte, 4)
	for {
		n, err := b.ReadRequest(ctx, *next.Request, buf)
		if err != nil {
			t.Fatalf("ReadRequest: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != body {
		t.Fatalf("got body %q, want %q", got, body)
	}

	resCh := readClientResponse(client)

	bh, err := b.Respond(ctx, next.Sender, 200, nil, true, nil)
	if err != nil || bh == nil {
		t.Fatalf("Respond (streamed): %v, %v", err, bh)
	}
	if err := b.WriteResponse(ctx, *bh, []byte("chunk1")); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	if err := b.CloseResponse(ctx, *bh); err != nil {
		t.Fatalf("CloseResponse: %v", err)
	}

	select {
	case res := <-resCh:
		if res.err != nil {
			t.Fatalf("read response: %v", res.err)
		}
		if res.status != 200 {
			t.Fatalf("unexpected status %d", res.status)
		}
		if string(res.body) != "chunk1" {
			t.Fatalf("unexpected body %q", res.body)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response")
	}
}

func TestCookieCoalescingInNextRequest(t *testing.T) {
	client, server := pipeConn(t)
	b := New()
	ctx, cancel := withDeadline(t)
	defer cancel()

	ch := b.Register(ctx, server, "http")
	go writeRequest(t, client, "GET / HTTP/1.1\r\nHost: x\r\nCookie: a=1\r\nCookie: b=2\r\n\r\n")

	next, err := b.NextRequest(ctx, ch)
	if err != nil || next == nil {
		t.Fatalf("NextRequest: %v", err)
	}

	var cookieVal string
	found := 0
	for _, f := range next.Headers {
		if strings.EqualFold(f.Name, "cookie") {
			found++
			cookieVal = f.Value
		}
	}
	if found != 1 {
		t.Fatalf("expected exactly one coalesced cookie header, got %d", found)
	}
	if cookieVal != "a=1; b=2" {
		t.Fatalf("unexpected coalesced cookie value %q", cookieVal)
	}
}

func TestPeerHangupBetweenRequestsIsBenign(t *testing.T) {
	client, server := pipeConn(t)
	b := New()
	ctx, cancel := withDeadline(t)
	defer cancel()

	ch := b.Register(ctx, server, "http")
	go client.Close()

	next, err := b.NextRequest(ctx, ch)
	if err != nil {
		t.Fatalf("expected clean end-of-connection, got error: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil tuple on hangup, got %+v", next)
	}
}

func TestWebSocketUpgrade(t *testing.T) {
	client, server := pipeConn(t)
	b := New()
	ctx, cancel := withDeadline(t)
	defer cancel()

	ch := b.Register(ctx, server, "http")

	go writeRequest(t, client,
		"GET /ws HTTP/1.1\r\nHost: x\r\nConnection: Upgrade\r\nUpgrade: websocket\r\nSec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n")

	next, err := b.NextRequest(ctx, ch)
	if err != nil || next == nil {
		t.Fatalf("NextRequest: %v", err)
	}
	if next.Request == nil {
		t.Fatalf("upgrade candidate should get an R-handle")
	}

	accept := b.WSAcceptHeader("dGhlIHNhbXBsZSBub25jZQ==")
	if accept != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("unexpected accept key %q", accept)
	}

	// The 101 response has no body, so http.ReadResponse's handling of
	// 1xx status codes is nothing worth depending on here — just drain the
	// status line, which is all that's needed to unblock the engine's
	// flush (UpgradeWS then waits on the engine's Done, which only closes
	// once that flush has returned).
	statusCh := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(client).ReadString('\n')
		statusCh <- line
	}()

	if _, err := b.Respond(ctx, next.Sender, 101, nil, false, nil); err != nil {
		t.Fatalf("Respond(101): %v", err)
	}

	select {
	case line := <-statusCh:
		if !strings.HasPrefix(line, "HTTP/1.1 101") {
			t.Fatalf("unexpected status line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for 101 status line")
	}

	wsh, err := b.UpgradeWS(ctx, *next.Request)
	if err != nil {
		t.Fatalf("UpgradeWS: %v", err)
	}
	if wsh == 0 {
		t.Fatalf("expected a non-zero WS handle")
	}
}

func TestUpgradeAfterReadFails(t *testing.T) {
	client, server := pipeConn(t)
	b := New()
	ctx, cancel := withDeadline(t)
	defer cancel()

	ch := b.Register(ctx, server, "http")
	go writeRequest(t, client, "POST /x HTTP/1.1\r\nHost: x\r\nContent-Length: 3\r\n\r\nabc")

	next, err := b.NextRequest(ctx, ch)
	if err != nil || next == nil || next.Request == nil {
		t.Fatalf("NextRequest: %v", err)
	}

	buf := make([]byte, 3)
	if _, err := b.ReadRequest(ctx, *next.Request, buf); err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}

	if _, err := b.UpgradeWS(ctx, *next.Request); err == nil {
		t.Fatalf("expected UpgradeWS to fail once a read has happened")
	}
}
