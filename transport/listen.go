// Package transport owns the listening socket and the accept loop that
// feeds raw connections into bridge.Register — the Go-idiomatic
// replacement for the teacher's epoll/kqueue poller: one goroutine per
// connection instead of one goroutine polling every fd (see DESIGN.md).
package transport

import (
	"context"
	"log"
	"net"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/relaycore/httpbridge/bridge"
	"github.com/relaycore/httpbridge/internal/resource"
)

// Listener wraps a net.Listener configured with SO_REUSEPORT, so multiple
// processes (or a restarting one) can bind the same address without
// racing — the socket-level tuning the teacher's acceptConnections did by
// hand with syscall.SetsockoptInt, expressed here through net.ListenConfig's
// Control hook since we listen through net.Listener rather than a raw fd.
type Listener struct {
	ln     net.Listener
	bridge *bridge.Bridge
	scheme string
}

// Listen binds addr and returns a Listener ready to Serve.
func Listen(addr, scheme string, b *bridge.Bridge) (*Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Listener{ln: ln, bridge: b, scheme: scheme}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve accepts connections until ctx is done or the listener is closed,
// registering each one with the bridge and tuning its socket the way the
// teacher's acceptConnections did (TCP_NODELAY, SO_KEEPALIVE). onAccept is
// called with each connection's C-handle and a correlation id suitable for
// log lines; it is expected to return quickly (spawn its own goroutine to
// drive the NextRequest loop).
func (l *Listener) Serve(ctx context.Context, onAccept func(id string, ch resource.Handle)) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		id := uuid.NewString()
		tuneSocket(conn)

		log.Printf("accepted connection %s from %s", id, conn.RemoteAddr())
		ch := l.bridge.Register(ctx, conn, l.scheme)
		onAccept(id, ch)
	}
}

func tuneSocket(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tcp.SetNoDelay(true)
	_ = tcp.SetKeepAlive(true)
}
