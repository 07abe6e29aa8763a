// Package app wires config, transport, and bridge together into the
// minimal host demonstrated by cmd/httpbridged: routing and request
// handling are left to the embedder (spec.md's adapter is not a web
// framework), but accepting connections, driving each one's NextRequest
// loop, and shutting down cleanly are ambient concerns every host needs.
package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relaycore/httpbridge/bridge"
	"github.com/relaycore/httpbridge/config"
	"github.com/relaycore/httpbridge/internal/resource"
	"github.com/relaycore/httpbridge/transport"
)

// Handler answers one request pulled off a connection's NextRequest loop.
// It owns the full exchange: reading any body, calling Respond, and
// writing/closing a streamed body if it asked for one.
type Handler func(ctx context.Context, b *bridge.Bridge, req *bridge.NextRequestResult)

// App is the application instance: a bridge, the listener it drives, and
// the single handler every request is dispatched to.
type App struct {
	cfg     *config.Config
	bridge  *bridge.Bridge
	handler Handler
}

// New creates an application instance bound to cfg.
func New(cfg *config.Config) *App {
	return &App{
		cfg:    cfg,
		bridge: bridge.New(),
	}
}

// Bridge returns the underlying bridge, for handlers that need direct
// access (e.g. to call WSAcceptHeader while building a 101 response).
func (a *App) Bridge() *bridge.Bridge { return a.bridge }

// Handle registers the request handler. Must be called before Run.
func (a *App) Handle(h Handler) { a.handler = h }

// Run starts the listener and blocks serving connections until the
// process receives SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.awaitSignal(cancel)

	ln, err := transport.Listen(a.cfg.ListenAddr, a.cfg.Scheme, a.bridge)
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Printf("httpbridged listening on %s [%s]", a.cfg.ListenAddr, a.cfg.Scheme)

	return ln.Serve(ctx, func(id string, ch resource.Handle) {
		go a.serveConnection(ctx, id, ch)
	})
}

func (a *App) serveConnection(ctx context.Context, id string, ch resource.Handle) {
	for {
		next, err := a.bridge.NextRequest(ctx, ch)
		if err != nil {
			log.Printf("connection %s: next-request: %v", id, err)
			return
		}
		if next == nil {
			return // connection ended cleanly
		}
		a.handler(ctx, a.bridge, next)
	}
}

func (a *App) awaitSignal(cancel context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("signal received: %v, shutting down", sig)
	cancel()
}
