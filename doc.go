/*
Package httpbridge adapts a raw, already-accepted TCP connection into the
pull-style operations a host embeds an HTTP/1.1 server through: the host
asks for the next request, reads its body on its own schedule, and answers
with either a fixed-length or streamed response — instead of the
connection pushing requests at a handler the way net/http does.

The same pull model extends to WebSocket: once a host has sent a 101
response for an upgrade-candidate request, it steals the raw byte stream
and gets back a framed WebSocket session.

Quick Start

	cfg, _ := config.Load("")
	application := app.New(cfg)
	application.Handle(func(ctx context.Context, b *bridge.Bridge, req *bridge.NextRequestResult) {
	    b.Respond(ctx, req.Sender, 200, nil, false, []byte("hello\n"))
	})
	application.Run()

Modules

  - bridge: the adapter core — Register, NextRequest, ReadRequest, Respond,
    WriteResponse, CloseResponse, UpgradeWS, WSAcceptHeader
  - wireengine: the per-connection HTTP/1.1 read/respond loop bridge drives
  - wsconn: the post-handshake WebSocket frame codec
  - internal/resource: the opaque handle table (C/R/S/B/WS-handles)
  - internal/cancel: one-shot cancellation tokens with parent propagation
  - internal/header: cookie coalescing, URL reconstruction, upgrade detection
  - internal/wsaccept: the Sec-WebSocket-Accept hash
  - internal/bufpool: pooled bufio.Reader/Writer pairs
  - transport: the listening socket and accept loop
  - config: defaults + YAML file + environment variable configuration
  - app: a minimal host wiring config, transport, and bridge together
  - cmd/httpbridged: a demonstration binary built on app

For more information, see SPEC_FULL.md and DESIGN.md in this repository.
*/
package httpbridge
