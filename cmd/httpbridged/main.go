// Command httpbridged is a minimal demonstration host for the bridge
// package: it serves a handful of fixed routes and a WebSocket echo
// endpoint, exercising every external operation spec.md names — NextRequest,
// ReadRequest, Respond, WriteResponse, CloseResponse, UpgradeWS.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/relaycore/httpbridge/app"
	"github.com/relaycore/httpbridge/bridge"
	"github.com/relaycore/httpbridge/config"
	"github.com/relaycore/httpbridge/internal/header"
	"github.com/relaycore/httpbridge/internal/resource"
)

func main() {
	cfg, err := config.LoadFromFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	application := app.New(cfg)
	application.Handle(route)

	log.Printf("starting httpbridged")
	if err := application.Run(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func route(ctx context.Context, b *bridge.Bridge, req *bridge.NextRequestResult) {
	path := pathOf(req.URL)

	switch {
	case path == "/" && req.Method == "GET":
		respondText(ctx, b, req.Sender, 200, "welcome to httpbridge\n")

	case path == "/echo" && req.Method == "POST":
		handleEcho(ctx, b, req)

	case path == "/ws":
		handleWebSocket(ctx, b, req)

	default:
		respondText(ctx, b, req.Sender, 404, "not found\n")
	}
}

func handleEcho(ctx context.Context, b *bridge.Bridge, req *bridge.NextRequestResult) {
	if req.Request == nil {
		respondText(ctx, b, req.Sender, 400, "missing body\n")
		return
	}

	bh, err := b.Respond(ctx, req.Sender, 200, nil, true, nil)
	if err != nil {
		log.Printf("respond: %v", err)
		return
	}

	buf := make([]byte, 4096)
	for {
		n, err := b.ReadRequest(ctx, *req.Request, buf)
		if err != nil {
			log.Printf("read-request: %v", err)
			return
		}
		if n == 0 {
			break
		}
		if err := b.WriteResponse(ctx, *bh, buf[:n]); err != nil {
			log.Printf("write-response: %v", err)
			return
		}
	}
	if err := b.CloseResponse(ctx, *bh); err != nil {
		log.Printf("close-response: %v", err)
	}
}

func handleWebSocket(ctx context.Context, b *bridge.Bridge, req *bridge.NextRequestResult) {
	if req.Request == nil {
		respondText(ctx, b, req.Sender, 400, "not a websocket request\n")
		return
	}

	key, ok := headerValue(req.Headers, "Sec-WebSocket-Key")
	if !ok {
		respondText(ctx, b, req.Sender, 400, "missing Sec-WebSocket-Key\n")
		return
	}

	responseHeaders := []header.Field{
		{Name: "Connection", Value: "Upgrade"},
		{Name: "Upgrade", Value: "websocket"},
		{Name: "Sec-WebSocket-Accept", Value: b.WSAcceptHeader(key)},
	}

	if _, err := b.Respond(ctx, req.Sender, 101, responseHeaders, false, nil); err != nil {
		log.Printf("respond(101): %v", err)
		return
	}

	wsh, err := b.UpgradeWS(ctx, *req.Request)
	if err != nil {
		log.Printf("upgrade-ws: %v", err)
		return
	}

	session, ok := b.WSSession(wsh)
	if !ok {
		log.Printf("upgrade-ws: missing websocket session")
		return
	}
	defer session.Close()

	for {
		msg, err := session.ReadMessage()
		if err != nil {
			return
		}
		if err := session.WriteMessage(msg.OpCode, msg.Payload); err != nil {
			return
		}
	}
}

func respondText(ctx context.Context, b *bridge.Bridge, sh resource.Handle, status int, body string) {
	if _, err := b.Respond(ctx, sh, status, nil, false, []byte(body)); err != nil {
		log.Printf("respond: %v", err)
	}
}

func headerValue(fields []header.Field, name string) (string, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// pathOf strips "scheme://host" from a reconstructed URL, leaving the
// path-and-query portion NextRequest already guarantees starts with "/".
func pathOf(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		rest := url[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return rest[j:]
		}
		return "/"
	}
	return url
}
