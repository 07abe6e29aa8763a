// Package bridge is the adapter core: it owns the resource table and
// exposes the operations a host embeds an HTTP/1.1 (and, post-upgrade,
// WebSocket) server through — Register, NextRequest, ReadRequest, Respond,
// WriteResponse, CloseResponse, UpgradeWS, WSAcceptHeader.
package bridge

import (
	"context"
	"net"

	"github.com/relaycore/httpbridge/internal/cancel"
	"github.com/relaycore/httpbridge/internal/resource"
	"github.com/relaycore/httpbridge/internal/wsaccept"
	"github.com/relaycore/httpbridge/wireengine"
)

// Bridge holds every live C/R/S/B/WS-handle for a process. One Bridge is
// normally shared by every accepted connection.
type Bridge struct {
	table *resource.Table
}

// New returns an empty Bridge.
func New() *Bridge {
	return &Bridge{table: resource.New()}
}

// Register starts serving raw as an HTTP/1.1 connection and returns its
// C-handle. scheme is "http" or "https" (the adapter does no TLS itself —
// that is a transport-layer concern, the same layering spec.md §1 assumes).
// ctx is the parent of the connection's cancellation tokens.
func (b *Bridge) Register(ctx context.Context, raw net.Conn, scheme string) resource.Handle {
	engineConn := wireengine.Start(ctx, raw, scheme)
	c := &Connection{
		engine: engineConn,
		scheme: scheme,
		cancel: cancel.New(ctx),
	}
	h := b.table.Add(c)
	c.self = h
	return h
}

// WSAcceptHeader computes the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key (RFC 6455 §1.3). Hosts call this to build the 101
// response's headers before calling Respond.
func (b *Bridge) WSAcceptHeader(key string) string {
	return wsaccept.Accept(key)
}

// closeConnection tears a connection down and drops it from the table. Safe
// to call more than once for the same handle.
func (b *Bridge) closeConnection(h resource.Handle, c *Connection) {
	if !b.table.Remove(h) {
		return
	}
	c.cancel.Fire()
	c.engine.Cancel()
	_ = c.engine.Close()
}
