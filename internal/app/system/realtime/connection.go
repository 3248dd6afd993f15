// internal/app/system/realtime/connection.go

// Package realtime tracks live websocket connections per user and routes
// presence, chat and workflow events to them.
//
// The Registry is the only shared mutable state. Everything that performs
// I/O (Router, Presence, Dispatcher) works on snapshots taken from it and
// never holds its lock while sending.
package realtime

import (
	"context"
	"time"
)

// Close codes used on the wire.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseMissingToken    = 4001
	CloseInvalidToken    = 4002
)

// Transport is the write side of one live socket.
//
// Implementations must make Send non-blocking or bounded by ctx, IsOpen
// cheap and lock-free, and Close idempotent.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	IsOpen() bool
	Close(code int, reason string) error
}

// Metadata describes where a connection came from.
type Metadata struct {
	DeviceID    string
	DeviceLabel string
	RemoteAddr  string
	UserAgent   string
}

// Connection is one registered socket. It is immutable once registered;
// its transport is reachable only through this package.
type Connection struct {
	ID          string
	UserID      int64
	DeviceID    string
	DeviceLabel string
	RemoteAddr  string
	UserAgent   string
	ConnectedAt time.Time

	seq uint64
	t   Transport
}

// Open reports whether the underlying transport is still open.
func (c *Connection) Open() bool {
	return c != nil && c.t != nil && c.t.IsOpen()
}

// Info is the JSON view of a connection used in status endpoints.
type Info struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	DeviceID    string    `json:"deviceId,omitempty"`
	DeviceLabel string    `json:"deviceLabel,omitempty"`
	RemoteAddr  string    `json:"remoteAddress,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// Info returns the public view of c.
func (c *Connection) Info() Info {
	return Info{
		ID:          c.ID,
		UserID:      c.UserID,
		DeviceID:    c.DeviceID,
		DeviceLabel: c.DeviceLabel,
		RemoteAddr:  c.RemoteAddr,
		ConnectedAt: c.ConnectedAt,
	}
}
