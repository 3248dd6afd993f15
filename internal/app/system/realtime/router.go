// internal/app/system/realtime/router.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dalemusser/labflow/internal/app/system/metrics"
	"go.uber.org/zap"
)

// DefaultWriteTimeout bounds a single send when the Router has no other limit.
const DefaultWriteTimeout = 10 * time.Second

// Router delivers payloads to live connections. It never persists and
// never retries.
type Router struct {
	reg          *Registry
	logger       *zap.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration
}

// NewRouter creates a Router over reg. m may be nil.
func NewRouter(reg *Registry, logger *zap.Logger, m *metrics.Metrics, writeTimeout time.Duration) *Router {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Router{reg: reg, logger: logger, metrics: m, writeTimeout: writeTimeout}
}

// DeliverToUser sends payload to every open connection of userID. It
// reports whether at least one send was attempted on an open connection;
// false means the user is unreachable, which is not an error. A failing
// connection is logged and skipped.
func (rt *Router) DeliverToUser(ctx context.Context, userID int64, payload any) bool {
	conns := rt.reg.ConnectionsOf(userID)
	if len(conns) == 0 {
		rt.metrics.Delivery(false)
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		rt.logger.Error("marshal outbound frame", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}

	attempted := false
	for _, c := range conns {
		if !c.Open() {
			continue
		}
		attempted = true
		rt.send(ctx, c, data)
	}
	rt.metrics.Delivery(attempted)
	return attempted
}

// SendTo sends payload to a single connection.
func (rt *Router) SendTo(ctx context.Context, c *Connection, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbound frame: %w", err)
	}
	if !c.Open() {
		return fmt.Errorf("connection %s is closed", c.ID)
	}
	return rt.send(ctx, c, data)
}

// Broadcast sends payload to every open connection except those of
// exceptUser, and returns how many sends were attempted.
func (rt *Router) Broadcast(ctx context.Context, payload any, exceptUser int64) int {
	data, err := json.Marshal(payload)
	if err != nil {
		rt.logger.Error("marshal broadcast frame", zap.Error(err))
		return 0
	}

	n := 0
	for _, c := range rt.reg.Snapshot() {
		if c.UserID == exceptUser || !c.Open() {
			continue
		}
		n++
		rt.send(ctx, c, data)
	}
	return n
}

func (rt *Router) send(ctx context.Context, c *Connection, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, rt.writeTimeout)
	defer cancel()

	if err := c.t.Send(ctx, data); err != nil {
		rt.metrics.SendFailed()
		rt.logger.Warn("send to connection failed",
			zap.String("conn_id", c.ID),
			zap.Int64("user_id", c.UserID),
			zap.Error(err))
		return err
	}
	return nil
}
