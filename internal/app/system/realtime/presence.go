// internal/app/system/realtime/presence.go
package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Presence announces online/offline edges to every other connected user.
// Callers invoke Announce only on true edges, as reported by
// Registry.Register (first) and Registry.Remove (LastForUser).
type Presence struct {
	router *Router
	logger *zap.Logger
	now    func() time.Time
}

// NewPresence creates a Presence broadcaster.
func NewPresence(router *Router, logger *zap.Logger) *Presence {
	return &Presence{router: router, logger: logger, now: time.Now}
}

// Announce sends a userStatus event for userID to all connections not
// belonging to userID. It returns the number of connections reached.
func (p *Presence) Announce(ctx context.Context, userID int64, online bool) int {
	ev := UserStatusEvent{
		Type:      TypeUserStatus,
		UserID:    userID,
		Online:    online,
		Timestamp: p.now().UTC(),
	}
	n := p.router.Broadcast(ctx, ev, userID)
	p.logger.Debug("presence announced",
		zap.Int64("user_id", userID),
		zap.Bool("online", online),
		zap.Int("recipients", n))
	return n
}
