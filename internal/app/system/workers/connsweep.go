// internal/app/system/workers/connsweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"go.uber.org/zap"
)

// DefaultSweepInterval is how often dead connections are reclaimed.
const DefaultSweepInterval = 30 * time.Second

// Sweeper is the part of the registry the worker needs.
type Sweeper interface {
	SweepDead() []realtime.Departure
	IsOnline(userID int64) bool
}

// Announcer broadcasts presence edges.
type Announcer interface {
	Announce(ctx context.Context, userID int64, online bool) int
}

// ConnectionSweep is a background worker that removes connections whose
// close event was missed and announces users that went offline as a result.
type ConnectionSweep struct {
	registry Sweeper
	presence Announcer
	log      *zap.Logger
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewConnectionSweep creates a new sweep worker.
//
// Parameters:
//   - registry: the connection registry
//   - presence: broadcaster for offline edges (may be nil)
//   - logger: zap logger for logging
//   - interval: how often to sweep (e.g., 30 seconds)
func NewConnectionSweep(registry Sweeper, presence Announcer, logger *zap.Logger, interval time.Duration) *ConnectionSweep {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &ConnectionSweep{
		registry: registry,
		presence: presence,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *ConnectionSweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("connection sweep worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
// Calling Stop more than once is safe.
func (w *ConnectionSweep) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("connection sweep worker stopped")
	})
}

func (w *ConnectionSweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one pass and returns the number of connections removed.
func (w *ConnectionSweep) Sweep() int {
	gone := w.registry.SweepDead()
	if len(gone) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.interval)
	defer cancel()

	offline := 0
	for _, d := range gone {
		// a new device may have registered since SweepDead released the lock
		if !d.LastForUser || w.registry.IsOnline(d.Conn.UserID) {
			continue
		}
		offline++
		if w.presence != nil {
			w.presence.Announce(ctx, d.Conn.UserID, false)
		}
	}

	w.log.Info("swept dead connections",
		zap.Int("count", len(gone)),
		zap.Int("users_offline", offline))
	return len(gone)
}
