// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/labflow/internal/app/system/realtime"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the sweep worker, closes every live socket with 1001
// (going away) and disconnects MongoDB.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc != nil {
		svc.stop(logger)
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *services) stop(logger *zap.Logger) {
	s.sweep.Stop()
	n := s.registry.CloseAll(realtime.CloseGoingAway, "server shutting down")
	s.limiter.Close()
	logger.Info("closed live sockets", zap.Int("count", n))
}
