// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dalemusser/labflow/internal/app/system/indexes"
	"github.com/dalemusser/labflow/internal/app/system/timeouts"
	"github.com/dalemusser/labflow/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// connectMaxElapsed bounds the ping retry when MongoDB is still starting.
const connectMaxElapsed = 30 * time.Second

// ConnectDB opens the MongoDB client and waits for the server to answer a
// ping, retrying with exponential backoff.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	if err := pingWithRetry(ctx, client, logger); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, err
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize),
		zap.Uint64("min_pool_size", appCfg.MongoMinPoolSize))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

func pingWithRetry(ctx context.Context, client *mongo.Client, logger *zap.Logger) error {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = connectMaxElapsed
	bo := backoff.WithContext(eb, ctx)

	attempt := 0
	op := func() error {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
		defer cancel()
		return client.Ping(pctx, nil)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("MongoDB ping failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", next),
			zap.Error(err))
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return fmt.Errorf("mongo ping after %d attempts: %w", attempt, err)
	}
	return nil
}

// EnsureSchema installs collection validators and indexes. Both steps are
// idempotent, so this runs on every start.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
