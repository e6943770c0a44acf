package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/ruralpay/cartable/internal/config"
	"github.com/ruralpay/cartable/internal/logging"
	"go.uber.org/zap"
)

// OpenRedis returns nil when Redis is unreachable so callers can fall back to in-process state.
func OpenRedis(ctx context.Context, cfg config.RedisConfig, logger *logging.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis connection failed, continuing without redis",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		rdb.Close()
		return nil
	}

	logger.Info("redis connection established", zap.String("addr", cfg.Addr()))
	return rdb
}
