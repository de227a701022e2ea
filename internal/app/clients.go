package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ftkghost/SuperSaver/internal/platform/logger"
	"github.com/ftkghost/SuperSaver/internal/runlock"
)

type Clients struct {
	Redis  *goredis.Client
	Locker runlock.Locker
}

// wireClients falls back to an in-process lock when REDIS_ADDR is unset. That
// only guards against overlapping sessions inside one process.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set; crawl lock is process-local")
		return Clients{Locker: runlock.NewLocalLocker()}, nil
	}
	rdb, err := runlock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	return Clients{
		Redis:  rdb,
		Locker: runlock.NewRedisLocker(rdb, log),
	}, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
