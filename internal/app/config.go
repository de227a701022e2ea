package app

import (
	"time"

	"github.com/ftkghost/SuperSaver/internal/crawl"
	"github.com/ftkghost/SuperSaver/internal/platform/envutil"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type Config struct {
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string

	// CrawlConfigPath points at a YAML sources file. Empty uses the built-in
	// source list.
	CrawlConfigPath string
	Concurrency     int
	LockTTL         time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		RedisAddr:       envutil.String("REDIS_ADDR", "", log),
		RedisPassword:   envutil.String("REDIS_PASSWORD", "", log),
		MetricsAddr:     envutil.String("METRICS_ADDR", ":9464", log),
		CrawlConfigPath: envutil.String("CRAWL_CONFIG", "", log),
		Concurrency:     envutil.Int("CRAWL_CONCURRENCY", crawl.DefaultConcurrency, log),
		LockTTL:         envutil.Duration("CRAWL_LOCK_TTL", crawl.DefaultLockTTL, log),
	}
}
