package app

import (
	"testing"
	"time"

	"github.com/ftkghost/SuperSaver/internal/crawl"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"REDIS_ADDR", "REDIS_PASSWORD", "METRICS_ADDR", "CRAWL_CONFIG", "CRAWL_CONCURRENCY", "CRAWL_LOCK_TTL"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(logger.NewNop())
	if cfg.RedisAddr != "" || cfg.MetricsAddr != ":9464" || cfg.CrawlConfigPath != "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Concurrency != crawl.DefaultConcurrency || cfg.LockTTL != crawl.DefaultLockTTL {
		t.Fatalf("unexpected crawl defaults: %+v", cfg)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CRAWL_CONCURRENCY", "12")
	t.Setenv("CRAWL_LOCK_TTL", "90")
	cfg := LoadConfig(nil)
	if cfg.RedisAddr != "localhost:6379" || cfg.Concurrency != 12 || cfg.LockTTL != 90*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
