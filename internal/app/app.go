package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/ftkghost/SuperSaver/internal/crawl"
	"github.com/ftkghost/SuperSaver/internal/data/db"
	"github.com/ftkghost/SuperSaver/internal/observability"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type App struct {
	Log     *logger.Logger
	DB      *gorm.DB
	Cfg     Config
	Repos   Repos
	Clients Clients
	Metrics *observability.Metrics

	pg             *db.PostgresService
	shutdownTraces func(context.Context) error
	cancel         context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	ctx, cancel := context.WithCancel(context.Background())
	fail := func(err error) (*App, error) {
		cancel()
		log.Sync()
		return nil, err
	}

	shutdownTraces := observability.InitOTel(ctx, log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return fail(fmt.Errorf("init postgres: %w", err))
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		return fail(fmt.Errorf("postgres automigrate: %w", err))
	}
	theDB := pg.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		return fail(err)
	}

	metrics := observability.Init(log)
	if metrics != nil {
		metrics.StartServer(ctx, log, cfg.MetricsAddr)
		metrics.StartPostgresCollector(ctx, log, theDB)
		if clients.Redis != nil {
			metrics.StartRedisCollector(ctx, log, clients.Redis)
		}
	}

	return &App{
		Log:            log,
		DB:             theDB,
		Cfg:            cfg,
		Repos:          wireRepos(theDB, log),
		Clients:        clients,
		Metrics:        metrics,
		pg:             pg,
		shutdownTraces: shutdownTraces,
		cancel:         cancel,
	}, nil
}

// CrawlDeps is everything a crawl session needs from the process.
func (a *App) CrawlDeps() crawl.Deps {
	return crawl.Deps{
		DB:      a.DB,
		Log:     a.Log,
		Catalog: a.Repos.Catalog,
		Runs:    a.Repos.Runs,
		Locker:  a.Clients.Locker,
		Metrics: a.Metrics,
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.shutdownTraces != nil {
		if err := a.shutdownTraces(context.Background()); err != nil && a.Log != nil {
			a.Log.Warn("trace shutdown failed", "error", err)
		}
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
