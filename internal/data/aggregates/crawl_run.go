package aggregates

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ftkghost/SuperSaver/internal/data/repos"
	types "github.com/ftkghost/SuperSaver/internal/domain"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

type CrawlRunAggregateDeps struct {
	Base BaseDeps

	Runs repos.CrawlRunRepo
}

type crawlRunAggregate struct {
	deps CrawlRunAggregateDeps
}

func NewCrawlRunAggregate(deps CrawlRunAggregateDeps) domainagg.CrawlRunAggregate {
	deps.Base = deps.Base.withDefaults()
	return &crawlRunAggregate{deps: deps}
}

func (a *crawlRunAggregate) Contract() domainagg.Contract {
	return domainagg.CrawlRunAggregateContract
}

func (a *crawlRunAggregate) Start(ctx context.Context, dataSourceID int16, now int64) (*types.CrawlRun, error) {
	const op = "Crawl.Run.Start"
	if a.deps.Runs == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "crawl run repo not configured", nil)
	}
	run := &types.CrawlRun{
		DataSourceID: dataSourceID,
		Status:       types.CrawlRunRunning,
		Now:          now,
		Stats:        datatypes.JSON([]byte("{}")),
		StartedAt:    time.Now().UTC(),
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		return a.deps.Runs.Create(dbc, run)
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (a *crawlRunAggregate) Finish(ctx context.Context, in domainagg.FinishCrawlRunInput) error {
	const op = "Crawl.Run.Finish"
	if in.RunID == uuid.Nil {
		return observeRejected(a.deps.Base, op, domainagg.NewError(domainagg.CodeValidation, op, "missing run_id", nil))
	}
	status := strings.TrimSpace(in.Status)
	if status != types.CrawlRunSucceeded && status != types.CrawlRunFailed {
		return observeRejected(a.deps.Base, op, domainagg.NewError(domainagg.CodeValidation, op, "status must be succeeded or failed", nil))
	}
	finishedAt := in.FinishedAt.UTC()
	if in.FinishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}
	stats := datatypes.JSON([]byte("{}"))
	if len(in.Stats) > 0 {
		stats = datatypes.JSON(in.Stats)
	}

	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "crawl_run", in.RunID, []string{types.CrawlRunRunning}, map[string]any{
			"status":      status,
			"swept_count": in.SweptCount,
			"stats":       stats,
			"error":       in.Error,
			"finished_at": finishedAt,
			"updated_at":  finishedAt,
		})
		if err != nil {
			return err
		}
		return RequireCASSuccess(ok, "crawl run is not running")
	})
}
