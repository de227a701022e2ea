package aggregates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	types "github.com/ftkghost/SuperSaver/internal/domain"
)

var CrawlRunAggregateContract = Contract{
	Name:             "Crawl.RunAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyTableRepoQueries,
	Notes:            "Opens and closes the crawl_run record; a run leaves the running state exactly once.",
}

type CrawlRunAggregate interface {
	Aggregate

	Start(ctx context.Context, dataSourceID int16, now int64) (*types.CrawlRun, error)
	// Finish moves a running run to a terminal status. A run that already
	// finished yields CodeConflict.
	Finish(ctx context.Context, in FinishCrawlRunInput) error
}

type FinishCrawlRunInput struct {
	RunID      uuid.UUID
	Status     string
	SweptCount int64
	Stats      json.RawMessage
	Error      string
	FinishedAt time.Time
}
