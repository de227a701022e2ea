package crawlrun

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/ftkghost/SuperSaver/internal/data/repos/testutil"
	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

func TestCrawlRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCrawlRunRepo(db, testutil.Logger(t))

	ds := testutil.SeedDataSource(t, ctx, tx, "grabone")
	now := time.Now().UTC()

	older := &types.CrawlRun{DataSourceID: ds.ID, Status: types.CrawlRunSucceeded, Now: 1, StartedAt: now.Add(-time.Hour)}
	newer := &types.CrawlRun{DataSourceID: ds.ID, Status: types.CrawlRunRunning, Now: 2, StartedAt: now}
	for _, run := range []*types.CrawlRun{older, newer} {
		if err := repo.Create(dbc, run); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	latest, err := repo.GetLatestByDataSource(dbc, ds.ID)
	if err != nil || latest == nil || latest.ID != newer.ID {
		t.Fatalf("GetLatestByDataSource: got=%v err=%v", latest, err)
	}

	finished := now.Add(time.Minute)
	if err := repo.UpdateFields(dbc, newer.ID, map[string]interface{}{
		"status":      types.CrawlRunSucceeded,
		"swept_count": int64(4),
		"stats":       datatypes.JSON([]byte(`{"applied":3}`)),
		"finished_at": finished,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	row, err := repo.GetByID(dbc, newer.ID)
	if err != nil || row == nil {
		t.Fatalf("GetByID: row=%v err=%v", row, err)
	}
	if row.Status != types.CrawlRunSucceeded || row.SweptCount != 4 || row.FinishedAt == nil {
		t.Fatalf("UpdateFields not applied: %+v", row)
	}
}
