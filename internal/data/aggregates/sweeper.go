package aggregates

import (
	"context"

	"github.com/ftkghost/SuperSaver/internal/data/repos"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

type SweeperDeps struct {
	Base BaseDeps

	Products repos.ProductRepo
}

type sweeper struct {
	deps SweeperDeps
}

func NewSweeper(deps SweeperDeps) domainagg.StalenessSweeper {
	deps.Base = deps.Base.withDefaults()
	return &sweeper{deps: deps}
}

// Sweep deactivates the source's deals whose promotion ended at or before
// now, in one statement.
func (s *sweeper) Sweep(ctx context.Context, dataSourceID int16, now int64) (int64, error) {
	const op = "Catalog.Sweeper.Sweep"
	if now < 0 {
		return 0, observeRejected(s.deps.Base, op, domainagg.NewError(domainagg.CodeValidation, op, "now must be non-negative epoch seconds", nil))
	}
	if s.deps.Products == nil {
		return 0, domainagg.NewError(domainagg.CodeInternal, op, "sweeper repos not configured", nil)
	}
	var swept int64
	err := executeWrite(ctx, s.deps.Base, op, func(dbc dbctx.Context) error {
		n, err := s.deps.Products.DeactivateEnded(dbc, dataSourceID, now)
		if err != nil {
			return err
		}
		swept = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.deps.Base.Log.Info("staleness sweep finished", "datasource_id", dataSourceID, "now", now, "deactivated", swept)
	return swept, nil
}
