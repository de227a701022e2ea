package testutil

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/ftkghost/SuperSaver/internal/data/aggregates"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

// errInjectedRollback aborts the real transaction when FailCommit is set.
var errInjectedRollback = errors.New("injected rollback")

// InjectedTxRunner wraps catalog writes with injectable failures. With DB set
// the body runs in a real transaction, and FailCommit rolls it back after the
// body succeeded. Without DB the body gets no Tx.
type InjectedTxRunner struct {
	DB *gorm.DB

	FailBegin  error
	FailCommit error

	mu            sync.Mutex
	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.count(&r.BeginCalls)
	if r.FailBegin != nil {
		return r.FailBegin
	}
	if fn == nil {
		r.count(&r.CommitCalls)
		return nil
	}

	body := func(tx *gorm.DB) error {
		if err := fn(dbctx.Context{Ctx: ctx, Tx: tx}); err != nil {
			return err
		}
		if r.FailCommit != nil {
			return errInjectedRollback
		}
		return nil
	}
	var err error
	if r.DB != nil {
		err = r.DB.WithContext(ctx).Transaction(body)
	} else {
		err = body(nil)
	}

	switch {
	case errors.Is(err, errInjectedRollback):
		r.count(&r.RollbackCalls)
		return r.FailCommit
	case err != nil:
		r.count(&r.RollbackCalls)
		return err
	}
	r.count(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
