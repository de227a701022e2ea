package aggregates

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

// CASGuard runs single-row compare-and-set updates. A false result with a
// nil error means the row no longer matched the guard.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

// UpdateByVersion applies updates to table.id when its version column still
// holds expected. Callers bump version inside updates.
func (g CASGuard) UpdateByVersion(dbc dbctx.Context, table string, id uuid.UUID, expected int64, updates map[string]any) (bool, error) {
	if expected < 0 {
		return false, ValidationError("expected version must not be negative")
	}
	return g.guardedUpdate(dbc, table, id, "version = ?", expected, updates)
}

// UpdateByStatus applies updates to table.id when its status is one of allowed.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, allowed []string, updates map[string]any) (bool, error) {
	if len(allowed) == 0 {
		return false, ValidationError("no allowed statuses")
	}
	return g.guardedUpdate(dbc, table, id, "status IN ?", allowed, updates)
}

func (g CASGuard) guardedUpdate(dbc dbctx.Context, table string, id uuid.UUID, guard string, guardArg any, updates map[string]any) (bool, error) {
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("guarded update needs a table and an id")
	}
	if len(updates) == 0 {
		return false, ValidationError("guarded update without columns")
	}
	db := dbc.Tx
	if db == nil {
		db = g.db
	}
	if db == nil {
		return false, ValidationError("missing db transaction context")
	}
	res := db.WithContext(dbc.Ctx).
		Table(table).
		Where("id = ?", id).
		Where(guard, guardArg).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess turns a lost compare-and-set into a conflict.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(message)
}
