package catalog

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type DataSourceRepo interface {
	// Upsert inserts the source or overwrites its descriptive columns.
	Upsert(dbc dbctx.Context, ds *types.DataSource) error
	GetByID(dbc dbctx.Context, id int16) (*types.DataSource, error)
	GetByName(dbc dbctx.Context, name string) (*types.DataSource, error)
	List(dbc dbctx.Context) ([]*types.DataSource, error)
}

type dataSourceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataSourceRepo(db *gorm.DB, baseLog *logger.Logger) DataSourceRepo {
	return &dataSourceRepo{
		db:  db,
		log: baseLog.With("repo", "DataSourceRepo"),
	}
}

func (r *dataSourceRepo) Upsert(dbc dbctx.Context, ds *types.DataSource) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	ds.Normalize()
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "display_name", "site", "logo_url", "country_code", "updated_at"}),
		}).
		Create(ds).Error
}

func (r *dataSourceRepo) GetByID(dbc dbctx.Context, id int16) (*types.DataSource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DataSource
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *dataSourceRepo) GetByName(dbc dbctx.Context, name string) (*types.DataSource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	key := types.DataSource{Name: name}
	key.Normalize()
	var out []*types.DataSource
	if err := transaction.WithContext(dbc.Ctx).Where("name = ?", key.Name).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *dataSourceRepo) List(dbc dbctx.Context) ([]*types.DataSource, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DataSource
	if err := transaction.WithContext(dbc.Ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
