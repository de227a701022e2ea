package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type RetailerRepo interface {
	Create(dbc dbctx.Context, r *types.Retailer) error
	Save(dbc dbctx.Context, r *types.Retailer) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Retailer, error)
	// GetByName expects the lowercase natural key.
	GetByName(dbc dbctx.Context, dataSourceID int16, name string) (*types.Retailer, error)
	ListByDataSource(dbc dbctx.Context, dataSourceID int16) ([]*types.Retailer, error)
}

type retailerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRetailerRepo(db *gorm.DB, baseLog *logger.Logger) RetailerRepo {
	return &retailerRepo{
		db:  db,
		log: baseLog.With("repo", "RetailerRepo"),
	}
}

func (r *retailerRepo) Create(dbc dbctx.Context, ret *types.Retailer) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit(clause.Associations).Create(ret).Error
}

func (r *retailerRepo) Save(dbc dbctx.Context, ret *types.Retailer) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit(clause.Associations).Save(ret).Error
}

func (r *retailerRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Retailer, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Retailer
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *retailerRepo) GetByName(dbc dbctx.Context, dataSourceID int16, name string) (*types.Retailer, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if name == "" {
		return nil, nil
	}
	var out types.Retailer
	if err := transaction.WithContext(dbc.Ctx).
		Where("datasource_id = ? AND name = ?", dataSourceID, name).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *retailerRepo) ListByDataSource(dbc dbctx.Context, dataSourceID int16) ([]*types.Retailer, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Retailer
	if err := transaction.WithContext(dbc.Ctx).
		Where("datasource_id = ?", dataSourceID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
