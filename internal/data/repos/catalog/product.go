package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type ProductRepo interface {
	Create(dbc dbctx.Context, p *types.Product) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error)
	GetByLandingPage(dbc dbctx.Context, dataSourceID int16, landingPage string) (*types.Product, error)
	// ListLiveByDataSource returns products of the source's retailers whose
	// promotion has not ended at now.
	ListLiveByDataSource(dbc dbctx.Context, dataSourceID int16, now int64) ([]*types.Product, error)
	// DeactivateEnded flips active to false for every active product of the
	// source whose promotion ended at or before now.
	DeactivateEnded(dbc dbctx.Context, dataSourceID int16, now int64) (int64, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{
		db:  db,
		log: baseLog.With("repo", "ProductRepo"),
	}
}

func (r *productRepo) Create(dbc dbctx.Context, p *types.Product) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit(clause.Associations).Create(p).Error
}

func (r *productRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Product, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Product
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *productRepo) GetByLandingPage(dbc dbctx.Context, dataSourceID int16, landingPage string) (*types.Product, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Product
	err := transaction.WithContext(dbc.Ctx).
		Select("product.*").
		Joins("JOIN retailer ON retailer.id = product.retailer_id").
		Where("retailer.datasource_id = ? AND product.landing_page = ?", dataSourceID, landingPage).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *productRepo) ListLiveByDataSource(dbc dbctx.Context, dataSourceID int16, now int64) ([]*types.Product, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Product
	if err := transaction.WithContext(dbc.Ctx).
		Select("product.*").
		Joins("JOIN retailer ON retailer.id = product.retailer_id").
		Where("retailer.datasource_id = ? AND product.promotion_end_date > ?", dataSourceID, now).
		Order("product.created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) DeactivateEnded(dbc dbctx.Context, dataSourceID int16, now int64) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Product{}).
		Where("active = ? AND promotion_end_date <= ?", true, now).
		Where("retailer_id IN (SELECT id FROM retailer WHERE datasource_id = ?)", dataSourceID).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Debug("deactivated ended products", "datasource_id", dataSourceID, "now", now, "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
