package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

// ProductStoreRepo manages the product <-> store link table.
type ProductStoreRepo interface {
	ListStores(dbc dbctx.Context, productID uuid.UUID) ([]*types.Store, error)
	Link(dbc dbctx.Context, productID, storeID uuid.UUID) error
	Unlink(dbc dbctx.Context, productID, storeID uuid.UUID) error
}

type productStoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductStoreRepo(db *gorm.DB, baseLog *logger.Logger) ProductStoreRepo {
	return &productStoreRepo{
		db:  db,
		log: baseLog.With("repo", "ProductStoreRepo"),
	}
}

func (r *productStoreRepo) ListStores(dbc dbctx.Context, productID uuid.UUID) ([]*types.Store, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Store
	if productID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Select("store.*").
		Joins("JOIN product_store ON product_store.store_id = store.id").
		Where("product_store.product_id = ?", productID).
		Order("store.name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productStoreRepo) Link(dbc dbctx.Context, productID, storeID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&types.ProductStore{ProductID: productID, StoreID: storeID}).Error
}

func (r *productStoreRepo) Unlink(dbc dbctx.Context, productID, storeID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Where("product_id = ? AND store_id = ?", productID, storeID).
		Delete(&types.ProductStore{}).Error
}
