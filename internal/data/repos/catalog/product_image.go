package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type ProductImageRepo interface {
	ListByProduct(dbc dbctx.Context, productID uuid.UUID) ([]*types.ProductImage, error)
	// Record stores originalURL for the product unless it is already recorded.
	// It reports whether a row was inserted.
	Record(dbc dbctx.Context, productID uuid.UUID, originalURL string) (bool, error)
}

type productImageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductImageRepo(db *gorm.DB, baseLog *logger.Logger) ProductImageRepo {
	return &productImageRepo{
		db:  db,
		log: baseLog.With("repo", "ProductImageRepo"),
	}
}

func (r *productImageRepo) ListByProduct(dbc dbctx.Context, productID uuid.UUID) ([]*types.ProductImage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProductImage
	if productID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productImageRepo) Record(dbc dbctx.Context, productID uuid.UUID, originalURL string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	img := &types.ProductImage{
		ProductID:   productID,
		UniqueHash:  types.ImageUniqueHash(originalURL),
		OriginalURL: originalURL,
	}
	res := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "unique_hash"}},
			DoNothing: true,
		}).
		Create(img)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
