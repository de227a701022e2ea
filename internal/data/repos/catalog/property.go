package catalog

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

// PropertyRepo is the table surface shared by the three property tables.
type PropertyRepo[P types.NamedValue] interface {
	ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]P, error)
	// GetPublicByOwner excludes internal ("__"-prefixed) properties.
	GetPublicByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]P, error)
	Create(dbc dbctx.Context, p P) error
	Update(dbc dbctx.Context, p P) error
	Delete(dbc dbctx.Context, p P) error
}

type ProductPropertyRepo = PropertyRepo[*types.ProductProperty]
type RetailerPropertyRepo = PropertyRepo[*types.RetailerProperty]
type StorePropertyRepo = PropertyRepo[*types.StoreProperty]

type propertyRepo[P types.NamedValue] struct {
	db          *gorm.DB
	log         *logger.Logger
	ownerColumn string
}

func NewProductPropertyRepo(db *gorm.DB, baseLog *logger.Logger) ProductPropertyRepo {
	return &propertyRepo[*types.ProductProperty]{
		db:          db,
		log:         baseLog.With("repo", "ProductPropertyRepo"),
		ownerColumn: "product_id",
	}
}

func NewRetailerPropertyRepo(db *gorm.DB, baseLog *logger.Logger) RetailerPropertyRepo {
	return &propertyRepo[*types.RetailerProperty]{
		db:          db,
		log:         baseLog.With("repo", "RetailerPropertyRepo"),
		ownerColumn: "retailer_id",
	}
}

func NewStorePropertyRepo(db *gorm.DB, baseLog *logger.Logger) StorePropertyRepo {
	return &propertyRepo[*types.StoreProperty]{
		db:          db,
		log:         baseLog.With("repo", "StorePropertyRepo"),
		ownerColumn: "store_id",
	}
}

func (r *propertyRepo[P]) ListByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]P, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []P
	if ownerID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where(r.ownerColumn+" = ?", ownerID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *propertyRepo[P]) GetPublicByOwner(dbc dbctx.Context, ownerID uuid.UUID) ([]P, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []P
	if ownerID == uuid.Nil {
		return out, nil
	}
	// LIKE would treat '_' as a wildcard.
	if err := transaction.WithContext(dbc.Ctx).
		Where(r.ownerColumn+" = ?", ownerID).
		Where("substr(name, 1, ?) <> ?", len(types.InternalPropertyPrefix), types.InternalPropertyPrefix).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *propertyRepo[P]) Create(dbc dbctx.Context, p P) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(p).Error
}

func (r *propertyRepo[P]) Update(dbc dbctx.Context, p P) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Model(p).Update("value", p.PropertyValue()).Error
}

func (r *propertyRepo[P]) Delete(dbc dbctx.Context, p P) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Delete(p).Error
}
