package catalog

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type StoreRepo interface {
	Create(dbc dbctx.Context, s *types.Store) error
	Save(dbc dbctx.Context, s *types.Store) error
	ListByRetailer(dbc dbctx.Context, retailerID uuid.UUID) ([]*types.Store, error)
	// GetByName looks a store up by its natural key; name is normalised here.
	GetByName(dbc dbctx.Context, retailerID uuid.UUID, name string) (*types.Store, error)
	// FindOrCreateByName returns the retailer's store named like s, creating
	// one from s when none exists. An existing row is returned as stored.
	FindOrCreateByName(dbc dbctx.Context, s *types.Store) (*types.Store, bool, error)
}

type storeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStoreRepo(db *gorm.DB, baseLog *logger.Logger) StoreRepo {
	return &storeRepo{
		db:  db,
		log: baseLog.With("repo", "StoreRepo"),
	}
}

func (r *storeRepo) Create(dbc dbctx.Context, s *types.Store) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit(clause.Associations).Create(s).Error
}

func (r *storeRepo) Save(dbc dbctx.Context, s *types.Store) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit(clause.Associations).Save(s).Error
}

func (r *storeRepo) ListByRetailer(dbc dbctx.Context, retailerID uuid.UUID) ([]*types.Store, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Store
	if retailerID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("retailer_id = ?", retailerID).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *storeRepo) GetByName(dbc dbctx.Context, retailerID uuid.UUID, name string) (*types.Store, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	name = types.NormalizeName(name)
	if retailerID == uuid.Nil || name == "" {
		return nil, nil
	}
	var out types.Store
	if err := transaction.WithContext(dbc.Ctx).
		Where("retailer_id = ? AND name = ?", retailerID, name).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *storeRepo) FindOrCreateByName(dbc dbctx.Context, s *types.Store) (*types.Store, bool, error) {
	if s == nil || s.RetailerID == uuid.Nil {
		return nil, false, fmt.Errorf("store without retailer")
	}
	found, err := r.GetByName(dbc, s.RetailerID, s.Name)
	if err != nil {
		return nil, false, err
	}
	if found != nil {
		return found, false, nil
	}
	created := *s
	created.ID = uuid.Nil
	created.Retailer = nil
	created.Region = nil
	created.Name = types.NormalizeName(created.Name)
	if created.DisplayName == "" {
		created.DisplayName = strings.TrimSpace(s.Name)
	}
	created.Active = true
	if err := r.Create(dbc, &created); err != nil {
		return nil, false, err
	}
	return &created, true, nil
}
