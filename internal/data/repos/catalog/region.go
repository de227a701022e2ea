package catalog

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type RegionRepo interface {
	// Ensure inserts the region or refreshes its display name and marks it
	// active. The stored row is written back into reg.
	Ensure(dbc dbctx.Context, reg *types.Region) error
	GetByName(dbc dbctx.Context, countryCode, name string) (*types.Region, error)
	ListActiveByCountry(dbc dbctx.Context, countryCode string) ([]*types.Region, error)
}

type regionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRegionRepo(db *gorm.DB, baseLog *logger.Logger) RegionRepo {
	return &regionRepo{
		db:  db,
		log: baseLog.With("repo", "RegionRepo"),
	}
}

func (r *regionRepo) Ensure(dbc dbctx.Context, reg *types.Region) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	reg.CountryCode = strings.ToUpper(strings.TrimSpace(reg.CountryCode))
	if strings.TrimSpace(reg.DisplayName) == "" {
		reg.DisplayName = strings.TrimSpace(reg.Name)
	}
	existing, err := r.GetByName(dbc, reg.CountryCode, reg.Name)
	if err != nil {
		return err
	}
	reg.Active = true
	if existing == nil {
		return transaction.WithContext(dbc.Ctx).Create(reg).Error
	}
	reg.ID = existing.ID
	reg.CreatedAt = existing.CreatedAt
	if reg.ParentID == nil {
		reg.ParentID = existing.ParentID
	}
	return transaction.WithContext(dbc.Ctx).Save(reg).Error
}

func (r *regionRepo) GetByName(dbc dbctx.Context, countryCode, name string) (*types.Region, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	name = types.NormalizeName(name)
	if name == "" {
		return nil, nil
	}
	var out types.Region
	if err := transaction.WithContext(dbc.Ctx).
		Where("country_code = ? AND name = ?", strings.ToUpper(strings.TrimSpace(countryCode)), name).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *regionRepo) ListActiveByCountry(dbc dbctx.Context, countryCode string) ([]*types.Region, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Region
	if err := transaction.WithContext(dbc.Ctx).
		Where("country_code = ? AND active = ?", strings.ToUpper(strings.TrimSpace(countryCode)), true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
