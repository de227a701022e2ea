package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ftkghost/SuperSaver/internal/domain"
)

func SeedDataSource(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.DataSource {
	tb.Helper()
	ds := &types.DataSource{
		ID:          NextDataSourceID(),
		Name:        name,
		DisplayName: name,
		Site:        "https://" + name + ".example",
		CountryCode: "NZ",
	}
	ds.Normalize()
	if err := tx.WithContext(ctx).Create(ds).Error; err != nil {
		tb.Fatalf("seed datasource: %v", err)
	}
	return ds
}

func SeedRetailer(tb testing.TB, ctx context.Context, tx *gorm.DB, dataSourceID int16, name string) *types.Retailer {
	tb.Helper()
	r := &types.Retailer{
		ID:           uuid.New(),
		Name:         name,
		DisplayName:  name,
		CountryCode:  "NZ",
		DataSourceID: dataSourceID,
	}
	if err := tx.WithContext(ctx).Omit("DataSource").Create(r).Error; err != nil {
		tb.Fatalf("seed retailer: %v", err)
	}
	return r
}

func SeedStore(tb testing.TB, ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, name string, lat, lng *float64) *types.Store {
	tb.Helper()
	s := &types.Store{
		ID:          uuid.New(),
		RetailerID:  retailerID,
		Name:        name,
		DisplayName: name,
		Latitude:    lat,
		Longitude:   lng,
		Active:      true,
	}
	if err := tx.WithContext(ctx).Omit("Retailer").Create(s).Error; err != nil {
		tb.Fatalf("seed store: %v", err)
	}
	return s
}

func SeedProduct(tb testing.TB, ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, landingPage string, start, end int64, active bool) *types.Product {
	tb.Helper()
	p := &types.Product{
		ID:                 uuid.New(),
		RetailerID:         retailerID,
		Title:              fmt.Sprintf("deal %s", landingPage),
		Price:              9.99,
		LandingPage:        landingPage,
		PromotionStartDate: start,
		PromotionEndDate:   end,
		Active:             active,
	}
	if err := tx.WithContext(ctx).Omit("Retailer").Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedProductProperty(tb testing.TB, ctx context.Context, tx *gorm.DB, productID uuid.UUID, name, value string) *types.ProductProperty {
	tb.Helper()
	p := &types.ProductProperty{ID: uuid.New(), ProductID: productID, Name: name, Value: value}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed product property: %v", err)
	}
	return p
}

func PtrString(v string) *string { return &v }

func PtrFloat(v float64) *float64 { return &v }

// SeedRegion returns the country's region of that name, creating it active.
func SeedRegion(tb testing.TB, ctx context.Context, tx *gorm.DB, countryCode, name string) *types.Region {
	tb.Helper()
	r := &types.Region{}
	err := tx.WithContext(ctx).
		Where(types.Region{CountryCode: countryCode, Name: types.NormalizeName(name)}).
		Attrs(types.Region{DisplayName: name, Active: true}).
		FirstOrCreate(r).Error
	if err != nil {
		tb.Fatalf("seed region: %v", err)
	}
	return r
}
