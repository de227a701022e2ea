package repos

import (
	"gorm.io/gorm"

	"github.com/ftkghost/SuperSaver/internal/data/repos/catalog"
	"github.com/ftkghost/SuperSaver/internal/data/repos/crawlrun"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type DataSourceRepo = catalog.DataSourceRepo
type RetailerRepo = catalog.RetailerRepo
type RetailerPropertyRepo = catalog.RetailerPropertyRepo
type RegionRepo = catalog.RegionRepo
type StoreRepo = catalog.StoreRepo
type StorePropertyRepo = catalog.StorePropertyRepo
type ProductRepo = catalog.ProductRepo
type ProductPropertyRepo = catalog.ProductPropertyRepo
type ProductImageRepo = catalog.ProductImageRepo
type ProductStoreRepo = catalog.ProductStoreRepo

type CrawlRunRepo = crawlrun.CrawlRunRepo

// Catalog bundles the table repos the entity repositories write through.
type Catalog struct {
	DataSources        DataSourceRepo
	Retailers          RetailerRepo
	RetailerProperties RetailerPropertyRepo
	Regions            RegionRepo
	Stores             StoreRepo
	StoreProperties    StorePropertyRepo
	Products           ProductRepo
	ProductProperties  ProductPropertyRepo
	ProductImages      ProductImageRepo
	ProductStores      ProductStoreRepo
}

func NewCatalog(db *gorm.DB, baseLog *logger.Logger) Catalog {
	return Catalog{
		DataSources:        catalog.NewDataSourceRepo(db, baseLog),
		Retailers:          catalog.NewRetailerRepo(db, baseLog),
		RetailerProperties: catalog.NewRetailerPropertyRepo(db, baseLog),
		Regions:            catalog.NewRegionRepo(db, baseLog),
		Stores:             catalog.NewStoreRepo(db, baseLog),
		StoreProperties:    catalog.NewStorePropertyRepo(db, baseLog),
		Products:           catalog.NewProductRepo(db, baseLog),
		ProductProperties:  catalog.NewProductPropertyRepo(db, baseLog),
		ProductImages:      catalog.NewProductImageRepo(db, baseLog),
		ProductStores:      catalog.NewProductStoreRepo(db, baseLog),
	}
}

func NewCrawlRunRepo(db *gorm.DB, baseLog *logger.Logger) CrawlRunRepo {
	return crawlrun.NewCrawlRunRepo(db, baseLog)
}
