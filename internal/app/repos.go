package app

import (
	"gorm.io/gorm"

	"github.com/ftkghost/SuperSaver/internal/data/repos"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type Repos struct {
	Catalog repos.Catalog
	Runs    repos.CrawlRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Catalog: repos.NewCatalog(db, log),
		Runs:    repos.NewCrawlRunRepo(db, log),
	}
}
