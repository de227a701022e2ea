package crawlrun

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
)

type CrawlRunRepo interface {
	Create(dbc dbctx.Context, run *types.CrawlRun) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CrawlRun, error)
	GetLatestByDataSource(dbc dbctx.Context, dataSourceID int16) (*types.CrawlRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type crawlRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCrawlRunRepo(db *gorm.DB, baseLog *logger.Logger) CrawlRunRepo {
	return &crawlRunRepo{
		db:  db,
		log: baseLog.With("repo", "CrawlRunRepo"),
	}
}

func (r *crawlRunRepo) Create(dbc dbctx.Context, run *types.CrawlRun) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(run).Error
}

func (r *crawlRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CrawlRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.CrawlRun
	if err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *crawlRunRepo) GetLatestByDataSource(dbc dbctx.Context, dataSourceID int16) (*types.CrawlRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.CrawlRun
	if err := transaction.WithContext(dbc.Ctx).
		Where("datasource_id = ?", dataSourceID).
		Order("started_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *crawlRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.CrawlRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}
