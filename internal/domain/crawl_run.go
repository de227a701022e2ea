package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CrawlRunRunning   = "running"
	CrawlRunSucceeded = "succeeded"
	CrawlRunFailed    = "failed"
)

// CrawlRun records one crawl session over a data source.
type CrawlRun struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DataSourceID int16          `gorm:"column:datasource_id;not null;index" json:"datasource_id"`
	Status       string         `gorm:"column:status;size:16;not null;index" json:"status"`
	Now          int64          `gorm:"column:now;not null" json:"now"`
	SweptCount   int64          `gorm:"column:swept_count;not null;default:0" json:"swept_count"`
	Stats        datatypes.JSON `gorm:"column:stats" json:"stats"`
	Error        string         `gorm:"column:error;type:text" json:"error,omitempty"`
	StartedAt    time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt   *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CrawlRun) TableName() string { return "crawl_run" }

func (r *CrawlRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
