package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Region is an area of a country that stores are filed under. Sources name
// regions on their pages; the crawler never invents them.
type Region struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CountryCode string     `gorm:"column:country_code;size:8;not null;uniqueIndex:idx_region_country_name,priority:1" json:"country_code"`
	Name        string     `gorm:"column:name;size:128;not null;uniqueIndex:idx_region_country_name,priority:2" json:"name"`
	DisplayName string     `gorm:"column:display_name;size:128;not null" json:"display_name"`
	Active      bool       `gorm:"column:active;not null" json:"active"`
	ParentID    *uuid.UUID `gorm:"type:uuid" json:"parent_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Region) TableName() string { return "region" }

func (r *Region) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *Region) BeforeSave(tx *gorm.DB) error {
	r.Name = NormalizeName(r.Name)
	return nil
}
