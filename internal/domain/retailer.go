package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Retailer struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// Name is the lowercase natural key, unique within a data source.
	Name        string  `gorm:"column:name;size:256;not null;uniqueIndex:idx_retailer_source_name,priority:2" json:"name"`
	DisplayName string  `gorm:"column:display_name;size:256;not null" json:"display_name"`
	Site        *string `gorm:"column:site;size:256" json:"site,omitempty"`
	LogoURL     *string `gorm:"column:logo_url;size:256" json:"logo_url,omitempty"`
	CountryCode string  `gorm:"column:country_code;size:8;not null" json:"country_code"`

	DataSourceID int16       `gorm:"column:datasource_id;not null;uniqueIndex:idx_retailer_source_name,priority:1" json:"datasource_id"`
	DataSource   *DataSource `gorm:"foreignKey:DataSourceID;references:ID" json:"datasource,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Retailer) TableName() string { return "retailer" }

func (r *Retailer) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type RetailerProperty struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RetailerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_retailer_property_name,priority:1" json:"retailer_id"`
	Name       string    `gorm:"column:name;size:64;not null;uniqueIndex:idx_retailer_property_name,priority:2" json:"name"`
	Value      string    `gorm:"column:value;size:1024;not null" json:"value"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RetailerProperty) TableName() string { return "retailer_property" }

func (p *RetailerProperty) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *RetailerProperty) PropertyName() string      { return p.Name }
func (p *RetailerProperty) PropertyValue() string     { return p.Value }
func (p *RetailerProperty) SetPropertyValue(v string) { p.Value = v }
