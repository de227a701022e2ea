package domain

import "time"

// DataSource is a crawled deal site. IDs are assigned by seed data, not by the
// database.
type DataSource struct {
	ID          int16   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string  `gorm:"column:name;size:256;not null;index" json:"name"`
	DisplayName string  `gorm:"column:display_name;size:256;not null" json:"display_name"`
	Site        string  `gorm:"column:site;size:256;not null" json:"site"`
	LogoURL     *string `gorm:"column:logo_url;size:256" json:"logo_url,omitempty"`
	CountryCode string  `gorm:"column:country_code;size:8;not null;index" json:"country_code"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DataSource) TableName() string { return "datasource" }

func (d *DataSource) Normalize() {
	d.Name = NormalizeName(d.Name)
}
