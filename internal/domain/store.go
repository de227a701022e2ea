package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is a physical (or website-only) outlet of a retailer. Stores without
// coordinates are website-only. A retailer has at most one store per
// normalised name.
type Store struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	RetailerID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_store_retailer_name,priority:1" json:"retailer_id"`
	Retailer   *Retailer  `gorm:"foreignKey:RetailerID;references:ID" json:"retailer,omitempty"`
	RegionID   *uuid.UUID `gorm:"type:uuid;index" json:"region_id,omitempty"`
	Region     *Region    `gorm:"foreignKey:RegionID;references:ID" json:"-"`

	// RegionName is the region as the source page named it. It is resolved
	// to RegionID before the store is written.
	RegionName string `gorm:"-" json:"region,omitempty"`

	Name        string   `gorm:"column:name;size:256;not null;uniqueIndex:idx_store_retailer_name,priority:2" json:"name"`
	DisplayName string   `gorm:"column:display_name;size:256" json:"display_name"`
	Tel         *string  `gorm:"column:tel;size:32" json:"tel,omitempty"`
	Address     *string  `gorm:"column:address;size:512" json:"address,omitempty"`
	WorkingTime *string  `gorm:"column:working_time;size:512" json:"working_time,omitempty"`
	Website     *string  `gorm:"column:website;size:512" json:"website,omitempty"`
	Email       *string  `gorm:"column:email;size:128" json:"email,omitempty"`
	Longitude   *float64 `gorm:"column:longitude" json:"longitude,omitempty"`
	Latitude    *float64 `gorm:"column:latitude" json:"latitude,omitempty"`
	Active      bool     `gorm:"column:active;not null" json:"active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Store) TableName() string { return "store" }

func (s *Store) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Store) BeforeSave(tx *gorm.DB) error {
	s.Name = NormalizeName(s.Name)
	return nil
}

const coordinateEpsilon = 1e-7

// StoreValueEquals reports whether two stores describe the same outlet:
// same retailer, same normalised name, same coordinates.
func StoreValueEquals(a, b *Store) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.RetailerID != b.RetailerID {
		return false
	}
	if NormalizeName(a.Name) != NormalizeName(b.Name) {
		return false
	}
	return floatPtrEqual(a.Latitude, b.Latitude) && floatPtrEqual(a.Longitude, b.Longitude)
}

// StoreValueHash buckets stores by retailer and name. Coordinates are left out
// so the hash never separates two stores StoreValueEquals would match.
func StoreValueHash(s *Store) string {
	if s == nil {
		return ""
	}
	return s.RetailerID.String() + "|" + NormalizeName(s.Name)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) < coordinateEpsilon
}

type StoreProperty struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StoreID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_store_property_name,priority:1" json:"store_id"`
	Name    string    `gorm:"column:name;size:64;not null;uniqueIndex:idx_store_property_name,priority:2" json:"name"`
	Value   string    `gorm:"column:value;size:1024;not null" json:"value"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StoreProperty) TableName() string { return "store_property" }

func (p *StoreProperty) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *StoreProperty) PropertyName() string      { return p.Name }
func (p *StoreProperty) PropertyValue() string     { return p.Value }
func (p *StoreProperty) SetPropertyValue(v string) { p.Value = v }
