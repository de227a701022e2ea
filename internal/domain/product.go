package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a deal: a product with a special price during its promotion
// window. LandingPage is the natural key within a data source.
type Product struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RetailerID uuid.UUID `gorm:"type:uuid;not null;index" json:"retailer_id"`
	Retailer   *Retailer `gorm:"foreignKey:RetailerID;references:ID" json:"retailer,omitempty"`

	Title       string  `gorm:"column:title;size:256;not null" json:"title"`
	Description string  `gorm:"column:description;size:512;not null;default:''" json:"description"`
	Price       float64 `gorm:"column:price;type:numeric(11,2);not null" json:"price"`
	Unit        string  `gorm:"column:unit;size:32;not null;default:''" json:"unit"` // ea, pack, bag, kg
	Saved       *string `gorm:"column:saved;size:64" json:"saved,omitempty"`
	LandingPage string  `gorm:"column:landing_page;size:512;not null;index" json:"landing_page"`
	FastBuyLink *string `gorm:"column:fast_buy_link;size:512;index" json:"fast_buy_link,omitempty"`

	// Epoch seconds.
	PromotionStartDate int64 `gorm:"column:promotion_start_date;not null" json:"promotion_start_date"`
	PromotionEndDate   int64 `gorm:"column:promotion_end_date;not null;index" json:"promotion_end_date"`

	// Ready is set once every image of the product has been processed.
	Ready  bool `gorm:"column:ready;not null;default:false" json:"ready"`
	Active bool `gorm:"column:active;not null;index" json:"active"`

	// Version counts scalar rewrites. Updates only land on the version they read.
	Version int64 `gorm:"column:version;not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string { return "product" }

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ActiveAt reports whether the promotion window has not ended at now.
func (p *Product) ActiveAt(now int64) bool {
	return p.PromotionEndDate > now
}

type ProductProperty struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_property_name,priority:1" json:"product_id"`
	Name      string    `gorm:"column:name;size:64;not null;uniqueIndex:idx_product_property_name,priority:2" json:"name"`
	Value     string    `gorm:"column:value;size:1024;not null" json:"value"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ProductProperty) TableName() string { return "product_property" }

func (p *ProductProperty) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *ProductProperty) PropertyName() string      { return p.Name }
func (p *ProductProperty) PropertyValue() string     { return p.Value }
func (p *ProductProperty) SetPropertyValue(v string) { p.Value = v }

// ProductImage records an image URL seen for a product. Download and storage
// happen elsewhere.
type ProductImage struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_image_hash,priority:1" json:"product_id"`
	UniqueHash  string    `gorm:"column:unique_hash;size:64;not null;uniqueIndex:idx_product_image_hash,priority:2" json:"unique_hash"`
	OriginalURL string    `gorm:"column:original_url;size:512;not null" json:"original_url"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProductImage) TableName() string { return "product_image" }

func ImageUniqueHash(originalURL string) string {
	sum := sha256.Sum256([]byte(originalURL))
	return hex.EncodeToString(sum[:])
}

func (i *ProductImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ProductStore links a product to a store that sells it.
type ProductStore struct {
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	StoreID   uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"store_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ProductStore) TableName() string { return "product_store" }
