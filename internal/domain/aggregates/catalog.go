package aggregates

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	types "github.com/ftkghost/SuperSaver/internal/domain"
)

var ProductAggregateContract = Contract{
	Name:             "Catalog.ProductAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyCacheBacked,
	Notes: "Reconciles an observed deal with its image, stores and properties in one write boundary " +
		"and keeps the landing-page cache in step with committed rows.",
}

var RetailerAggregateContract = Contract{
	Name:             "Catalog.RetailerAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyCacheBacked,
	Notes:            "Reconciles an observed retailer and its property bag, keyed by lowercase name.",
}

var StoreAggregateContract = Contract{
	Name:             "Catalog.StoreAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyCacheBacked,
	Notes: "Reconciles an observed store of one retailer and its property bag, keyed by normalised name. " +
		"Falls back to storage on a cache miss so rows created from deal pages are reused.",
}

// ProductAggregate owns deal reconciliation for one data source.
//
// Write failures return *aggregates.Error with codes:
// CodeValidation, CodeDuplicateProperty, CodeConflict, CodeRetryable, CodeInternal.
type ProductAggregate interface {
	Aggregate

	// AddOrUpdate applies one observation. A nil stores/properties slice means
	// "not observed" and leaves the persisted collection alone; an empty non-nil
	// slice means "observed empty" and clears it.
	//
	// Re-observing a deal sets Active to whether its promotion is still open
	// at the session clock. It is not forced to true: a deal seen again after
	// its end date stays inactive.
	//
	// Unsaved stores are matched to the retailer's stores by normalised name
	// and created when missing. Existing store rows are linked as stored.
	AddOrUpdate(ctx context.Context, in ProductCandidate, imageURL string, stores []*types.Store, properties []*types.ProductProperty) (*types.Product, error)

	GetByLandingPage(landingPage string) (*types.Product, bool)
	All() []*types.Product
	Len() int
}

type RetailerAggregate interface {
	Aggregate

	AddOrUpdate(ctx context.Context, in RetailerCandidate, properties []*types.RetailerProperty) (*types.Retailer, error)
	GetByName(name string) (*types.Retailer, bool)
	All() []*types.Retailer
}

type StoreAggregate interface {
	Aggregate

	AddOrUpdate(ctx context.Context, in StoreCandidate, properties []*types.StoreProperty) (*types.Store, error)
	GetByName(name string) (*types.Store, bool)
	All() []*types.Store
}

// StalenessSweeper deactivates deals whose promotion window has ended.
type StalenessSweeper interface {
	Sweep(ctx context.Context, dataSourceID int16, now int64) (int64, error)
}

// ProductCandidate is a deal as extracted from a source page.
type ProductCandidate struct {
	RetailerID         uuid.UUID `json:"retailer_id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Price              float64   `json:"price"`
	Unit               string    `json:"unit,omitempty"`
	Saved              *string   `json:"saved,omitempty"`
	PromotionStartDate int64     `json:"promotion_start_date"`
	PromotionEndDate   int64     `json:"promotion_end_date"`
	LandingPage        string    `json:"landing_page"`
	FastBuyLink        *string   `json:"fast_buy_link,omitempty"`
}

func (c ProductCandidate) Validate() error {
	var problems []string
	if c.RetailerID == uuid.Nil {
		problems = append(problems, "retailer_id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(c.LandingPage) == "" {
		problems = append(problems, "landing_page is required")
	}
	if math.IsNaN(c.Price) || math.IsInf(c.Price, 0) || c.Price < 0 {
		problems = append(problems, fmt.Sprintf("price %v is not a valid amount", c.Price))
	}
	if c.PromotionStartDate < 0 || c.PromotionEndDate < 0 {
		problems = append(problems, "promotion dates must be non-negative epoch seconds")
	} else if c.PromotionEndDate < c.PromotionStartDate {
		problems = append(problems, "promotion_end_date is before promotion_start_date")
	}
	if len(c.Title) > 256 || len(c.Description) > 512 || len(c.LandingPage) > 512 || len(c.Unit) > 32 {
		problems = append(problems, "a text field exceeds its column size")
	}
	if len(problems) == 0 {
		return nil
	}
	return NewError(CodeValidation, "Catalog.ProductCandidate.Validate", strings.Join(problems, "; "), nil)
}

// RetailerCandidate is a retailer as extracted from a source page. Name keeps
// the display casing; the natural key is derived from it.
type RetailerCandidate struct {
	Name    string  `json:"name"`
	Site    *string `json:"site,omitempty"`
	LogoURL *string `json:"logo_url,omitempty"`
}

func (c RetailerCandidate) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return NewError(CodeValidation, "Catalog.RetailerCandidate.Validate", "name is required", nil)
	}
	if len(name) > 256 {
		return NewError(CodeValidation, "Catalog.RetailerCandidate.Validate", "name exceeds 256 characters", nil)
	}
	return nil
}

type StoreCandidate struct {
	Name        string   `json:"name"`
	Tel         *string  `json:"tel,omitempty"`
	Address     *string  `json:"address,omitempty"`
	WorkingTime *string  `json:"working_time,omitempty"`
	Website     *string  `json:"website,omitempty"`
	Email       *string  `json:"email,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`

	// Region names the area the source filed the store under. The session
	// resolves it to RegionID; an unset RegionID keeps the stored region.
	Region   string     `json:"region,omitempty"`
	RegionID *uuid.UUID `json:"-"`
}

func (c StoreCandidate) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return NewError(CodeValidation, "Catalog.StoreCandidate.Validate", "name is required", nil)
	}
	if len(name) > 256 {
		return NewError(CodeValidation, "Catalog.StoreCandidate.Validate", "name exceeds 256 characters", nil)
	}
	return nil
}

// ValidatePropertyNames rejects empty, oversized and repeated names. Repeated
// names within one observation are a caller error.
func ValidatePropertyNames[P types.NamedValue](op string, props []P) error {
	seen := make(map[string]struct{}, len(props))
	for _, p := range props {
		name := p.PropertyName()
		if strings.TrimSpace(name) == "" {
			return NewError(CodeValidation, op, "property name is required", nil)
		}
		if len(name) > types.PropertyNameMaxLen {
			return NewError(CodeValidation, op, fmt.Sprintf("property name %q exceeds %d characters", name, types.PropertyNameMaxLen), nil)
		}
		if len(p.PropertyValue()) > types.PropertyValueMaxLen {
			return NewError(CodeValidation, op, fmt.Sprintf("property %q value exceeds %d characters", name, types.PropertyValueMaxLen), nil)
		}
		if _, dup := seen[name]; dup {
			return NewError(CodeDuplicateProperty, op, fmt.Sprintf("property %q appears more than once", name), nil)
		}
		seen[name] = struct{}{}
	}
	return nil
}
