package aggregates

import (
	"testing"

	"github.com/google/uuid"

	types "github.com/ftkghost/SuperSaver/internal/domain"
)

func validCandidate() ProductCandidate {
	return ProductCandidate{
		RetailerID:         uuid.New(),
		Title:              "Half price pizza",
		Price:              9.5,
		PromotionStartDate: 1000,
		PromotionEndDate:   2000,
		LandingPage:        "/deal/1",
	}
}

func TestProductCandidateValidate(t *testing.T) {
	if err := validCandidate().Validate(); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}

	cases := map[string]func(c *ProductCandidate){
		"missing title":    func(c *ProductCandidate) { c.Title = "  " },
		"missing key":      func(c *ProductCandidate) { c.LandingPage = "" },
		"missing retailer": func(c *ProductCandidate) { c.RetailerID = uuid.Nil },
		"negative price":   func(c *ProductCandidate) { c.Price = -1 },
		"inverted window":  func(c *ProductCandidate) { c.PromotionEndDate = 10 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validCandidate()
			mutate(&c)
			err := c.Validate()
			if !IsCode(err, CodeValidation) {
				t.Fatalf("expected validation code, got %q (%v)", CodeOf(err), err)
			}
		})
	}
}

func TestValidatePropertyNames(t *testing.T) {
	ok := []*types.ProductProperty{{Name: "__grabone_id", Value: "42"}, {Name: "brand", Value: "x"}}
	if err := ValidatePropertyNames("op", ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := []*types.ProductProperty{{Name: "brand", Value: "x"}, {Name: "brand", Value: "y"}}
	if err := ValidatePropertyNames("op", dup); !IsCode(err, CodeDuplicateProperty) {
		t.Fatalf("expected duplicate_property, got %q (%v)", CodeOf(err), err)
	}

	empty := []*types.ProductProperty{{Name: "", Value: "x"}}
	if err := ValidatePropertyNames("op", empty); !IsCode(err, CodeValidation) {
		t.Fatalf("expected validation, got %q (%v)", CodeOf(err), err)
	}
}

func TestRetailerAndStoreCandidateValidate(t *testing.T) {
	if err := (RetailerCandidate{Name: "Briscoes"}).Validate(); err != nil {
		t.Fatalf("retailer: %v", err)
	}
	if err := (RetailerCandidate{Name: " "}).Validate(); !IsCode(err, CodeValidation) {
		t.Fatalf("retailer empty name: %v", err)
	}
	if err := (StoreCandidate{}).Validate(); !IsCode(err, CodeValidation) {
		t.Fatalf("store empty name: %v", err)
	}
}
