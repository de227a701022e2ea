package crawl

import (
	"context"
	"strings"

	"github.com/google/uuid"

	types "github.com/ftkghost/SuperSaver/internal/domain"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/reconcile"
)

// PlanEntry is what applying one observation would do.
type PlanEntry struct {
	LandingPage string                   `json:"landing_page"`
	NewRetailer bool                     `json:"new_retailer"`
	NewProduct  bool                     `json:"new_product"`
	Properties  reconcile.PropertyResult `json:"properties"`
	SkipsStores bool                     `json:"skips_stores"`
	// Shown lists the property names the deal displays once applied.
	// Internal bookkeeping properties are left out.
	Shown []string `json:"shown,omitempty"`
	Error       string                   `json:"error,omitempty"`
	ErrorCode   string                   `json:"error_code,omitempty"`
}

// Plan validates observations and diffs their properties against the stored
// rows without writing anything.
func Plan(ctx context.Context, deps Deps, dataSourceID int16, observations []Observation) ([]PlanEntry, error) {
	dbc := dbctx.Context{Ctx: ctx}
	out := make([]PlanEntry, 0, len(observations))
	for _, obs := range observations {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		entry, err := planOne(dbc, deps, dataSourceID, obs)
		if err != nil {
			entry.Error = err.Error()
			entry.ErrorCode = string(domainagg.CodeOf(err))
		}
		out = append(out, entry)
	}
	return out, nil
}

func planOne(dbc dbctx.Context, deps Deps, dataSourceID int16, obs Observation) (PlanEntry, error) {
	entry := PlanEntry{
		LandingPage: strings.TrimSpace(obs.Product.LandingPage),
		SkipsStores: obs.Stores == nil,
	}
	if err := obs.Retailer.Validate(); err != nil {
		return entry, err
	}
	retailer, err := deps.Catalog.Retailers.GetByName(dbc, dataSourceID, types.NormalizeName(obs.Retailer.Name))
	if err != nil {
		return entry, err
	}
	candidate := obs.Product
	candidate.LandingPage = entry.LandingPage
	if retailer == nil {
		entry.NewRetailer = true
		// Stand-in so the deal itself can still be validated.
		candidate.RetailerID = uuid.New()
	} else {
		candidate.RetailerID = retailer.ID
	}
	if err := candidate.Validate(); err != nil {
		return entry, err
	}
	const op = "Crawl.Plan"
	if err := domainagg.ValidatePropertyNames(op, obs.Properties); err != nil {
		return entry, err
	}

	var current []*types.ProductProperty
	product, err := deps.Catalog.Products.GetByLandingPage(dbc, dataSourceID, entry.LandingPage)
	if err != nil {
		return entry, err
	}
	if product == nil {
		entry.NewProduct = true
	} else if current, err = deps.Catalog.ProductProperties.ListByOwner(dbc, product.ID); err != nil {
		return entry, err
	}
	if obs.Properties == nil {
		entry.Properties.Unchanged = len(current)
		if product != nil {
			public, err := deps.Catalog.ProductProperties.GetPublicByOwner(dbc, product.ID)
			if err != nil {
				return entry, err
			}
			entry.Shown = propertyNames(public)
		}
		return entry, nil
	}
	entry.Shown = propertyNames(types.PublicProperties(obs.Properties))
	plan, err := reconcile.PlanProperties(current, obs.Properties)
	if err != nil {
		return entry, err
	}
	entry.Properties = reconcile.PropertyResult{
		Created:   len(plan.Create),
		Updated:   len(plan.Update),
		Unchanged: len(plan.Unchanged),
		Deleted:   len(plan.Delete),
	}
	return entry, nil
}

func propertyNames(props []*types.ProductProperty) []string {
	out := make([]string, 0, len(props))
	for _, p := range props {
		out = append(out, p.Name)
	}
	return out
}
