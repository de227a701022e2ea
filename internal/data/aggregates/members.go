package aggregates

import (
	"github.com/google/uuid"

	"github.com/ftkghost/SuperSaver/internal/data/repos"
	"github.com/ftkghost/SuperSaver/internal/data/repos/catalog"
	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

// propertyWriter binds a property table to one owner inside a transaction.
type propertyWriter[P types.NamedValue] struct {
	dbc    dbctx.Context
	repo   catalog.PropertyRepo[P]
	attach func(P)
}

func (w propertyWriter[P]) Create(p P) error {
	w.attach(p)
	return w.repo.Create(w.dbc, p)
}

func (w propertyWriter[P]) Update(p P) error { return w.repo.Update(w.dbc, p) }
func (w propertyWriter[P]) Delete(p P) error { return w.repo.Delete(w.dbc, p) }

// productStoreLinks is the product_store relation of one product. Unsaved
// stores are resolved by natural key, so an outlet seen on two deals or on the
// retailer's store list maps to one row. Existing store rows are not rewritten
// here; their values belong to the store repository.
type productStoreLinks struct {
	dbc       dbctx.Context
	productID uuid.UUID
	stores    repos.StoreRepo
	links     repos.ProductStoreRepo
}

func (l productStoreLinks) IsPersisted(s *types.Store) bool { return s.ID != uuid.Nil }

func (l productStoreLinks) Persist(s *types.Store) (*types.Store, error) {
	saved, _, err := l.stores.FindOrCreateByName(l.dbc, s)
	return saved, err
}

func storeIdentity(s *types.Store) string {
	if s.ID == uuid.Nil {
		return ""
	}
	return s.ID.String()
}

func (l productStoreLinks) Link(s *types.Store) error {
	return l.links.Link(l.dbc, l.productID, s.ID)
}

func (l productStoreLinks) Unlink(s *types.Store) error {
	return l.links.Unlink(l.dbc, l.productID, s.ID)
}

func cloneProductProperties(in []*types.ProductProperty) []*types.ProductProperty {
	out := make([]*types.ProductProperty, 0, len(in))
	for _, p := range in {
		out = append(out, &types.ProductProperty{Name: p.Name, Value: p.Value})
	}
	return out
}

func cloneRetailerProperties(in []*types.RetailerProperty) []*types.RetailerProperty {
	out := make([]*types.RetailerProperty, 0, len(in))
	for _, p := range in {
		out = append(out, &types.RetailerProperty{Name: p.Name, Value: p.Value})
	}
	return out
}

func cloneStoreProperties(in []*types.StoreProperty) []*types.StoreProperty {
	out := make([]*types.StoreProperty, 0, len(in))
	for _, p := range in {
		out = append(out, &types.StoreProperty{Name: p.Name, Value: p.Value})
	}
	return out
}
