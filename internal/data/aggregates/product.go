package aggregates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ftkghost/SuperSaver/internal/data/repos"
	types "github.com/ftkghost/SuperSaver/internal/domain"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
	"github.com/ftkghost/SuperSaver/internal/keyedcache"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
	"github.com/ftkghost/SuperSaver/internal/reconcile"
)

type ProductAggregateDeps struct {
	Base BaseDeps

	Products   repos.ProductRepo
	Properties repos.ProductPropertyRepo
	Images     repos.ProductImageRepo
	Links      repos.ProductStoreRepo
	Stores     repos.StoreRepo
}

type productAggregate struct {
	deps         ProductAggregateDeps
	log          *logger.Logger
	dataSourceID int16
	now          int64

	cache *keyedcache.Cache[*types.Product]
	locks *keyedcache.KeyLocks
}

func productKey(p *types.Product) string { return p.LandingPage }

// NewProductAggregate seeds the landing-page cache with the source's deals
// whose promotion has not ended at now.
func NewProductAggregate(ctx context.Context, deps ProductAggregateDeps, dataSourceID int16, now int64) (domainagg.ProductAggregate, error) {
	deps.Base = deps.Base.withDefaults()
	if deps.Products == nil || deps.Properties == nil || deps.Images == nil || deps.Links == nil || deps.Stores == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, "Catalog.Product.New", "product aggregate repos not configured", nil)
	}
	live, err := deps.Products.ListLiveByDataSource(dbctx.Context{Ctx: ctx}, dataSourceID, now)
	if err != nil {
		return nil, MapError("Catalog.Product.New", err)
	}
	log := deps.Base.Log.With("aggregate", "ProductAggregate", "datasource_id", dataSourceID)
	log.Info("seeded product cache", "count", len(live), "now", now)
	return &productAggregate{
		deps:         deps,
		log:          log,
		dataSourceID: dataSourceID,
		now:          now,
		cache:        keyedcache.New(live, productKey),
		locks:        keyedcache.NewKeyLocks(),
	}, nil
}

func (a *productAggregate) Contract() domainagg.Contract {
	return domainagg.ProductAggregateContract
}

func (a *productAggregate) AddOrUpdate(ctx context.Context, in domainagg.ProductCandidate, imageURL string, stores []*types.Store, properties []*types.ProductProperty) (*types.Product, error) {
	const op = "Catalog.Product.AddOrUpdate"
	in.LandingPage = strings.TrimSpace(in.LandingPage)
	if err := in.Validate(); err != nil {
		return nil, observeRejected(a.deps.Base, op, err)
	}
	if err := domainagg.ValidatePropertyNames(op, properties); err != nil {
		return nil, observeRejected(a.deps.Base, op, err)
	}
	storeCands, err := a.storeCandidates(op, in.RetailerID, stores)
	if err != nil {
		return nil, observeRejected(a.deps.Base, op, err)
	}
	imageURL = strings.TrimSpace(imageURL)
	key := in.LandingPage

	// Same-key writers queue here; the cache moves only after commit.
	unlock := a.locks.Lock(key)
	defer unlock()

	var persisted *types.Product
	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		p, created, err := a.upsertRow(dbc, in)
		if err != nil {
			return err
		}
		if imageURL != "" {
			if _, err := a.deps.Images.Record(dbc, p.ID, imageURL); err != nil {
				return fmt.Errorf("record image: %w", err)
			}
		}
		if storeCands != nil {
			current, err := a.deps.Links.ListStores(dbc, p.ID)
			if err != nil {
				return err
			}
			links := productStoreLinks{dbc: dbc, productID: p.ID, stores: a.deps.Stores, links: a.deps.Links}
			res, err := reconcile.ReconcileMembers(current, storeCands, types.StoreValueEquals, links,
				reconcile.WithMemberHash(types.StoreValueHash), reconcile.WithMemberIdentity(storeIdentity))
			if err != nil {
				return err
			}
			if res.Changed() {
				a.log.Debug("product stores reconciled", "landing_page", key, "linked", res.Linked, "unlinked", res.Unlinked, "persisted", res.Persisted)
			}
		}
		if properties != nil {
			current, err := a.deps.Properties.ListByOwner(dbc, p.ID)
			if err != nil {
				return err
			}
			w := propertyWriter[*types.ProductProperty]{
				dbc:    dbc,
				repo:   a.deps.Properties,
				attach: func(pp *types.ProductProperty) { pp.ProductID = p.ID },
			}
			if _, err := reconcile.ReconcileProperties(current, cloneProductProperties(properties), w); err != nil {
				return err
			}
		}
		if created {
			a.log.Debug("product created", "landing_page", key, "id", p.ID)
		}
		persisted = p
		return nil
	})
	if err != nil {
		if domainagg.IsCode(err, domainagg.CodeConflict) {
			// Another writer moved the row; reread it on the next observation.
			a.cache.Delete(key)
		}
		return nil, err
	}
	a.cache.Upsert(persisted)
	out := *persisted
	return &out, nil
}

// upsertRow writes the scalar part of the observation. It works on a copy so
// the cached entity stays untouched if the transaction rolls back.
func (a *productAggregate) upsertRow(dbc dbctx.Context, in domainagg.ProductCandidate) (*types.Product, bool, error) {
	var p *types.Product
	if cached, ok := a.cache.Get(in.LandingPage); ok {
		clone := *cached
		p = &clone
	} else {
		// Deals that ended before this session was seeded are not cached but
		// still own their landing page.
		found, err := a.deps.Products.GetByLandingPage(dbc, a.dataSourceID, in.LandingPage)
		if err != nil {
			return nil, false, err
		}
		p = found
	}

	if p == nil {
		p = &types.Product{}
		applyProductCandidate(p, in, a.now)
		if err := a.deps.Products.Create(dbc, p); err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	expected := p.Version
	applyProductCandidate(p, in, a.now)
	p.Version = expected + 1
	p.UpdatedAt = time.Now().UTC()
	ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, types.Product{}.TableName(), p.ID, expected, productColumns(p))
	if err != nil {
		return nil, false, err
	}
	if err := RequireCASSuccess(ok, fmt.Sprintf("product %s changed since version %d", p.ID, expected)); err != nil {
		return nil, false, err
	}
	return p, false, nil
}

func productColumns(p *types.Product) map[string]any {
	return map[string]any{
		"retailer_id":          p.RetailerID,
		"title":                p.Title,
		"description":          p.Description,
		"price":                p.Price,
		"unit":                 p.Unit,
		"saved":                p.Saved,
		"landing_page":         p.LandingPage,
		"fast_buy_link":        p.FastBuyLink,
		"promotion_start_date": p.PromotionStartDate,
		"promotion_end_date":   p.PromotionEndDate,
		"active":               p.Active,
		"version":              p.Version,
		"updated_at":           p.UpdatedAt,
	}
}

// applyProductCandidate overwrites every reconcilable scalar. A re-observed
// deal is active unless its window had already closed at now.
func applyProductCandidate(p *types.Product, in domainagg.ProductCandidate, now int64) {
	p.RetailerID = in.RetailerID
	p.Title = strings.TrimSpace(in.Title)
	p.Description = strings.TrimSpace(in.Description)
	p.Price = in.Price
	p.Unit = strings.TrimSpace(in.Unit)
	p.Saved = in.Saved
	p.LandingPage = in.LandingPage
	p.FastBuyLink = in.FastBuyLink
	p.PromotionStartDate = in.PromotionStartDate
	p.PromotionEndDate = in.PromotionEndDate
	p.Retailer = nil
	p.Active = p.ActiveAt(now)
}

// storeCandidates copies the observed stores so the caller's values are never
// rebound to persisted rows. nil stays nil.
func (a *productAggregate) storeCandidates(op string, retailerID uuid.UUID, stores []*types.Store) ([]*types.Store, error) {
	if stores == nil {
		return nil, nil
	}
	out := make([]*types.Store, 0, len(stores))
	for i, s := range stores {
		if s == nil || strings.TrimSpace(s.Name) == "" {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("store %d has no name", i), nil)
		}
		c := *s
		c.Retailer = nil
		c.Region = nil
		if c.RetailerID == uuid.Nil {
			c.RetailerID = retailerID
		}
		if c.ID == uuid.Nil {
			c.Name = types.NormalizeName(c.Name)
			if c.DisplayName == "" {
				c.DisplayName = strings.TrimSpace(s.Name)
			}
		}
		out = append(out, &c)
	}
	return out, nil
}

func (a *productAggregate) GetByLandingPage(landingPage string) (*types.Product, bool) {
	p, ok := a.cache.Get(strings.TrimSpace(landingPage))
	if !ok {
		return nil, false
	}
	out := *p
	return &out, true
}

func (a *productAggregate) All() []*types.Product {
	items := a.cache.All()
	out := make([]*types.Product, 0, len(items))
	for _, p := range items {
		c := *p
		out = append(out, &c)
	}
	return out
}

func (a *productAggregate) Len() int { return a.cache.Len() }
