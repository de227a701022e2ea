package aggregates

import (
	"context"
	"strings"

	"github.com/ftkghost/SuperSaver/internal/data/repos"
	types "github.com/ftkghost/SuperSaver/internal/domain"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
	"github.com/ftkghost/SuperSaver/internal/keyedcache"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
	"github.com/ftkghost/SuperSaver/internal/reconcile"
)

type RetailerAggregateDeps struct {
	Base BaseDeps

	Retailers  repos.RetailerRepo
	Properties repos.RetailerPropertyRepo
}

type retailerAggregate struct {
	deps   RetailerAggregateDeps
	log    *logger.Logger
	source types.DataSource

	cache *keyedcache.Cache[*types.Retailer]
	locks *keyedcache.KeyLocks
}

func retailerKey(r *types.Retailer) string { return r.Name }

// NewRetailerAggregate seeds the name cache with every retailer of source.
func NewRetailerAggregate(ctx context.Context, deps RetailerAggregateDeps, source types.DataSource) (domainagg.RetailerAggregate, error) {
	deps.Base = deps.Base.withDefaults()
	if deps.Retailers == nil || deps.Properties == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, "Catalog.Retailer.New", "retailer aggregate repos not configured", nil)
	}
	rows, err := deps.Retailers.ListByDataSource(dbctx.Context{Ctx: ctx}, source.ID)
	if err != nil {
		return nil, MapError("Catalog.Retailer.New", err)
	}
	log := deps.Base.Log.With("aggregate", "RetailerAggregate", "datasource_id", source.ID)
	log.Info("seeded retailer cache", "count", len(rows))
	return &retailerAggregate{
		deps:   deps,
		log:    log,
		source: source,
		cache:  keyedcache.New(rows, retailerKey),
		locks:  keyedcache.NewKeyLocks(),
	}, nil
}

func (a *retailerAggregate) Contract() domainagg.Contract {
	return domainagg.RetailerAggregateContract
}

func (a *retailerAggregate) AddOrUpdate(ctx context.Context, in domainagg.RetailerCandidate, properties []*types.RetailerProperty) (*types.Retailer, error) {
	const op = "Catalog.Retailer.AddOrUpdate"
	if err := in.Validate(); err != nil {
		return nil, observeRejected(a.deps.Base, op, err)
	}
	if err := domainagg.ValidatePropertyNames(op, properties); err != nil {
		return nil, observeRejected(a.deps.Base, op, err)
	}
	key := types.NormalizeName(in.Name)

	unlock := a.locks.Lock(key)
	defer unlock()

	var persisted *types.Retailer
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		var r *types.Retailer
		if cached, ok := a.cache.Get(key); ok {
			clone := *cached
			r = &clone
		} else {
			found, err := a.deps.Retailers.GetByName(dbc, a.source.ID, key)
			if err != nil {
				return err
			}
			r = found
		}

		created := r == nil
		if created {
			r = &types.Retailer{}
		}
		r.Name = key
		r.DisplayName = strings.TrimSpace(in.Name)
		r.Site = in.Site
		r.LogoURL = in.LogoURL
		r.DataSourceID = a.source.ID
		r.CountryCode = a.source.CountryCode
		r.DataSource = nil
		if created {
			if err := a.deps.Retailers.Create(dbc, r); err != nil {
				return err
			}
			a.log.Debug("retailer created", "name", key, "id", r.ID)
		} else if err := a.deps.Retailers.Save(dbc, r); err != nil {
			return err
		}

		if properties != nil {
			current, err := a.deps.Properties.ListByOwner(dbc, r.ID)
			if err != nil {
				return err
			}
			w := propertyWriter[*types.RetailerProperty]{
				dbc:    dbc,
				repo:   a.deps.Properties,
				attach: func(p *types.RetailerProperty) { p.RetailerID = r.ID },
			}
			if _, err := reconcile.ReconcileProperties(current, cloneRetailerProperties(properties), w); err != nil {
				return err
			}
		}
		persisted = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.cache.Upsert(persisted)
	out := *persisted
	return &out, nil
}

// GetByName normalises name before the lookup. An empty name is absent.
func (a *retailerAggregate) GetByName(name string) (*types.Retailer, bool) {
	key := types.NormalizeName(name)
	if key == "" {
		return nil, false
	}
	r, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	out := *r
	return &out, true
}

func (a *retailerAggregate) All() []*types.Retailer {
	items := a.cache.All()
	out := make([]*types.Retailer, 0, len(items))
	for _, r := range items {
		c := *r
		out = append(out, &c)
	}
	return out
}
