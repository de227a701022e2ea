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

type StoreAggregateDeps struct {
	Base BaseDeps

	Stores     repos.StoreRepo
	Properties repos.StorePropertyRepo
}

// storeAggregate serves one retailer's outlets, keyed by normalised name. The
// same key backs the store rows deal pages link to, so both paths share rows.
type storeAggregate struct {
	deps     StoreAggregateDeps
	log      *logger.Logger
	retailer types.Retailer

	cache *keyedcache.Cache[*types.Store]
	locks *keyedcache.KeyLocks
}

func storeKey(s *types.Store) string { return s.Name }

func NewStoreAggregate(ctx context.Context, deps StoreAggregateDeps, retailer types.Retailer) (domainagg.StoreAggregate, error) {
	deps.Base = deps.Base.withDefaults()
	if deps.Stores == nil || deps.Properties == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, "Catalog.Store.New", "store aggregate repos not configured", nil)
	}
	rows, err := deps.Stores.ListByRetailer(dbctx.Context{Ctx: ctx}, retailer.ID)
	if err != nil {
		return nil, MapError("Catalog.Store.New", err)
	}
	log := deps.Base.Log.With("aggregate", "StoreAggregate", "retailer", retailer.Name)
	log.Info("seeded store cache", "count", len(rows))
	retailer.DataSource = nil
	return &storeAggregate{
		deps:     deps,
		log:      log,
		retailer: retailer,
		cache:    keyedcache.New(rows, storeKey),
		locks:    keyedcache.NewKeyLocks(),
	}, nil
}

func (a *storeAggregate) Contract() domainagg.Contract {
	return domainagg.StoreAggregateContract
}

func (a *storeAggregate) AddOrUpdate(ctx context.Context, in domainagg.StoreCandidate, properties []*types.StoreProperty) (*types.Store, error) {
	const op = "Catalog.Store.AddOrUpdate"
	if err := in.Validate(); err != nil {
		return nil, observeRejected(a.deps.Base, op, err)
	}
	if err := domainagg.ValidatePropertyNames(op, properties); err != nil {
		return nil, observeRejected(a.deps.Base, op, err)
	}
	key := types.NormalizeName(in.Name)

	unlock := a.locks.Lock(key)
	defer unlock()

	var persisted *types.Store
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		var s *types.Store
		if cached, ok := a.cache.Get(key); ok {
			clone := *cached
			s = &clone
		} else {
			// Deal pages link stores by name too; reuse their row.
			found, err := a.deps.Stores.GetByName(dbc, a.retailer.ID, key)
			if err != nil {
				return err
			}
			s = found
		}
		created := s == nil
		if created {
			s = &types.Store{RetailerID: a.retailer.ID}
		}
		s.Name = key
		s.DisplayName = strings.TrimSpace(in.Name)
		s.Tel = in.Tel
		s.Address = in.Address
		s.WorkingTime = in.WorkingTime
		s.Website = in.Website
		s.Email = in.Email
		s.Latitude = in.Latitude
		s.Longitude = in.Longitude
		s.Active = true
		s.Retailer = nil
		s.Region = nil
		if in.RegionID != nil {
			s.RegionID = in.RegionID
		}
		if created {
			if err := a.deps.Stores.Create(dbc, s); err != nil {
				return err
			}
			a.log.Debug("store created", "name", key, "id", s.ID)
		} else if err := a.deps.Stores.Save(dbc, s); err != nil {
			return err
		}

		if properties != nil {
			current, err := a.deps.Properties.ListByOwner(dbc, s.ID)
			if err != nil {
				return err
			}
			w := propertyWriter[*types.StoreProperty]{
				dbc:    dbc,
				repo:   a.deps.Properties,
				attach: func(p *types.StoreProperty) { p.StoreID = s.ID },
			}
			if _, err := reconcile.ReconcileProperties(current, cloneStoreProperties(properties), w); err != nil {
				return err
			}
		}
		persisted = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.cache.Upsert(persisted)
	out := *persisted
	return &out, nil
}

func (a *storeAggregate) GetByName(name string) (*types.Store, bool) {
	key := types.NormalizeName(name)
	if key == "" {
		return nil, false
	}
	s, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	out := *s
	return &out, true
}

func (a *storeAggregate) All() []*types.Store {
	items := a.cache.All()
	out := make([]*types.Store, 0, len(items))
	for _, s := range items {
		c := *s
		out = append(out, &c)
	}
	return out
}
