// Package crawl drives one crawl session: it locks the data source, retires
// ended deals, then reconciles observations through the entity repositories.
package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/ftkghost/SuperSaver/internal/data/aggregates"
	"github.com/ftkghost/SuperSaver/internal/data/repos"
	types "github.com/ftkghost/SuperSaver/internal/domain"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
	"github.com/ftkghost/SuperSaver/internal/ingestion/lasoo"
	"github.com/ftkghost/SuperSaver/internal/observability"
	"github.com/ftkghost/SuperSaver/internal/platform/ctxutil"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/platform/logger"
	"github.com/ftkghost/SuperSaver/internal/runlock"
)

type Deps struct {
	DB      *gorm.DB
	Log     *logger.Logger
	Catalog repos.Catalog
	Runs    repos.CrawlRunRepo
	Locker  runlock.Locker
	Metrics *observability.Metrics
}

type Session struct {
	log     *logger.Logger
	cfg     SessionConfig
	source  types.DataSource
	metrics *observability.Metrics

	lease     runlock.Lease
	// leaseLost is cancelled with the cause once the lock can no longer be
	// renewed. Ingest stops when it fires.
	leaseLost     context.Context
	stopKeepalive func()
	runs      domainagg.CrawlRunAggregate
	run       *types.CrawlRun
	retailers domainagg.RetailerAggregate
	products  domainagg.ProductAggregate

	base    aggregates.BaseDeps
	catalog repos.Catalog

	storesMu sync.Mutex
	stores   map[uuid.UUID]domainagg.StoreAggregate

	// regions maps normalised active region names of the source's country.
	// Written once in Open.
	regions map[string]uuid.UUID

	started time.Time
	swept   int64

	observed  atomic.Int64
	applied   atomic.Int64
	failed    atomic.Int64
	conflicts atomic.Int64
	retries   atomic.Int64

	closeOnce sync.Once
}

// Stats is stored on the crawl_run row when the session closes.
type Stats struct {
	Observed  int64 `json:"observed"`
	Applied   int64 `json:"applied"`
	Failed    int64 `json:"failed"`
	Conflicts int64 `json:"conflicts"`
	Retries   int64 `json:"retries"`
	Swept     int64 `json:"swept"`
	Retailers int   `json:"retailers"`
	Products  int   `json:"products"`
}

// Open locks the source, sweeps ended deals, seeds the repositories and
// records the run. On error nothing stays locked.
func Open(ctx context.Context, deps Deps, cfg SessionConfig) (_ *Session, err error) {
	cfg = cfg.withDefaults()
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	if deps.Locker == nil {
		deps.Locker = runlock.NewLocalLocker()
	}
	log := deps.Log.With("service", "CrawlSession", "datasource_id", cfg.DataSourceID)

	source, err := deps.Catalog.DataSources.GetByID(dbctx.Context{Ctx: ctx}, cfg.DataSourceID)
	if err != nil {
		return nil, aggregates.MapError("Crawl.Session.Open", err)
	}
	if source == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, "Crawl.Session.Open", fmt.Sprintf("data source %d not found", cfg.DataSourceID), nil)
	}

	lease, err := deps.Locker.Acquire(ctx, runlock.Scope(cfg.DataSourceID), cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	leaseLost, markLost := context.WithCancelCause(context.Background())
	stopKeepalive := runlock.KeepAlive(context.WithoutCancel(ctx), lease, cfg.LockTTL, func(lerr error) {
		log.Error("crawl lock lost", "scope", lease.Scope(), "error", lerr)
		markLost(lerr)
	})
	runStarted := false
	defer func() {
		if err != nil && !runStarted {
			stopKeepalive()
			if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
				log.Warn("release lock after failed open", "error", rerr)
			}
		}
	}()

	s := &Session{
		log:           log,
		cfg:           cfg,
		source:        *source,
		metrics:       deps.Metrics,
		lease:         lease,
		leaseLost:     leaseLost,
		stopKeepalive: stopKeepalive,
		catalog:       deps.Catalog,
		stores:        map[uuid.UUID]domainagg.StoreAggregate{},
		started:       time.Now(),
	}
	base := aggregates.BaseDeps{
		DB:    deps.DB,
		Log:   deps.Log,
		Hooks: aggregates.MultiHooks(aggregates.NewObservabilityHooks(deps.Metrics), sessionHooks{s}),
	}
	s.base = base
	s.runs = aggregates.NewCrawlRunAggregate(aggregates.CrawlRunAggregateDeps{Base: base, Runs: deps.Runs})

	s.run, err = s.runs.Start(ctx, source.ID, cfg.Now)
	if err != nil {
		return nil, err
	}
	// From here the failed-run path below owns the lease.
	runStarted = true
	defer func() {
		if err != nil {
			if ferr := s.finish(context.WithoutCancel(ctx), types.CrawlRunFailed, err); ferr != nil {
				log.Warn("finish run after failed open", "error", ferr)
			}
		}
	}()

	sweeper := aggregates.NewSweeper(aggregates.SweeperDeps{Base: base, Products: deps.Catalog.Products})
	s.swept, err = sweeper.Sweep(ctx, source.ID, cfg.Now)
	if err != nil {
		return nil, err
	}
	s.metrics.AddSwept(source.Name, s.swept)

	s.retailers, err = aggregates.NewRetailerAggregate(ctx, aggregates.RetailerAggregateDeps{
		Base:       base,
		Retailers:  deps.Catalog.Retailers,
		Properties: deps.Catalog.RetailerProperties,
	}, *source)
	if err != nil {
		return nil, err
	}
	s.products, err = aggregates.NewProductAggregate(ctx, aggregates.ProductAggregateDeps{
		Base:       base,
		Products:   deps.Catalog.Products,
		Properties: deps.Catalog.ProductProperties,
		Images:     deps.Catalog.ProductImages,
		Links:      deps.Catalog.ProductStores,
		Stores:     deps.Catalog.Stores,
	}, source.ID, cfg.Now)
	if err != nil {
		return nil, err
	}
	s.regions, err = loadRegions(ctx, deps.Catalog.Regions, source.CountryCode)
	if err != nil {
		return nil, err
	}
	s.reportCacheSizes()

	log.Info("crawl session opened", "run_id", s.run.ID, "swept", s.swept, "regions", len(s.regions), "now", cfg.Now)
	return s, nil
}

func (s *Session) RunID() string            { return s.run.ID.String() }
func (s *Session) Swept() int64             { return s.swept }
func (s *Session) Source() types.DataSource { return s.source }

func (s *Session) Products() domainagg.ProductAggregate   { return s.products }
func (s *Session) Retailers() domainagg.RetailerAggregate { return s.retailers }

// Ingest applies observations concurrently. A failed observation is counted
// and logged; it never stops the others. Only cancellation and a lost crawl
// lock are returned.
func (s *Session) Ingest(ctx context.Context, observations []Observation) error {
	if err := context.Cause(s.leaseLost); err != nil {
		return err
	}
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stopWatch := context.AfterFunc(s.leaseLost, func() { cancel(context.Cause(s.leaseLost)) })
	defer stopWatch()

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i := range observations {
		obs := observations[i]
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.observed.Add(1)
			if _, err := s.applyWithRetry(ctx, obs); err != nil {
				s.failed.Add(1)
				s.metrics.IncIngest(s.source.Name, "failed")
				s.log.Warn("observation failed",
					"landing_page", obs.Product.LandingPage,
					"code", string(domainagg.CodeOf(err)),
					"error", err,
				)
				return nil
			}
			s.applied.Add(1)
			s.metrics.IncIngest(s.source.Name, "applied")
			return nil
		})
	}
	_ = g.Wait()
	s.reportCacheSizes()
	if err := context.Cause(s.leaseLost); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

// applyWithRetry reapplies an observation whose write the database gave up on.
func (s *Session) applyWithRetry(ctx context.Context, obs Observation) (*types.Product, error) {
	for attempt := 1; ; attempt++ {
		p, err := s.Apply(ctx, obs)
		if err == nil || !domainagg.IsRetryable(err) || attempt >= s.cfg.MaxAttempts || ctx.Err() != nil {
			return p, err
		}
		s.log.Debug("retrying observation", "landing_page", obs.Product.LandingPage, "attempt", attempt, "error", err)
	}
}

// Apply reconciles one observation: the retailer first, then the deal or
// the retailer's store list.
func (s *Session) Apply(ctx context.Context, obs Observation) (*types.Product, error) {
	ctx = ctxutil.WithRunData(ctx, &ctxutil.RunData{RunID: s.run.ID.String(), DataSourceID: s.source.ID})
	retailer, err := s.resolveRetailer(ctx, obs)
	if err != nil {
		return nil, err
	}
	if obs.StoreList != nil {
		return nil, s.applyStoreList(ctx, retailer, obs.StoreList)
	}
	stores, err := s.storesWithRegions(obs.Stores)
	if err != nil {
		return nil, err
	}
	candidate := obs.Product
	candidate.RetailerID = retailer.ID
	return s.products.AddOrUpdate(ctx, candidate, obs.ImageURL, stores, obs.Properties)
}

func (s *Session) resolveRetailer(ctx context.Context, obs Observation) (*types.Retailer, error) {
	if cached, ok := s.retailers.GetByName(obs.Retailer.Name); ok && !retailerChanged(cached, obs) {
		return cached, nil
	}
	return s.retailers.AddOrUpdate(ctx, obs.Retailer, obs.RetailerProperties)
}

func (s *Session) applyStoreList(ctx context.Context, retailer *types.Retailer, list *StoreListObservation) error {
	records, err := lasoo.ParseStoreList(list.Script)
	if err != nil {
		return domainagg.NewError(domainagg.CodeValidation, "Crawl.Session.StoreList", "unreadable store list", err)
	}
	stores, err := s.storesOf(ctx, retailer)
	if err != nil {
		return err
	}
	for _, rec := range records {
		candidate := rec.Candidate()
		if addr, ok := list.Addresses[rec.LasooID]; ok {
			addr = lasoo.NormalizeAddress(addr)
			candidate.Address = &addr
		}
		if candidate.Region == "" {
			candidate.Region = list.Region
		}
		if candidate.RegionID, err = s.regionID(candidate.Region); err != nil {
			return err
		}
		if _, err := stores.AddOrUpdate(ctx, candidate, rec.Properties()); err != nil {
			return fmt.Errorf("store %q: %w", rec.DisplayName, err)
		}
	}
	return nil
}

// storesOf returns the store repository of retailer, seeding it on first use.
func (s *Session) storesOf(ctx context.Context, retailer *types.Retailer) (domainagg.StoreAggregate, error) {
	s.storesMu.Lock()
	defer s.storesMu.Unlock()
	if agg, ok := s.stores[retailer.ID]; ok {
		return agg, nil
	}
	agg, err := aggregates.NewStoreAggregate(ctx, aggregates.StoreAggregateDeps{
		Base:       s.base,
		Stores:     s.catalog.Stores,
		Properties: s.catalog.StoreProperties,
	}, *retailer)
	if err != nil {
		return nil, err
	}
	s.stores[retailer.ID] = agg
	return agg, nil
}

func retailerChanged(cur *types.Retailer, obs Observation) bool {
	if obs.RetailerProperties != nil {
		return true
	}
	return !sameOptional(cur.Site, obs.Retailer.Site) || !sameOptional(cur.LogoURL, obs.Retailer.LogoURL)
}

// sameOptional treats an unobserved value as unchanged.
func sameOptional(cur, observed *string) bool {
	if observed == nil {
		return true
	}
	return cur != nil && *cur == *observed
}

func (s *Session) Stats() Stats {
	st := Stats{
		Observed:  s.observed.Load(),
		Applied:   s.applied.Load(),
		Failed:    s.failed.Load(),
		Conflicts: s.conflicts.Load(),
		Retries:   s.retries.Load(),
		Swept:     s.swept,
	}
	if s.retailers != nil {
		st.Retailers = len(s.retailers.All())
	}
	if s.products != nil {
		st.Products = s.products.Len()
	}
	return st
}

// Close records the outcome and releases the source. cause marks the run
// failed when non-nil. Close is safe to call more than once.
func (s *Session) Close(ctx context.Context, cause error) error {
	var err error
	s.closeOnce.Do(func() {
		status := types.CrawlRunSucceeded
		if cause != nil {
			status = types.CrawlRunFailed
		}
		err = s.finish(ctx, status, cause)
	})
	return err
}

func (s *Session) finish(ctx context.Context, status string, cause error) error {
	stats := s.Stats()
	raw, _ := json.Marshal(stats)
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	finishErr := s.runs.Finish(ctx, domainagg.FinishCrawlRunInput{
		RunID:      s.run.ID,
		Status:     status,
		SweptCount: s.swept,
		Stats:      raw,
		Error:      msg,
		FinishedAt: time.Now(),
	})
	s.stopKeepalive()
	releaseErr := s.lease.Release(ctx)
	s.metrics.ObserveRun(s.source.Name, status, time.Since(s.started))
	s.log.Info("crawl session closed",
		"run_id", s.run.ID,
		"status", status,
		"observed", stats.Observed,
		"applied", stats.Applied,
		"failed", stats.Failed,
	)
	return errors.Join(finishErr, releaseErr)
}

func (s *Session) reportCacheSizes() {
	if s.metrics == nil {
		return
	}
	if s.products != nil {
		s.metrics.SetCacheEntries("product:"+strconv.Itoa(int(s.source.ID)), s.products.Len())
	}
	if s.retailers != nil {
		s.metrics.SetCacheEntries("retailer:"+strconv.Itoa(int(s.source.ID)), len(s.retailers.All()))
	}
}

func loadRegions(ctx context.Context, repo repos.RegionRepo, countryCode string) (map[string]uuid.UUID, error) {
	rows, err := repo.ListActiveByCountry(dbctx.Context{Ctx: ctx}, countryCode)
	if err != nil {
		return nil, aggregates.MapError("Crawl.Session.Regions", err)
	}
	out := make(map[string]uuid.UUID, len(rows))
	for _, r := range rows {
		out[types.NormalizeName(r.Name)] = r.ID
	}
	return out, nil
}

// regionID resolves a region named by a source page. An empty name leaves the
// store's region alone; a name the country does not know is a bad observation.
func (s *Session) regionID(name string) (*uuid.UUID, error) {
	key := types.NormalizeName(name)
	if key == "" {
		return nil, nil
	}
	id, ok := s.regions[key]
	if !ok {
		return nil, domainagg.NewError(domainagg.CodeValidation, "Crawl.Session.Region",
			fmt.Sprintf("unknown region %q in %s", name, s.source.CountryCode), nil)
	}
	return &id, nil
}

// storesWithRegions copies stores that name a region and sets their RegionID.
func (s *Session) storesWithRegions(stores []*types.Store) ([]*types.Store, error) {
	if stores == nil {
		return nil, nil
	}
	out := make([]*types.Store, len(stores))
	for i, st := range stores {
		if st == nil || st.RegionName == "" {
			out[i] = st
			continue
		}
		id, err := s.regionID(st.RegionName)
		if err != nil {
			return nil, err
		}
		c := *st
		c.RegionID = id
		out[i] = &c
	}
	return out, nil
}

// sessionHooks counts lost writes into the run's stats.
type sessionHooks struct{ s *Session }

func (sessionHooks) ObserveOperation(string, string, time.Duration) {}
func (h sessionHooks) IncConflict(string)                            { h.s.conflicts.Add(1) }
func (h sessionHooks) IncRetry(string)                               { h.s.retries.Add(1) }
