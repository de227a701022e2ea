package aggregates_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ftkghost/SuperSaver/internal/data/aggregates"
	aggtestutil "github.com/ftkghost/SuperSaver/internal/data/aggregates/testutil"
	"github.com/ftkghost/SuperSaver/internal/data/repos"
	"github.com/ftkghost/SuperSaver/internal/data/repos/testutil"
	types "github.com/ftkghost/SuperSaver/internal/domain"
	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

const testNow = int64(1_700_000_000)

type catalogFixture struct {
	db       *gorm.DB
	repos    repos.Catalog
	source   *types.DataSource
	retailer *types.Retailer
	hooks    *aggtestutil.HooksRecorder
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	db := testutil.DB(t)
	ctx := context.Background()
	ds := testutil.SeedDataSource(t, ctx, db, "grabone")
	ret := testutil.SeedRetailer(t, ctx, db, ds.ID, "kmart")
	return &catalogFixture{
		db:       db,
		repos:    repos.NewCatalog(db, testutil.Logger(t)),
		source:   ds,
		retailer: ret,
		hooks:    &aggtestutil.HooksRecorder{},
	}
}

func (f *catalogFixture) base(t *testing.T) aggregates.BaseDeps {
	return aggregates.BaseDeps{DB: f.db, Log: testutil.Logger(t), Hooks: f.hooks}
}

func (f *catalogFixture) productDeps(t *testing.T) aggregates.ProductAggregateDeps {
	return aggregates.ProductAggregateDeps{
		Base:       f.base(t),
		Products:   f.repos.Products,
		Properties: f.repos.ProductProperties,
		Images:     f.repos.ProductImages,
		Links:      f.repos.ProductStores,
		Stores:     f.repos.Stores,
	}
}

func (f *catalogFixture) newProducts(t *testing.T) domainagg.ProductAggregate {
	t.Helper()
	agg, err := aggregates.NewProductAggregate(context.Background(), f.productDeps(t), f.source.ID, testNow)
	if err != nil {
		t.Fatalf("NewProductAggregate: %v", err)
	}
	return agg
}

func (f *catalogFixture) candidate(landingPage string) domainagg.ProductCandidate {
	return domainagg.ProductCandidate{
		RetailerID:         f.retailer.ID,
		Title:              "Half price pizza",
		Price:              12.5,
		Unit:               "ea",
		PromotionStartDate: testNow - 3600,
		PromotionEndDate:   testNow + 86400,
		LandingPage:        landingPage,
	}
}

func (f *catalogFixture) productProps(t *testing.T, productID uuid.UUID) []*types.ProductProperty {
	t.Helper()
	var rows []*types.ProductProperty
	if err := f.db.Where("product_id = ?", productID).Order("name").Find(&rows).Error; err != nil {
		t.Fatalf("list product properties: %v", err)
	}
	return rows
}

func props(kv ...string) []*types.ProductProperty {
	out := []*types.ProductProperty{}
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &types.ProductProperty{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func TestProductAggregate_ScenarioA_CreatesEntityAndProperty(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	if agg.Len() != 0 {
		t.Fatalf("seed: expected empty cache, got %d", agg.Len())
	}

	p, err := agg.AddOrUpdate(context.Background(), f.candidate("/deal/1"), "", nil, props("grabone_id", "42"))
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if p.ID == uuid.Nil || !p.Active {
		t.Fatalf("AddOrUpdate: expected persisted active product, got %+v", p)
	}
	cached, ok := agg.GetByLandingPage("/deal/1")
	if !ok || cached.ID != p.ID {
		t.Fatalf("GetByLandingPage: ok=%v cached=%v", ok, cached)
	}
	rows := f.productProps(t, p.ID)
	if len(rows) != 1 || rows[0].Name != "grabone_id" || rows[0].Value != "42" {
		t.Fatalf("properties: unexpected rows %+v", rows)
	}
	if len(f.hooks.Operations) != 1 || f.hooks.Operations[0].Status != "success" {
		t.Fatalf("hooks: unexpected operations %+v", f.hooks.Operations)
	}
}

func TestProductAggregate_ScenarioB_UpdatesPropertyInPlace(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	ctx := context.Background()

	p, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, props("grabone_id", "42"))
	if err != nil {
		t.Fatalf("first AddOrUpdate: %v", err)
	}
	before := f.productProps(t, p.ID)

	again, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, props("grabone_id", "43"))
	if err != nil {
		t.Fatalf("second AddOrUpdate: %v", err)
	}
	if again.ID != p.ID {
		t.Fatalf("identity: expected %s, got %s", p.ID, again.ID)
	}
	after := f.productProps(t, p.ID)
	if len(after) != 1 {
		t.Fatalf("properties: expected 1 row, got %d", len(after))
	}
	if after[0].ID != before[0].ID || after[0].Value != "43" {
		t.Fatalf("properties: expected row %s mutated to 43, got %+v", before[0].ID, after[0])
	}
}

func TestProductAggregate_ScenarioC_EmptyPropertiesDeleteAll(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	ctx := context.Background()

	p, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, props("grabone_id", "42"))
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	// nil means not observed.
	if _, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, nil); err != nil {
		t.Fatalf("AddOrUpdate nil properties: %v", err)
	}
	if rows := f.productProps(t, p.ID); len(rows) != 1 {
		t.Fatalf("nil properties must not touch rows, got %d", len(rows))
	}
	if _, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, []*types.ProductProperty{}); err != nil {
		t.Fatalf("AddOrUpdate empty properties: %v", err)
	}
	if rows := f.productProps(t, p.ID); len(rows) != 0 {
		t.Fatalf("empty properties: expected no rows, got %d", len(rows))
	}
}

func TestProductAggregate_ScenarioD_StoreMembershipConverges(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	ctx := context.Background()

	storeA := testutil.SeedStore(t, ctx, f.db, f.retailer.ID, "riccarton", testutil.PtrFloat(-43.53), testutil.PtrFloat(172.6))
	storeB := testutil.SeedStore(t, ctx, f.db, f.retailer.ID, "hornby", testutil.PtrFloat(-43.54), testutil.PtrFloat(172.52))

	p, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", []*types.Store{storeA, storeB}, nil)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}

	// storeC has not been saved; it is resolved by value.
	storeC := &types.Store{Name: "Papanui", Latitude: testutil.PtrFloat(-43.49), Longitude: testutil.PtrFloat(172.61)}
	bByValue := &types.Store{RetailerID: f.retailer.ID, Name: "HORNBY", Latitude: storeB.Latitude, Longitude: storeB.Longitude}
	if _, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", []*types.Store{bByValue, storeC}, nil); err != nil {
		t.Fatalf("AddOrUpdate re-reconcile: %v", err)
	}
	if storeC.ID != uuid.Nil {
		t.Fatalf("candidate store must not be mutated, got id %s", storeC.ID)
	}

	linked, err := f.repos.ProductStores.ListStores(dbctx.Context{Ctx: ctx}, p.ID)
	if err != nil {
		t.Fatalf("ListStores: %v", err)
	}
	names := map[string]bool{}
	for _, s := range linked {
		names[s.Name] = true
		if s.Name == "hornby" && s.ID != storeB.ID {
			t.Fatalf("storeB must keep its row, got %s", s.ID)
		}
	}
	if len(linked) != 2 || !names["hornby"] || !names["papanui"] || names["riccarton"] {
		t.Fatalf("links: unexpected stores %v", names)
	}
}

func TestProductAggregate_Idempotent(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	ctx := context.Background()
	stores := []*types.Store{{Name: "Hornby"}}

	first, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "https://img/1.jpg", stores, props("grabone_id", "42", "merchant", "kmart"))
	if err != nil {
		t.Fatalf("first AddOrUpdate: %v", err)
	}
	second, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "https://img/1.jpg", stores, props("grabone_id", "42", "merchant", "kmart"))
	if err != nil {
		t.Fatalf("second AddOrUpdate: %v", err)
	}
	if first.ID != second.ID || agg.Len() != 1 {
		t.Fatalf("expected one entity, got ids %s/%s len=%d", first.ID, second.ID, agg.Len())
	}

	var count int64
	for _, tc := range []struct {
		table string
		want  int64
	}{{"product", 1}, {"product_property", 2}, {"product_image", 1}, {"product_store", 1}, {"store", 1}} {
		q := f.db.Table(tc.table)
		switch tc.table {
		case "product":
			q = q.Where("id = ?", first.ID)
		case "store":
			q = q.Where("retailer_id = ?", f.retailer.ID)
		default:
			q = q.Where("product_id = ?", first.ID)
		}
		if err := q.Count(&count).Error; err != nil {
			t.Fatalf("count %s: %v", tc.table, err)
		}
		if count != tc.want {
			t.Fatalf("%s: expected %d rows, got %d", tc.table, tc.want, count)
		}
	}
}

func TestProductAggregate_SeedsLiveDealsOnly(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()
	testutil.SeedProduct(t, ctx, f.db, f.retailer.ID, "/deal/live", testNow-10, testNow+10, true)
	testutil.SeedProduct(t, ctx, f.db, f.retailer.ID, "/deal/ended", testNow-10, testNow, true)

	agg := f.newProducts(t)
	if agg.Len() != 1 {
		t.Fatalf("seed: expected 1 live deal, got %d", agg.Len())
	}
	if _, ok := agg.GetByLandingPage("/deal/ended"); ok {
		t.Fatalf("seed: ended deal must not be cached")
	}
}

func TestProductAggregate_ReobservedExpiredDealReusesRow(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()
	old := testutil.SeedProduct(t, ctx, f.db, f.retailer.ID, "/deal/1", testNow-100, testNow-50, false)

	agg := f.newProducts(t)
	p, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, nil)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if p.ID != old.ID {
		t.Fatalf("expected row %s reused, got %s", old.ID, p.ID)
	}
	if !p.Active || p.PromotionEndDate != testNow+86400 {
		t.Fatalf("expected reactivated deal with new window, got %+v", p)
	}
}

func TestProductAggregate_ClosedWindowStaysInactive(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	c := f.candidate("/deal/closed")
	c.PromotionEndDate = testNow

	p, err := agg.AddOrUpdate(context.Background(), c, "", nil, nil)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if p.Active {
		t.Fatalf("a window closed at now must not be active")
	}
}

func TestProductAggregate_RejectsBeforeWriting(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	ctx := context.Background()

	bad := f.candidate("/deal/1")
	bad.Price = -1
	if _, err := agg.AddOrUpdate(ctx, bad, "", nil, nil); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("negative price: expected validation, got %v", err)
	}
	bad = f.candidate("/deal/1")
	bad.PromotionEndDate = bad.PromotionStartDate - 1
	if _, err := agg.AddOrUpdate(ctx, bad, "", nil, nil); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("inverted window: expected validation, got %v", err)
	}
	_, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, props("grabone_id", "1", "grabone_id", "2"))
	if !domainagg.IsCode(err, domainagg.CodeDuplicateProperty) {
		t.Fatalf("duplicate property: expected duplicate_property, got %v", err)
	}

	var count int64
	if err := f.db.Model(&types.Product{}).Where("retailer_id = ?", f.retailer.ID).Count(&count).Error; err != nil {
		t.Fatalf("count products: %v", err)
	}
	if count != 0 || agg.Len() != 0 {
		t.Fatalf("rejected writes must not persist: rows=%d cached=%d", count, agg.Len())
	}
	if len(f.hooks.Operations) != 3 || f.hooks.Operations[2].Status != string(domainagg.CodeDuplicateProperty) {
		t.Fatalf("hooks: unexpected operations %+v", f.hooks.Operations)
	}
}

func TestProductAggregate_FailedCommitLeavesCacheAlone(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()
	deps := f.productDeps(t)
	runner := &aggtestutil.InjectedTxRunner{DB: f.db, FailCommit: errors.New("commit lost")}
	deps.Base.Runner = runner

	agg, err := aggregates.NewProductAggregate(ctx, deps, f.source.ID, testNow)
	if err != nil {
		t.Fatalf("NewProductAggregate: %v", err)
	}
	if _, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, nil); !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if _, ok := agg.GetByLandingPage("/deal/1"); ok {
		t.Fatalf("cache must not change when the transaction fails")
	}
	var count int64
	if err := f.db.Model(&types.Product{}).Where("landing_page = ?", "/deal/1").Count(&count).Error; err != nil {
		t.Fatalf("count products: %v", err)
	}
	if count != 0 || runner.RollbackCalls != 1 {
		t.Fatalf("rolled back write persisted: rows=%d rollbacks=%d", count, runner.RollbackCalls)
	}
}

func TestProductAggregate_ConcurrentSameKey(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := f.candidate("/deal/shared")
			c.Price = float64(10 + i)
			if _, err := agg.AddOrUpdate(ctx, c, "", nil, props("worker", fmt.Sprint(i))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent AddOrUpdate: %v", err)
	}

	var count int64
	if err := f.db.Model(&types.Product{}).Where("retailer_id = ? AND landing_page = ?", f.retailer.ID, "/deal/shared").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 || agg.Len() != 1 {
		t.Fatalf("expected one row and one cache entry, got rows=%d cached=%d", count, agg.Len())
	}
	cached, _ := agg.GetByLandingPage("/deal/shared")
	row, err := f.repos.Products.GetByID(dbctx.Context{Ctx: ctx}, cached.ID)
	if err != nil || row == nil {
		t.Fatalf("GetByID: row=%v err=%v", row, err)
	}
	if row.Price != cached.Price {
		t.Fatalf("cache and row diverged: cached=%v row=%v", cached.Price, row.Price)
	}
}

func TestProductAggregate_ReturnsCopies(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	p, err := agg.AddOrUpdate(context.Background(), f.candidate("/deal/1"), "", nil, nil)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	p.Title = "mutated"
	cached, _ := agg.GetByLandingPage("/deal/1")
	if cached.Title == "mutated" {
		t.Fatalf("returned entity must not alias the cache")
	}
	if agg.Contract().Name != domainagg.ProductAggregateContract.Name {
		t.Fatalf("unexpected contract %+v", agg.Contract())
	}
}

func TestProductAggregate_StaleVersionConflicts(t *testing.T) {
	f := newCatalogFixture(t)
	agg := f.newProducts(t)
	ctx := context.Background()

	p, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, nil)
	if err != nil {
		t.Fatalf("AddOrUpdate: %v", err)
	}
	if again, err := agg.AddOrUpdate(ctx, f.candidate("/deal/1"), "", nil, nil); err != nil || again.Version != 1 {
		t.Fatalf("rewrite: version=%v err=%v", again, err)
	}

	// Another writer rewrites the row behind the cache's back.
	if err := f.db.Table("product").Where("id = ?", p.ID).
		Updates(map[string]any{"title": "edited elsewhere", "version": 5}).Error; err != nil {
		t.Fatalf("bump version: %v", err)
	}

	c := f.candidate("/deal/1")
	c.Price = 99
	if _, err := agg.AddOrUpdate(ctx, c, "", nil, nil); !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	row, err := f.repos.Products.GetByID(dbctx.Context{Ctx: ctx}, p.ID)
	if err != nil || row.Title != "edited elsewhere" || row.Price == 99 {
		t.Fatalf("losing write must not land: row=%+v err=%v", row, err)
	}
	if len(f.hooks.Conflicts) != 1 {
		t.Fatalf("conflict hooks: %v", f.hooks.Conflicts)
	}

	// The stale entry is dropped, so the next observation rereads the row.
	if _, ok := agg.GetByLandingPage("/deal/1"); ok {
		t.Fatalf("stale entry must leave the cache")
	}
	healed, err := agg.AddOrUpdate(ctx, c, "", nil, nil)
	if err != nil {
		t.Fatalf("AddOrUpdate after conflict: %v", err)
	}
	if healed.ID != p.ID || healed.Version != 6 || healed.Price != 99 {
		t.Fatalf("healed: %+v", healed)
	}
}
