package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_AggregateCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveAggregateOperation("Catalog.Product.AddOrUpdate", "success", 3*time.Millisecond)
	m.ObserveAggregateOperation("Catalog.Product.AddOrUpdate", "success", 4*time.Millisecond)
	m.IncAggregateConflict("Catalog.Product.AddOrUpdate")

	if got := testutil.ToFloat64(m.aggregateOps.WithLabelValues("Catalog.Product.AddOrUpdate", "success")); got != 2 {
		t.Fatalf("operations: expected 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.aggregateConflicts.WithLabelValues("Catalog.Product.AddOrUpdate")); got != 1 {
		t.Fatalf("conflicts: expected 1, got %v", got)
	}
}

func TestMetrics_SweptIgnoresZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddSwept("grabone", 0)
	m.AddSwept("grabone", 3)
	if got := testutil.ToFloat64(m.sweptTotal.WithLabelValues("grabone")); got != 3 {
		t.Fatalf("swept: expected 3, got %v", got)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAggregateOperation("op", "success", time.Millisecond)
	m.IncIngest("grabone", "applied")
	m.SetCacheEntries("product", 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("expected 503 from nil metrics, got %d", rec.Code)
	}
}

func TestMetrics_HandlerExposesSeries(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.IncIngest("grabone", "applied")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `supersaver_ingest_items_total{datasource="grabone",outcome="applied"} 1`) {
		t.Fatalf("series missing from exposition:\n%s", rec.Body.String())
	}
}
