package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ftkghost/SuperSaver/internal/data/aggregates"
)

func TestHooksRecorder_StatusesPerOperation(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("Catalog.Product.AddOrUpdate", "success", time.Millisecond)
	h.ObserveOperation("Catalog.Store.AddOrUpdate", "validation", 0)
	h.ObserveOperation("Catalog.Product.AddOrUpdate", "conflict", time.Millisecond)

	got := h.Statuses("Catalog.Product.AddOrUpdate")
	if len(got) != 2 || got[0] != "success" || got[1] != "conflict" {
		t.Fatalf("product statuses: %v", got)
	}
	if got := h.Statuses("Catalog.Retailer.AddOrUpdate"); len(got) != 0 {
		t.Fatalf("unseen op: %v", got)
	}
}

func TestHooksRecorder_ThroughMultiHooks(t *testing.T) {
	a, b := &HooksRecorder{}, &HooksRecorder{}
	hooks := aggregates.MultiHooks(a, nil, b)

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op := fmt.Sprintf("Catalog.Store.%d", i%2)
			hooks.ObserveOperation(op, "conflict", 0)
			hooks.IncConflict(op)
		}(i)
	}
	wg.Wait()
	hooks.IncRetry("Catalog.Product.AddOrUpdate")

	for name, rec := range map[string]*HooksRecorder{"a": a, "b": b} {
		if len(rec.Operations) != writers || len(rec.Conflicts) != writers {
			t.Fatalf("%s: ops=%d conflicts=%d", name, len(rec.Operations), len(rec.Conflicts))
		}
		if len(rec.Statuses("Catalog.Store.0")) != writers/2 {
			t.Fatalf("%s: uneven split %v", name, rec.Statuses("Catalog.Store.0"))
		}
		if len(rec.Retries) != 1 {
			t.Fatalf("%s: retries=%v", name, rec.Retries)
		}
	}
}
