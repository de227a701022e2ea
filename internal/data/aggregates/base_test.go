package aggregates

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	domainagg "github.com/ftkghost/SuperSaver/internal/domain/aggregates"
	"github.com/ftkghost/SuperSaver/internal/platform/ctxutil"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
	"github.com/ftkghost/SuperSaver/internal/reconcile"
)

// bodyRunner runs the write body without a database.
type bodyRunner struct{}

func (bodyRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

type countingHooks struct {
	statuses  []string
	conflicts int
	retries   int
}

func (h *countingHooks) ObserveOperation(_, status string, _ time.Duration) {
	h.statuses = append(h.statuses, status)
}
func (h *countingHooks) IncConflict(string) { h.conflicts++ }
func (h *countingHooks) IncRetry(string)    { h.retries++ }

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestExecuteWrite_StatusPerOutcome(t *testing.T) {
	cases := []struct {
		name      string
		body      error
		status    string
		conflicts int
		retries   int
	}{
		{"success", nil, "success", 0, 0},
		{"duplicate property", fmt.Errorf("reconcile: %w", reconcile.ErrDuplicatePropertyName), "duplicate_property", 0, 0},
		{"lost compare and set", RequireCASSuccess(false, "product moved"), "conflict", 1, 0},
		{"unique violation", fmt.Errorf("UNIQUE constraint failed: store.retailer_id, store.name"), "conflict", 1, 0},
		{"deadline", context.DeadlineExceeded, "retryable", 0, 1},
		{"sqlite busy", fmt.Errorf("database is locked"), "retryable", 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hooks := &countingHooks{}
			err := executeWrite(context.Background(), BaseDeps{Runner: bodyRunner{}, Hooks: hooks}, "Catalog.Test.Write",
				func(dbctx.Context) error { return tc.body })
			if got := aggregateErrorStatus(err); got != tc.status {
				t.Fatalf("status: want=%s got=%s (%v)", tc.status, got, err)
			}
			if len(hooks.statuses) != 1 || hooks.statuses[0] != tc.status {
				t.Fatalf("observed statuses: %v", hooks.statuses)
			}
			if hooks.conflicts != tc.conflicts || hooks.retries != tc.retries {
				t.Fatalf("conflicts=%d retries=%d", hooks.conflicts, hooks.retries)
			}
			if tc.retries > 0 && !domainagg.IsRetryable(err) {
				t.Fatalf("expected a retryable error, got %v", err)
			}
		})
	}
}

func TestExecuteWrite_SpanCarriesRun(t *testing.T) {
	rec := recordSpans(t)
	ctx := ctxutil.WithRunData(context.Background(), &ctxutil.RunData{RunID: "run-7", DataSourceID: 3})

	err := executeWrite(ctx, BaseDeps{Runner: bodyRunner{}}, "Catalog.Store.AddOrUpdate", func(dbctx.Context) error {
		return ValidationError("store has no name")
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation, got %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans: want=1 got=%d", len(spans))
	}
	span := spans[0]
	if span.Name() != "Catalog.Store.AddOrUpdate" || span.Status().Code != codes.Error {
		t.Fatalf("span: name=%s status=%v", span.Name(), span.Status())
	}
	want := map[attribute.Key]attribute.Value{
		"crawl.run_id":        attribute.StringValue("run-7"),
		"crawl.datasource_id": attribute.IntValue(3),
		"aggregate.status":    attribute.StringValue("validation"),
	}
	for _, kv := range span.Attributes() {
		if v, ok := want[kv.Key]; ok {
			if v != kv.Value {
				t.Fatalf("%s: want=%v got=%v", kv.Key, v.Emit(), kv.Value.Emit())
			}
			delete(want, kv.Key)
		}
	}
	if len(want) != 0 {
		t.Fatalf("missing span attributes: %v", want)
	}
}

func TestObserveRejected_RecordsWithoutTransaction(t *testing.T) {
	hooks := &countingHooks{}
	in := domainagg.NewError(domainagg.CodeValidation, "Catalog.Product.AddOrUpdate", "missing title", nil)
	if out := observeRejected(BaseDeps{Hooks: hooks}, "Catalog.Product.AddOrUpdate", in); out != in {
		t.Fatalf("observeRejected must return its error unchanged")
	}
	if len(hooks.statuses) != 1 || hooks.statuses[0] != "validation" {
		t.Fatalf("statuses: %v", hooks.statuses)
	}
}

func TestAggregateErrorStatus_UnclassifiedIsInternal(t *testing.T) {
	if got := aggregateErrorStatus(nil); got != "success" {
		t.Fatalf("nil: %s", got)
	}
	if got := aggregateErrorStatus(fmt.Errorf("disk on fire")); got != "internal" {
		t.Fatalf("unclassified: %s", got)
	}
}
