package observability

import (
	"context"
	"testing"
)

func TestOTLPSettingsFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318/")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc, bad ,tenant=nz")

	if got := otlpEndpoint(); got != "collector:4318" {
		t.Fatalf("endpoint: got %q", got)
	}
	if !otlpInsecure() {
		t.Fatalf("http endpoint should be insecure")
	}
	h := otlpHeaders()
	if len(h) != 2 || h["x-api-key"] != "abc" || h["tenant"] != "nz" {
		t.Fatalf("headers: got %v", h)
	}
}

func TestBuildTraceExporter_StdoutWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	exp, kind, err := buildTraceExporter(context.Background())
	if err != nil {
		t.Fatalf("buildTraceExporter: %v", err)
	}
	if kind != "stdout" {
		t.Fatalf("expected stdout exporter, got %q", kind)
	}
	_ = exp.Shutdown(context.Background())
}

func TestOTelSampleRatioClamps(t *testing.T) {
	for raw, want := range map[string]float64{"": 1, "0.25": 0.25, "-3": 0, "7": 1, "nope": 1} {
		t.Setenv("OTEL_SAMPLER_RATIO", raw)
		if got := otelSampleRatio(); got != want {
			t.Fatalf("ratio %q: want %v got %v", raw, want, got)
		}
	}
}
