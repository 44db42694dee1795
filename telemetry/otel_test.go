package telemetry

import (
	"context"
	"testing"
)

func TestNewOTelEmitter_DisabledUsesNoopProviders(t *testing.T) {
	e, err := NewOTelEmitter(context.Background(), OTelConfig{ServiceName: "httpguard-test"})
	if err != nil {
		t.Fatalf("NewOTelEmitter: %v", err)
	}
	defer e.Shutdown(context.Background())

	ctx := e.RequestStart(context.Background(), RequestStart{Method: "GET", URLSanitized: "https://x"})
	e.RequestStop(ctx, RequestStop{Status: 200})
	e.RetryAttempt(ctx, RetryAttempt{AttemptNumber: 1})
	e.CircuitOpenReject(ctx, CircuitOpenReject{Key: "k"})
	e.RateLimit(ctx, RateLimitEvent{Outcome: RateLimitOK, Key: "k"})
	e.Dedup(ctx, DedupEvent{Outcome: DedupExecute, Key: "k"})
}

func TestNewOTelEmitter_StdoutExportersEnabled(t *testing.T) {
	e, err := NewOTelEmitter(context.Background(), OTelConfig{
		ServiceName:     "httpguard-test",
		TracingEnabled:  true,
		TracingExporter: "stdout",
		MetricsEnabled:  true,
		MetricsExporter: "stdout",
	})
	if err != nil {
		t.Fatalf("NewOTelEmitter: %v", err)
	}
	defer e.Shutdown(context.Background())

	ctx := e.RequestStart(context.Background(), RequestStart{Method: "GET", URLSanitized: "https://x"})
	e.RequestStop(ctx, RequestStop{Status: 200})
}
