package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/httpguard/telemetry/exporters"
)

// OTelConfig configures the span+metric sink.
type OTelConfig struct {
	ServiceName     string
	Version         string
	TracingEnabled  bool
	TracingExporter string // otlp|jaeger|stdout|none
	MetricsEnabled  bool
	MetricsExporter string // otlp|prometheus|stdout|none
}

// OTelEmitter turns the resilience events into OTel spans (request.start/
// stop/exception) and counters/histograms (retry attempts, circuit open
// rejections, rate-limit and dedup outcomes). A circuit state change is
// recorded only as an event on the span carried by ctx, if any.
type OTelEmitter struct {
	tracer trace.Tracer
	meter  metric.Meter

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	requestDuration metric.Float64Histogram
	retryCount      metric.Int64Counter
	circuitOpens    metric.Int64Counter
	rateLimitEvents metric.Int64Counter
	dedupEvents     metric.Int64Counter
}

type spanKey struct{}

// NewOTelEmitter builds an OTelEmitter. Tracing/metrics default to no-op
// providers when disabled, so a Client can always hold a non-nil Emitter.
func NewOTelEmitter(ctx context.Context, cfg OTelConfig) (*OTelEmitter, error) {
	e := &OTelEmitter{}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	if cfg.TracingEnabled {
		exp, err := exporters.NewTracingExporter(ctx, cfg.TracingExporter)
		if err != nil {
			return nil, fmt.Errorf("telemetry: tracing exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		e.tracerProvider = tp
		e.tracer = tp.Tracer(cfg.ServiceName)
	} else {
		e.tracer = tracenoop.NewTracerProvider().Tracer("noop")
	}

	if cfg.MetricsEnabled {
		reader, err := exporters.NewMetricsReader(ctx, cfg.MetricsExporter)
		if err != nil {
			return nil, fmt.Errorf("telemetry: metrics reader: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)
		e.meterProvider = mp
		e.meter = mp.Meter(cfg.ServiceName)
	} else {
		e.meter = metricnoop.NewMeterProvider().Meter("noop")
	}

	if err := e.buildInstruments(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *OTelEmitter) buildInstruments() error {
	var err error
	if e.requestDuration, err = e.meter.Float64Histogram("httpguard.request.duration_ms",
		metric.WithDescription("request duration"), metric.WithUnit("ms")); err != nil {
		return err
	}
	if e.retryCount, err = e.meter.Int64Counter("httpguard.retry.attempts",
		metric.WithDescription("retry attempts")); err != nil {
		return err
	}
	if e.circuitOpens, err = e.meter.Int64Counter("httpguard.circuit_breaker.opens",
		metric.WithDescription("circuit breaker open rejections")); err != nil {
		return err
	}
	if e.rateLimitEvents, err = e.meter.Int64Counter("httpguard.rate_limit.events",
		metric.WithDescription("rate limiter outcomes")); err != nil {
		return err
	}
	if e.dedupEvents, err = e.meter.Int64Counter("httpguard.dedup.events",
		metric.WithDescription("deduplicator outcomes")); err != nil {
		return err
	}
	return nil
}

// Shutdown drains both providers, returning every error encountered,
// joined with errors.Join.
func (e *OTelEmitter) Shutdown(ctx context.Context) error {
	var errs []error
	if e.tracerProvider != nil {
		if err := e.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.meterProvider != nil {
		if err := e.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *OTelEmitter) RequestStart(ctx context.Context, ev RequestStart) context.Context {
	ctx, span := e.tracer.Start(ctx, "httpguard.request", trace.WithAttributes(
		attribute.String("http.method", ev.Method),
		attribute.String("http.url", ev.URLSanitized),
		attribute.String("correlation_id", ev.CorrelationID),
	))
	return context.WithValue(ctx, spanKey{}, span)
}

func (e *OTelEmitter) RequestStop(ctx context.Context, ev RequestStop) {
	e.requestDuration.Record(ctx, float64(ev.Duration.Milliseconds()),
		metric.WithAttributes(attribute.Int("retry_count", ev.RetryCount), attribute.String("correlation_id", ev.CorrelationID)))

	span, _ := ctx.Value(spanKey{}).(trace.Span)
	if span == nil {
		return
	}
	if ev.ErrorType != "" {
		span.SetStatus(codes.Error, ev.ErrorType)
	} else {
		span.SetAttributes(attribute.Int("http.status_code", ev.Status))
	}
	span.End()
}

func (e *OTelEmitter) RequestException(ctx context.Context, ev RequestException) {
	span, _ := ctx.Value(spanKey{}).(trace.Span)
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("exception.kind", ev.Kind), attribute.String("exception.reason", ev.Reason))
	span.SetStatus(codes.Error, ev.Reason)
}

func (e *OTelEmitter) RetryAttempt(ctx context.Context, ev RetryAttempt) {
	e.retryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", ev.Reason),
		attribute.String("method", ev.Method),
		attribute.String("correlation_id", ev.CorrelationID),
	))
}

func (e *OTelEmitter) CircuitStateChange(ctx context.Context, ev CircuitStateChange) {
	span, _ := ctx.Value(spanKey{}).(trace.Span)
	if span != nil {
		span.AddEvent("circuit_breaker.state_change", trace.WithAttributes(
			attribute.String("key", ev.Key), attribute.String("from", ev.From), attribute.String("to", ev.To),
			attribute.Int("failure_count", ev.FailureCount),
		))
	}
}

func (e *OTelEmitter) CircuitOpenReject(ctx context.Context, ev CircuitOpenReject) {
	e.circuitOpens.Add(ctx, 1, metric.WithAttributes(attribute.String("key", ev.Key)))
}

func (e *OTelEmitter) RateLimit(ctx context.Context, ev RateLimitEvent) {
	e.rateLimitEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(ev.Outcome)), attribute.String("key", ev.Key),
	))
}

func (e *OTelEmitter) Dedup(ctx context.Context, ev DedupEvent) {
	e.dedupEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(ev.Outcome)), attribute.String("key", ev.Key),
	))
}

var _ Emitter = (*OTelEmitter)(nil)
