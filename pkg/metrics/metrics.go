// Package metrics wires an OpenTelemetry meter backed by the Prometheus
// registry and defines the instruments recorded by the resolution engine.
package metrics

import (
	"context"
	"fmt"
	"time"
	"unshorten/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// Metrics holds the engine's instruments. All methods are safe for concurrent
// use and cheap enough to call on every resolution.
type Metrics struct {
	expanded      metric.Int64Counter
	skipped       metric.Int64Counter
	failed        metric.Int64Counter
	cacheHits     metric.Int64Counter
	chainDuration metric.Float64Histogram
	chainHops     metric.Int64Histogram
}

// Expanded records one successfully resolved URL.
func (m *Metrics) Expanded(ctx context.Context) {
	m.expanded.Add(ctx, 1)
}

// Skip records one URL excluded by the inclusion policy.
func (m *Metrics) Skip(ctx context.Context, reason domain.SkipReason) {
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}

// Failure records one failed resolution by kind.
func (m *Metrics) Failure(ctx context.Context, kind domain.FailureKind) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

// CacheHit records one resolution served from the cache without network work.
func (m *Metrics) CacheHit(ctx context.Context) {
	m.cacheHits.Add(ctx, 1)
}

// Chain records the outcome of one redirect-chain traversal: its duration,
// hop count, and the success or failure counters.
func (m *Metrics) Chain(ctx context.Context, res domain.Result, elapsed time.Duration) {
	m.chainDuration.Record(ctx, elapsed.Seconds())

	switch res.Status {
	case domain.StatusResolved:
		m.chainHops.Record(ctx, int64(res.Hops))
		m.Expanded(ctx)
	case domain.StatusFailed:
		m.Failure(ctx, res.FailureKind)
	case domain.StatusSkipped:
		// skipped URLs never reach the follower
	}
}

// New creates Metrics backed by an OpenTelemetry meter exporting to the
// default Prometheus registry, so the instruments show up on the debug
// server's metrics endpoint.
func New() (*Metrics, error) {
	exp, err := otelprom.New(otelprom.WithRegisterer(prometheus.DefaultRegisterer))
	if err != nil {
		return nil, fmt.Errorf("could not create otel exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))

	return fromMeter(mp.Meter("unshorten"))
}

// Nop returns Metrics that record nothing, for tests and disabled setups.
func Nop() *Metrics {
	m, _ := fromMeter(noop.NewMeterProvider().Meter("unshorten"))

	return m
}

func fromMeter(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.expanded, err = meter.Int64Counter("urls_expanded",
		metric.WithDescription("URLs successfully expanded to a terminal destination")); err != nil {
		return nil, fmt.Errorf("could not create counter: %w", err)
	}
	if m.skipped, err = meter.Int64Counter("urls_skipped",
		metric.WithDescription("URLs excluded by the inclusion policy")); err != nil {
		return nil, fmt.Errorf("could not create counter: %w", err)
	}
	if m.failed, err = meter.Int64Counter("urls_failed",
		metric.WithDescription("Resolutions that ended in a failure, by kind")); err != nil {
		return nil, fmt.Errorf("could not create counter: %w", err)
	}
	if m.cacheHits, err = meter.Int64Counter("cache_hits",
		metric.WithDescription("Resolutions served from the cache without network work")); err != nil {
		return nil, fmt.Errorf("could not create counter: %w", err)
	}
	if m.chainDuration, err = meter.Float64Histogram("chain_duration_seconds",
		metric.WithDescription("Wall-clock duration of one redirect-chain traversal"),
		metric.WithExplicitBucketBoundaries(DefaultBuckets...)); err != nil {
		return nil, fmt.Errorf("could not create histogram: %w", err)
	}
	if m.chainHops, err = meter.Int64Histogram("chain_hops",
		metric.WithDescription("Redirects followed per resolved URL"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 3, 5, 8, 13, 21)); err != nil {
		return nil, fmt.Errorf("could not create histogram: %w", err)
	}

	return &m, nil
}
