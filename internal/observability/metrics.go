// Package observability exposes audit-run metrics through OpenTelemetry
// instruments, scrapeable via Prometheus during long batch runs.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	metricCommitsWalked  = "gitaudit.commits.walked"
	metricOccurrences    = "gitaudit.occurrences.total"
	metricScansTotal     = "gitaudit.scans.total"
	metricCacheHits      = "gitaudit.cache.hits"
	metricTruncations    = "gitaudit.scans.truncated"
	metricReadErrors     = "gitaudit.objects.read_errors"
	metricScanDuration   = "gitaudit.scan.duration.seconds"
	metricFindingsByKind = "gitaudit.findings.total"
	attrPatternKind      = "kind"
)

// scanDurationBoundaries covers microsecond scans of tiny blobs up to
// minutes for objects at the size cap.
var scanDurationBoundaries = []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300}

// Metrics holds the instruments recorded by the audit engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	commits      metric.Int64Counter
	occurrences  metric.Int64Counter
	scans        metric.Int64Counter
	cacheHits    metric.Int64Counter
	truncations  metric.Int64Counter
	readErrors   metric.Int64Counter
	scanDuration metric.Float64Histogram
	findings     metric.Int64Counter
}

// NewMetrics creates the engine instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	builder := &metricBuilder{meter: meter}

	m := &Metrics{
		commits:      builder.counter(metricCommitsWalked, "Commits visited during traversal", "{commit}"),
		occurrences:  builder.counter(metricOccurrences, "History occurrences emitted", "{occurrence}"),
		scans:        builder.counter(metricScansTotal, "Distinct content objects classified", "{object}"),
		cacheHits:    builder.counter(metricCacheHits, "Classification cache hits", "{hit}"),
		truncations:  builder.counter(metricTruncations, "Scans truncated at the size limit", "{object}"),
		readErrors:   builder.counter(metricReadErrors, "Objects that could not be read", "{object}"),
		scanDuration: builder.histogram(metricScanDuration, "Content scan duration in seconds", "s", scanDurationBoundaries...),
		findings:     builder.counter(metricFindingsByKind, "Pattern findings by kind", "{finding}"),
	}

	if builder.err != nil {
		return nil, builder.err
	}

	return m, nil
}

// NewNoopMetrics returns instruments that record nothing; used when the
// metrics listener is disabled.
func NewNoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("gitaudit"))

	return m
}

// RecordCommits counts visited commits.
func (m *Metrics) RecordCommits(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}

	m.commits.Add(ctx, int64(n))
}

// RecordOccurrence counts one emitted occurrence.
func (m *Metrics) RecordOccurrence(ctx context.Context) {
	if m == nil {
		return
	}

	m.occurrences.Add(ctx, 1)
}

// RecordScan counts one actual classification run with its duration and
// whether it was truncated.
func (m *Metrics) RecordScan(ctx context.Context, duration time.Duration, truncated bool) {
	if m == nil {
		return
	}

	m.scans.Add(ctx, 1)
	m.scanDuration.Record(ctx, duration.Seconds())

	if truncated {
		m.truncations.Add(ctx, 1)
	}
}

// RecordCacheHit counts one deduplicated classification request.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}

	m.cacheHits.Add(ctx, 1)
}

// RecordReadError counts one unreadable object.
func (m *Metrics) RecordReadError(ctx context.Context) {
	if m == nil {
		return
	}

	m.readErrors.Add(ctx, 1)
}

// RecordFindings counts findings of one pattern kind.
func (m *Metrics) RecordFindings(ctx context.Context, kind string, count int) {
	if m == nil || count == 0 {
		return
	}

	m.findings.Add(ctx, int64(count), metric.WithAttributes(attribute.String(attrPatternKind, kind)))
}

// metricBuilder accumulates the first instrument creation error, keeping
// construction linear.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	counter, err := b.meter.Int64Counter(name,
		metric.WithDescription(desc), metric.WithUnit(unit))
	if b.err == nil && err != nil {
		b.err = err
	}

	return counter
}

func (b *metricBuilder) histogram(name, desc, unit string, boundaries ...float64) metric.Float64Histogram {
	histogram, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc), metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(boundaries...))
	if b.err == nil && err != nil {
		b.err = err
	}

	return histogram
}
