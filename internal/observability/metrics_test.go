package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics

	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordCommits(ctx, 10)
		metrics.RecordOccurrence(ctx)
		metrics.RecordScan(ctx, time.Millisecond, true)
		metrics.RecordCacheHit(ctx)
		metrics.RecordReadError(ctx)
		metrics.RecordFindings(ctx, "eid", 3)
	})
}

func TestNoopMetricsRecordWithoutError(t *testing.T) {
	t.Parallel()

	metrics := NewNoopMetrics()
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordCommits(ctx, 1)
		metrics.RecordScan(ctx, time.Second, false)
		metrics.RecordFindings(ctx, "eid", 1)
	})
}

func TestPrometheusMeter_ServesRegisteredInstruments(t *testing.T) {
	t.Parallel()

	meter, handler, err := PrometheusMeter()
	require.NoError(t, err)
	require.NotNil(t, handler)

	metrics, err := NewMetrics(meter)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		metrics.RecordCommits(context.Background(), 5)
	})
}
