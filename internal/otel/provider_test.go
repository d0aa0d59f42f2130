package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Meter("test"))

	samples, err := p.Summary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSummary_CollectsInstruments(t *testing.T) {
	p, err := New(Config{Enabled: true, ServiceName: "turnkernel-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	meter := p.Meter("test")
	seeks, err := meter.Int64Counter("replay.seeks")
	require.NoError(t, err)
	applied, err := meter.Int64Histogram("replay.events.applied")
	require.NoError(t, err)

	ctx := context.Background()
	seeks.Add(ctx, 2, metric.WithAttributes(attribute.String("source", "live")))
	seeks.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "saved")))
	applied.Record(ctx, 10)
	applied.Record(ctx, 4)

	samples, err := p.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, Sample{Name: "replay.events.applied", Value: 14, Count: 2}, samples[0])
	assert.Equal(t, Sample{Name: "replay.seeks", Attrs: "source=live", Value: 2}, samples[1])
	assert.Equal(t, Sample{Name: "replay.seeks", Attrs: "source=saved", Value: 1}, samples[2])
}
