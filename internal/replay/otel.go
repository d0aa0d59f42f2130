package replay

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/turnkernel/internal/replay"

type metrics struct {
	seeks    metric.Int64Counter
	applied  metric.Int64Histogram
	misses   metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter(instrumentationName)
	m := &metrics{}
	var err error

	if m.seeks, err = meter.Int64Counter("replay.seeks",
		metric.WithDescription("Completed reconstructions")); err != nil {
		return nil, fmt.Errorf("creating seeks counter: %w", err)
	}
	if m.applied, err = meter.Int64Histogram("replay.events.applied",
		metric.WithDescription("Events replayed per reconstruction")); err != nil {
		return nil, fmt.Errorf("creating applied histogram: %w", err)
	}
	if m.misses, err = meter.Int64Counter("replay.snapshot.misses",
		metric.WithDescription("Reconstructions that found no usable snapshot")); err != nil {
		return nil, fmt.Errorf("creating misses counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("replay.duration",
		metric.WithDescription("Reconstruction wall time"), metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return m, nil
}

func (m *metrics) record(s Stats) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("source", s.Source.String()),
		attribute.String("from_snapshot", strconv.FormatBool(s.FromSnapshot)),
	)
	m.seeks.Add(ctx, 1, attrs)
	m.applied.Record(ctx, int64(s.Events), attrs)
	m.duration.Record(ctx, float64(s.Duration.Microseconds())/1000, attrs)
}
