package snapshot

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/turnkernel/internal/snapshot"

type metrics struct {
	created       metric.Int64Counter
	evicted       metric.Int64Counter
	writeFailures metric.Int64Counter
	reg           metric.Registration
}

// newMetrics registers the manager's instruments on the global meter provider.
func newMetrics(m *Manager) (*metrics, error) {
	meter := otel.Meter(instrumentationName)
	met := &metrics{}
	var err error

	if met.created, err = meter.Int64Counter("snapshot.created",
		metric.WithDescription("Snapshots created, including replacements")); err != nil {
		return nil, fmt.Errorf("creating created counter: %w", err)
	}
	if met.evicted, err = meter.Int64Counter("snapshot.evicted",
		metric.WithDescription("Snapshots evicted from memory to the durable store")); err != nil {
		return nil, fmt.Errorf("creating evicted counter: %w", err)
	}
	if met.writeFailures, err = meter.Int64Counter("snapshot.write.failures",
		metric.WithDescription("Failed durable snapshot writes")); err != nil {
		return nil, fmt.Errorf("creating write failure counter: %w", err)
	}

	resident, err := meter.Int64ObservableGauge("snapshot.resident",
		metric.WithDescription("Snapshots held in memory"))
	if err != nil {
		return nil, fmt.Errorf("creating resident gauge: %w", err)
	}
	met.reg, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		o.ObserveInt64(resident, int64(len(m.resident)))
		return nil
	}, resident)
	if err != nil {
		return nil, fmt.Errorf("registering resident callback: %w", err)
	}
	return met, nil
}
