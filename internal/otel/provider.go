// Package otel installs the metric provider behind the kernel's instruments. When
// disabled every instrument stays on the global no-op provider.
package otel

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds OTel configuration
type Config struct {
	Enabled     bool
	ServiceName string
}

// Provider manages the OpenTelemetry meter provider. Metrics are pulled on demand
// through a manual reader, e.g. when a CLI run prints its summary.
type Provider struct {
	config        Config
	meterProvider *sdkmetric.MeterProvider
	reader        *sdkmetric.ManualReader
}

// New creates a provider and, when enabled, installs it as the global meter provider.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p.reader = sdkmetric.NewManualReader()
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(p.reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(p.meterProvider)
	return p, nil
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}

// Meter returns a meter from the installed provider, or the global one when disabled.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return otel.Meter(name)
	}
	return p.meterProvider.Meter(name)
}

// Collect reads the current value of every instrument.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p.reader == nil {
		return rm, nil
	}
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return rm, fmt.Errorf("metric collection failed: %w", err)
	}
	return rm, nil
}

// Sample is one flattened data point.
type Sample struct {
	Name  string
	Attrs string
	Value float64
	Count uint64 // histograms only
}

// Summary collects and flattens sums, gauges and histograms, sorted by name and
// attributes. Histograms report their sum as Value.
func (p *Provider) Summary(ctx context.Context) ([]Sample, error) {
	rm, err := p.Collect(ctx)
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out = append(out, flatten(m)...)
		}
	}
	slices.SortFunc(out, func(a, b Sample) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Attrs, b.Attrs)
	})
	return out, nil
}

func flatten(m metricdata.Metrics) []Sample {
	var out []Sample
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			out = append(out, Sample{Name: m.Name, Attrs: attrString(dp.Attributes), Value: float64(dp.Value)})
		}
	case metricdata.Sum[float64]:
		for _, dp := range data.DataPoints {
			out = append(out, Sample{Name: m.Name, Attrs: attrString(dp.Attributes), Value: dp.Value})
		}
	case metricdata.Gauge[int64]:
		for _, dp := range data.DataPoints {
			out = append(out, Sample{Name: m.Name, Attrs: attrString(dp.Attributes), Value: float64(dp.Value)})
		}
	case metricdata.Gauge[float64]:
		for _, dp := range data.DataPoints {
			out = append(out, Sample{Name: m.Name, Attrs: attrString(dp.Attributes), Value: dp.Value})
		}
	case metricdata.Histogram[int64]:
		for _, dp := range data.DataPoints {
			out = append(out, Sample{Name: m.Name, Attrs: attrString(dp.Attributes), Value: float64(dp.Sum), Count: dp.Count})
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			out = append(out, Sample{Name: m.Name, Attrs: attrString(dp.Attributes), Value: dp.Sum, Count: dp.Count})
		}
	}
	return out
}

func attrString(set attribute.Set) string {
	parts := make([]string, 0, set.Len())
	for _, kv := range set.ToSlice() {
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	return strings.Join(parts, ",")
}

// Shutdown gracefully shuts down the provider.
// Should be called when the application exits.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown failed: %w", err)
	}
	return nil
}
