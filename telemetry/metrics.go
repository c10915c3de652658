package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope used for trap metrics.
const MeterName = "github.com/pthm-cable/preytrap/telemetry"

// Metrics holds the OpenTelemetry instruments for a monitor.
// A nil *Metrics records nothing.
type Metrics struct {
	steps        metric.Int64Counter
	trappedSteps metric.Int64Counter
	placements   metric.Int64Counter
}

// NewMetrics creates the instruments from provider, or from the global
// provider when provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(MeterName)

	m := &Metrics{}
	var err error

	m.steps, err = meter.Int64Counter(
		"preytrap.steps",
		metric.WithDescription("Simulation steps observed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create steps counter: %w", err)
	}

	m.trappedSteps, err = meter.Int64Counter(
		"preytrap.trapped_steps",
		metric.WithDescription("Steps on which the prey was judged trapped"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create trapped steps counter: %w", err)
	}

	m.placements, err = meter.Int64Counter(
		"preytrap.placements",
		metric.WithDescription("Agent placement outcomes"),
		metric.WithUnit("{agent}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create placements counter: %w", err)
	}

	return m, nil
}

// RecordStep counts one observed step.
func (m *Metrics) RecordStep(ctx context.Context, runID string, trapped bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("run.id", runID))
	m.steps.Add(ctx, 1, attrs)
	if trapped {
		m.trappedSteps.Add(ctx, 1, attrs)
	}
}

// RecordPlacement counts a placement pass for n agents.
func (m *Metrics) RecordPlacement(ctx context.Context, n int, ok bool) {
	if m == nil {
		return
	}
	m.placements.Add(ctx, int64(n), metric.WithAttributes(attribute.Bool("placement.ok", ok)))
}
