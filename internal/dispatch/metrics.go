package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ridepool/ridepool/internal/dispatch"

// Metrics holds the OpenTelemetry instruments for dispatch runs.
type Metrics struct {
	dispatchDuration metric.Float64Histogram
	dispatchTotal    metric.Int64Counter
	offerTotal       metric.Int64Counter
}

// NewMetrics creates dispatch metrics instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	dispatchDuration, err := meter.Float64Histogram(
		"dispatch.duration",
		metric.WithDescription("Duration of a full dispatch run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	dispatchTotal, err := meter.Int64Counter(
		"dispatch.total",
		metric.WithDescription("Total number of dispatch runs"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, err
	}

	offerTotal, err := meter.Int64Counter(
		"dispatch.offer.total",
		metric.WithDescription("Total number of offers made to drivers"),
		metric.WithUnit("{offer}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		dispatchDuration: dispatchDuration,
		dispatchTotal:    dispatchTotal,
		offerTotal:       offerTotal,
	}, nil
}

// RecordDispatch records the result of one dispatch run. A nil receiver is a
// no-op so the orchestrator can run unmetered in tests.
func (m *Metrics) RecordDispatch(ctx context.Context, duration time.Duration, result string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("dispatch.result", result))
	m.dispatchDuration.Record(ctx, duration.Seconds(), attrs)
	m.dispatchTotal.Add(ctx, 1, attrs)
}

// RecordOffer records the outcome of a single driver offer.
func (m *Metrics) RecordOffer(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.offerTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("dispatch.outcome", outcome)))
}
