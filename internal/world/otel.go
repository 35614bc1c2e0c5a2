package world

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/trackday/vehsim/internal/world"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	tickDuration metric.Float64Histogram
	ticks        metric.Int64Counter
	vehicles     metric.Int64ObservableGauge
}

// newMetrics registers the world instruments on the global meter
// (no-op if no provider is installed).
func newMetrics(w *World) (*metrics, error) {
	m := meter()
	out := &metrics{}

	var err error
	out.tickDuration, err = m.Float64Histogram(
		"world.tick.duration",
		metric.WithDescription("Wall time spent stepping all vehicles"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	out.ticks, err = m.Int64Counter(
		"world.ticks",
		metric.WithDescription("Total simulation ticks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	out.vehicles, err = m.Int64ObservableGauge(
		"world.vehicles",
		metric.WithDescription("Current number of simulated vehicles"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating vehicles gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(out.vehicles, int64(w.Len()))
			return nil
		},
		out.vehicles,
	)
	if err != nil {
		return nil, fmt.Errorf("registering vehicles callback: %w", err)
	}

	return out, nil
}
