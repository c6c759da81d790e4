package metrics

import (
	"context"
	"errors"
	"time"

	"dispatch/internal/core/domain/model/route"
	"dispatch/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedOptimizer times every call of the wrapped optimizer.
type InstrumentedOptimizer struct {
	next     ports.RouteOptimizer
	duration *prometheus.HistogramVec
}

func InstrumentOptimizer(next ports.RouteOptimizer, reg prometheus.Registerer) *InstrumentedOptimizer {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "optimizer_duration_seconds",
		Help:      "Route optimizer latency, by result.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"result"})
	if reg != nil {
		reg.MustRegister(duration)
	}
	return &InstrumentedOptimizer{next: next, duration: duration}
}

func (o *InstrumentedOptimizer) Calculate(ctx context.Context, state route.VirtualState, vehicle route.Vehicle) (route.Plan, error) {
	start := time.Now()
	plan, err := o.next.Calculate(ctx, state, vehicle)
	o.duration.WithLabelValues(resultOf(err)).Observe(time.Since(start).Seconds())
	return plan, err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
