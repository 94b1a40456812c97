package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operations counts and times calls made through the embedded client.
// Unlike the search metrics it lives on a caller-supplied registry.
type Operations struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewOperations registers the client operation metrics on reg. A second
// client on the same registry shares the collectors of the first.
func NewOperations(reg prometheus.Registerer) (*Operations, error) {
	total, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelf",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "Total SDK operations by type and status.",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	duration, err := registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shelf",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "SDK operation duration in seconds.",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	return &Operations{total: total, duration: duration}, nil
}

// Observe records one finished operation.
func (o *Operations) Observe(op string, d time.Duration, err error) {
	if o == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.total.WithLabelValues(op, status).Inc()
	o.duration.WithLabelValues(op).Observe(d.Seconds())
}

func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	return existing, nil
}
