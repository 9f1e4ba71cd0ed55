package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the SDK collectors with reg. A nil reg
// means prometheus.DefaultRegisterer. Collectors already registered by an
// earlier recorder are shared, so several instances can report into one
// registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dgate",
			Name:      "events_total",
			Help:      "dgate payment event counters",
		},
		[]string{"type", "chain"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dgate",
			Name:      "latency_seconds",
			Help:      "dgate chain call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "chain"},
	)

	counters, added, err := register(reg, counters)
	if err != nil {
		return nil, err
	}
	histogram, _, err = register(reg, histogram)
	if err != nil {
		if added {
			reg.Unregister(counters)
		}
		return nil, err
	}

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}, nil
}

// register adds c to reg, or returns the identical collector already there.
// added reports whether c itself was registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, bool, error) {
	err := reg.Register(c)
	if err == nil {
		return c, true, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, false, nil
		}
	}
	return c, false, err
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":  name,
		"chain": labels["chain"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"operation": name,
		"chain":     labels["chain"],
	}).Observe(d.Seconds())
}
