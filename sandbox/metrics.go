package sandbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/wippyai/chain-extension/extension"
	"github.com/wippyai/chain-extension/gas"
)

const metricsNamespace = "chain_extension"

const (
	resultConverging = "converging"
	resultDiverging  = "diverging"
	resultError      = "error"
)

type metrics struct {
	traps      *prometheus.CounterVec
	guestCalls prometheus.Counter
	weight     prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		traps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "traps_total",
			Help:      "number of chain extension traps by result",
		}, []string{"result"}),
		guestCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "guest_calls_total",
			Help:      "number of guest calls started",
		}),
		weight: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "trap_weight",
			Help:      "weight charged by a single chain extension trap",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),
	}
	if reg == nil {
		return m, nil
	}
	err := multierr.Combine(
		reg.Register(m.traps),
		reg.Register(m.guestCalls),
		reg.Register(m.weight),
	)
	return m, err
}

func (m *metrics) observeTrap(ret extension.RetVal, err error, charged gas.Weight) {
	result := resultConverging
	switch {
	case err != nil:
		result = resultError
	case ret.IsDiverging():
		result = resultDiverging
	}
	m.traps.WithLabelValues(result).Inc()
	m.weight.Observe(float64(charged))
}
