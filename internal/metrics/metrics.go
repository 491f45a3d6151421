package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels fetch cycles that applied a snapshot.
	OutcomeSuccess = "success"
	// OutcomeError labels fetch cycles that failed.
	OutcomeError = "error"
)

var (
	fetchCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extruder_hmi",
			Name:      "fetch_cycles_total",
			Help:      "Full-state fetches performed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	deltasTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extruder_hmi",
			Name:      "deltas_total",
			Help:      "Push deltas received, partitioned by applied/dropped.",
		},
		[]string{"result"},
	)

	historyEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "extruder_hmi",
			Name:      "history_entries",
			Help:      "Entries currently retained by the history recorder.",
		},
	)

	historyEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "extruder_hmi",
			Name:      "history_evicted_total",
			Help:      "History entries evicted past the retention window.",
		},
	)

	streamReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "extruder_hmi",
			Name:      "stream_reconnects_total",
			Help:      "Push-channel disconnects observed (transport redials).",
		},
	)
)

// Register attaches all collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		fetchCyclesTotal,
		deltasTotal,
		historyEntries,
		historyEvictedTotal,
		streamReconnectsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveFetch records one full-state fetch cycle.
func ObserveFetch(err error) {
	if err != nil {
		fetchCyclesTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	fetchCyclesTotal.WithLabelValues(OutcomeSuccess).Inc()
}

// ObserveDelta records one push delta and whether the store accepted it.
func ObserveDelta(applied bool) {
	if applied {
		deltasTotal.WithLabelValues("applied").Inc()
		return
	}
	deltasTotal.WithLabelValues("dropped").Inc()
}

// SetHistoryLength reports the recorder's current entry count.
func SetHistoryLength(n int) {
	historyEntries.Set(float64(n))
}

// AddEvicted counts entries dropped past the retention horizon.
func AddEvicted(n int) {
	if n > 0 {
		historyEvictedTotal.Add(float64(n))
	}
}

// ObserveStreamDrop counts a push-channel disconnect.
func ObserveStreamDrop() {
	streamReconnectsTotal.Inc()
}
