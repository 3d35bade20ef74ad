package admission

import "github.com/prometheus/client_golang/prometheus"

// metricsSet holds the Prometheus instruments behind the bonus /metrics
// endpoint. The /stats JSON snapshot does not read them; it is built from
// each modelQueue's own atomic counters. One set is shared by every model
// queue, labeled by model.
type metricsSet struct {
	active     *prometheus.GaugeVec
	waiting    *prometheus.GaugeVec
	processed  *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	waitTime   *prometheus.HistogramVec
	procTime   *prometheus.HistogramVec
}

func newMetricsSet(registerer prometheus.Registerer) *metricsSet {
	m := &metricsSet{
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "guardproxy",
			Subsystem: "admission",
			Name:      "active",
			Help:      "In-flight requests currently holding a semaphore permit, by model.",
		}, []string{"model"}),
		waiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "guardproxy",
			Subsystem: "admission",
			Name:      "waiting",
			Help:      "Requests enqueued and waiting for a semaphore permit, by model.",
		}, []string{"model"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardproxy",
			Subsystem: "admission",
			Name:      "processed_total",
			Help:      "Requests that completed after acquiring a permit, by model.",
		}, []string{"model"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardproxy",
			Subsystem: "admission",
			Name:      "rejected_total",
			Help:      "Requests rejected with queue_full, by model.",
		}, []string{"model"}),
		waitTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "guardproxy",
			Subsystem: "admission",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a semaphore permit, by model.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		procTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "guardproxy",
			Subsystem: "admission",
			Name:      "processing_seconds",
			Help:      "Time spent running the admitted operation, by model.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
	}

	if registerer != nil {
		registerer.MustRegister(m.active, m.waiting, m.processed, m.rejected, m.waitTime, m.procTime)
	}
	return m
}
