package livestatus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "livestatus",
	Name:      "request_duration_seconds",
	Help:      "Time spent answering GET requests, by table.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 9),
}, []string{"table"})

func observeRequest(table string, d time.Duration) {
	requestDuration.WithLabelValues(table).Observe(d.Seconds())
}

// RegisterMetrics exposes the request histogram together with the
// dispatcher and log cache gauges of srv.
func RegisterMetrics(reg prometheus.Registerer, srv *Server) error {
	collectors := []prometheus.Collector{
		requestDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "livestatus",
			Name:      "active_connections",
			Help:      "Connections currently handled by a worker.",
		}, func() float64 { return float64(srv.ActiveConnections()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "livestatus",
			Name:      "queued_connections",
			Help:      "Accepted connections waiting for a worker.",
		}, func() float64 { return float64(srv.QueuedConnections()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "livestatus",
			Name:      "threads",
			Help:      "Size of the worker pool.",
		}, func() float64 { return float64(srv.Threads()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "livestatus",
			Name:      "cached_log_messages",
			Help:      "Log entries resident in the log cache.",
		}, func() float64 { return float64(srv.store.LogCache().NumCachedMessages()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
