// metrics.go - Prometheus instrumentation for the coroutine scheduler,
// using github.com/prometheus/client_golang's Counter/Gauge/Histogram
// instruments rather than hand-rolled percentile estimators or counters.

package coro

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus instrumentation for one Manager. A nil
// *Metrics is valid and every method on it is a no-op, so a Manager
// constructed without WithMetrics pays no instrumentation overhead.
type Metrics struct {
	rootsStarted   prometheus.Counter
	rootsSucceeded prometheus.Counter
	rootsFailed    prometheus.Counter
	rootsStopped   prometheus.Counter

	resumptions     prometheus.Counter
	resumeLatency   prometheus.Histogram
	waitsScheduled  prometheus.Counter
	waitsCanceled   prometheus.Counter
	queueDepth      *prometheus.GaugeVec
}

// NewMetrics constructs a Metrics and registers every instrument against
// reg. Passing prometheus.NewRegistry() (rather than the global default
// registry) lets a host run more than one Manager without a duplicate
// registration panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rootsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coro_roots_started_total",
			Help: "Total number of root coroutines started via Start.",
		}),
		rootsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coro_roots_succeeded_total",
			Help: "Total number of root coroutines that reached the Succeeded state.",
		}),
		rootsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coro_roots_failed_total",
			Help: "Total number of root coroutines that reached the Failed state.",
		}),
		rootsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coro_roots_stopped_total",
			Help: "Total number of root coroutines stopped via Handle.Stop.",
		}),
		resumptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coro_resumptions_total",
			Help: "Total number of coroutine resumptions driven by Manager.Update.",
		}),
		resumeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coro_resume_latency_seconds",
			Help:    "Wall-clock time spent inside one coroutine resumption (park-to-park).",
			Buckets: prometheus.DefBuckets,
		}),
		waitsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coro_waits_scheduled_total",
			Help: "Total number of Wait suspensions inserted into a time queue.",
		}),
		waitsCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coro_waits_canceled_total",
			Help: "Total number of Wait suspensions removed by a cancellation cascade before firing.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "coro_queue_depth",
			Help: "Current number of pending waiters in a (phase, clock) time queue.",
		}, []string{"phase", "clock"}),
	}
	reg.MustRegister(
		m.rootsStarted,
		m.rootsSucceeded,
		m.rootsFailed,
		m.rootsStopped,
		m.resumptions,
		m.resumeLatency,
		m.waitsScheduled,
		m.waitsCanceled,
		m.queueDepth,
	)
	return m
}

// Handler returns an http.Handler serving reg's metrics in the Prometheus
// exposition format, for a host to mount under /metrics itself.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRootStarted() {
	if m != nil {
		m.rootsStarted.Inc()
	}
}

func (m *Metrics) observeRootFinished(st State) {
	if m == nil {
		return
	}
	switch st {
	case Succeeded:
		m.rootsSucceeded.Inc()
	case Failed:
		m.rootsFailed.Inc()
	case Stopped:
		m.rootsStopped.Inc()
	}
}

func (m *Metrics) observeResumption(latencySeconds float64) {
	if m == nil {
		return
	}
	m.resumptions.Inc()
	m.resumeLatency.Observe(latencySeconds)
}

func (m *Metrics) observeWaitScheduled() {
	if m != nil {
		m.waitsScheduled.Inc()
	}
}

func (m *Metrics) observeWaitCanceled() {
	if m != nil {
		m.waitsCanceled.Inc()
	}
}

func (m *Metrics) setQueueDepth(phase Phase, clock ClockKind, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(phaseLabel(phase), clockLabel(clock)).Set(float64(depth))
}

func phaseLabel(p Phase) string {
	return strconv.Itoa(int(p))
}

func clockLabel(c ClockKind) string {
	return strconv.Itoa(int(c))
}
