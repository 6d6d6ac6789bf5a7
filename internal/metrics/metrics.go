package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vovakirdan/callrelay/internal/core"
)

const namespace = "callrelay"

// Metrics records call lifecycle counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	callsInitiated prometheus.Counter
	callsFailed    *prometheus.CounterVec
	callsAccepted  prometheus.Counter
	callsRejected  prometheus.Counter
	callsEnded     *prometheus.CounterVec
	online         prometheus.Gauge
}

var _ core.Recorder = (*Metrics)(nil)

// New registers the relay metrics plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		callsInitiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_initiated_total",
			Help:      "Calls that started ringing.",
		}),
		callsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_failed_total",
			Help:      "Call attempts refused, by reason.",
		}, []string{"reason"}),
		callsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_accepted_total",
			Help:      "Calls accepted by the callee.",
		}),
		callsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_rejected_total",
			Help:      "Calls rejected by the callee.",
		}),
		callsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Sessions torn down, by cause.",
		}, []string{"cause"}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities_online",
			Help:      "Identities with a live connection.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.callsInitiated,
		m.callsFailed,
		m.callsAccepted,
		m.callsRejected,
		m.callsEnded,
		m.online,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CallInitiated() { m.callsInitiated.Inc() }
func (m *Metrics) CallFailed(reason string) { m.callsFailed.WithLabelValues(reason).Inc() }
func (m *Metrics) CallAccepted() { m.callsAccepted.Inc() }
func (m *Metrics) CallRejected() { m.callsRejected.Inc() }
func (m *Metrics) CallEnded(cause string) { m.callsEnded.WithLabelValues(cause).Inc() }
func (m *Metrics) IdentitiesOnline(n int) { m.online.Set(float64(n)) }
