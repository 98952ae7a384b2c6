package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "relay"

// Metrics holds the relay's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	envelopesPublished *prometheus.CounterVec
	envelopesReceived  *prometheus.CounterVec
	envelopesMalformed *prometheus.CounterVec
	lenientDecodes     prometheus.Counter

	provisions     *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	activeSessions prometheus.Gauge
	probes         *prometheus.CounterVec

	routed  *prometheus.CounterVec
	replies *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		envelopesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_published_total",
			Help:      "Envelopes published by subject and result.",
		}, []string{"subject", "result"}),
		envelopesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_received_total",
			Help:      "Envelopes received by subject.",
		}, []string{"subject"}),
		envelopesMalformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_malformed_total",
			Help:      "Bus messages that could not be decoded, by subject.",
		}, []string{"subject"}),
		lenientDecodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_lenient_decodes_total",
			Help:      "Payloads that only decoded after quote normalisation.",
		}),
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisions_total",
			Help:      "Session provisioning attempts by result.",
		}, []string{"result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound chat messages by result.",
		}, []string{"result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions with a running sync loop in this process.",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_probes_total",
			Help:      "Owner liveness probes by outcome.",
		}, []string{"alive"}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routed_envelopes_total",
			Help:      "Command envelopes routed by service and result.",
		}, []string{"service", "result"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assistant_replies_total",
			Help:      "Assistant replies by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.envelopesPublished,
		m.envelopesReceived,
		m.envelopesMalformed,
		m.lenientDecodes,
		m.provisions,
		m.deliveries,
		m.activeSessions,
		m.probes,
		m.routed,
		m.replies,
	)

	return m
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) EnvelopePublished(subject string, err error) {
	if m == nil {
		return
	}
	m.envelopesPublished.WithLabelValues(subject, result(err)).Inc()
}

func (m *Metrics) EnvelopeReceived(subject string) {
	if m == nil {
		return
	}
	m.envelopesReceived.WithLabelValues(subject).Inc()
}

func (m *Metrics) EnvelopeMalformed(subject string) {
	if m == nil {
		return
	}
	m.envelopesMalformed.WithLabelValues(subject).Inc()
}

func (m *Metrics) LenientDecode() {
	if m == nil {
		return
	}
	m.lenientDecodes.Inc()
}

func (m *Metrics) Provision(outcome string) {
	if m == nil {
		return
	}
	m.provisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Delivery(err error) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) Probe(alive bool) {
	if m == nil {
		return
	}
	if alive {
		m.probes.WithLabelValues("true").Inc()
		return
	}
	m.probes.WithLabelValues("false").Inc()
}

func (m *Metrics) Routed(service string, err error) {
	if m == nil {
		return
	}
	m.routed.WithLabelValues(service, result(err)).Inc()
}

func (m *Metrics) Reply(kind string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(kind).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
