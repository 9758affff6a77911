package xconn

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts traffic on every connection it is given to. One Metrics
// may be shared by many connections; it is registered once.
type Metrics struct {
	requests  *prometheus.CounterVec
	replies   prometheus.Counter
	events    prometheus.Counter
	errors    *prometheus.CounterVec
	discarded prometheus.Counter
	faults    *prometheus.CounterVec
	pending   prometheus.Gauge
	queued    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xconn",
			Name:      "requests_sent_total",
			Help:      "Requests written to the server, by kind.",
		}, []string{"kind"}),
		replies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xconn",
			Name:      "replies_received_total",
			Help:      "Replies delivered to a waiting cookie.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xconn",
			Name:      "events_received_total",
			Help:      "Events published on the message queue.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xconn",
			Name:      "protocol_errors_total",
			Help:      "X errors received, by whether a cookie claimed them.",
		}, []string{"claimed"}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xconn",
			Name:      "discarded_frames_total",
			Help:      "Replies and errors for cancelled cookies.",
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xconn",
			Name:      "connection_faults_total",
			Help:      "Connection-fatal faults, by type.",
		}, []string{"type"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xconn",
			Name:      "pending_requests",
			Help:      "Cookies waiting for a reply or error.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xconn",
			Name:      "queued_messages",
			Help:      "Events and errors waiting on the message queue.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.requests, m.replies, m.events, m.errors,
		m.discarded, m.faults, m.pending, m.queued,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// The methods below accept a nil receiver so connections without metrics
// need no checks.

func (m *Metrics) requestSent(kind string) {
	if m != nil {
		m.requests.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) replyReceived() {
	if m != nil {
		m.replies.Inc()
	}
}

func (m *Metrics) eventReceived() {
	if m != nil {
		m.events.Inc()
	}
}

func (m *Metrics) errorReceived(claimed bool) {
	if m == nil {
		return
	}
	if claimed {
		m.errors.WithLabelValues("true").Inc()
	} else {
		m.errors.WithLabelValues("false").Inc()
	}
}

func (m *Metrics) frameDiscarded() {
	if m != nil {
		m.discarded.Inc()
	}
}

func (m *Metrics) fault(kind string) {
	if m != nil {
		m.faults.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) pendingAdd(n int) {
	if m != nil {
		m.pending.Add(float64(n))
	}
}

func (m *Metrics) queuedAdd(n int) {
	if m != nil {
		m.queued.Add(float64(n))
	}
}
