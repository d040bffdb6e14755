// Package metrics holds the Prometheus collectors of the editor client and
// the reference API server. All methods are safe on a nil receiver so
// components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Client counts synchronizer and monitor activity.
type Client struct {
	syncs           prometheus.Counter
	syncErrors      prometheus.Counter
	staleResponses  prometheus.Counter
	imports         prometheus.Counter
	importErrors    prometheus.Counter
	conditionWrites prometheus.Counter
	reconnects      prometheus.Counter
	statusMessages  prometheus.Counter
	syncLatency     prometheus.Histogram
}

// NewClient creates the client collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewClient(reg prometheus.Registerer) *Client {
	m := &Client{
		syncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_client_syncs_total",
			Help: "Analysis document writes sent to the server.",
		}),
		syncErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_client_sync_errors_total",
			Help: "Document and condition writes that failed.",
		}),
		staleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_client_stale_responses_total",
			Help: "Write responses discarded because the document was edited while in flight.",
		}),
		imports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_client_imports_total",
			Help: "Model imports requested.",
		}),
		importErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_client_import_errors_total",
			Help: "Model imports rejected or failed.",
		}),
		conditionWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_client_condition_writes_total",
			Help: "Condition list writes sent to the server.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_client_status_reconnects_total",
			Help: "Status channel reconnection attempts.",
		}),
		statusMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_client_status_messages_total",
			Help: "Evaluation status snapshots received.",
		}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acdc_client_sync_latency_seconds",
			Help:    "Round trip time of document writes.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.syncs, m.syncErrors, m.staleResponses, m.imports, m.importErrors,
			m.conditionWrites, m.reconnects, m.statusMessages, m.syncLatency)
	}
	return m
}

func (m *Client) SyncDone(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.syncs.Inc()
	m.syncLatency.Observe(d.Seconds())
	if err != nil {
		m.syncErrors.Inc()
	}
}

func (m *Client) ConditionWrite(err error) {
	if m == nil {
		return
	}
	m.conditionWrites.Inc()
	if err != nil {
		m.syncErrors.Inc()
	}
}

func (m *Client) StaleResponse() {
	if m == nil {
		return
	}
	m.staleResponses.Inc()
}

func (m *Client) Import(err error) {
	if m == nil {
		return
	}
	m.imports.Inc()
	if err != nil {
		m.importErrors.Inc()
	}
}

func (m *Client) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Client) StatusMessage() {
	if m == nil {
		return
	}
	m.statusMessages.Inc()
}

// Server counts evaluation activity of the reference API server.
type Server struct {
	evaluationsStarted  prometheus.Counter
	evaluationsCanceled prometheus.Counter
	statusBroadcasts    prometheus.Counter
	subscribers         prometheus.Gauge
	requests            *prometheus.CounterVec
}

// NewServer creates the server collectors and registers them with reg.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		evaluationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_server_evaluations_started_total",
			Help: "Evaluations started.",
		}),
		evaluationsCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_server_evaluations_canceled_total",
			Help: "Evaluations canceled before completion.",
		}),
		statusBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acdc_server_status_broadcasts_total",
			Help: "Status snapshots published to subscribers.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acdc_server_status_subscribers",
			Help: "Open status channel connections.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acdc_server_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.evaluationsStarted, m.evaluationsCanceled, m.statusBroadcasts,
			m.subscribers, m.requests)
	}
	return m
}

func (m *Server) EvaluationStarted() {
	if m == nil {
		return
	}
	m.evaluationsStarted.Inc()
}

func (m *Server) EvaluationCanceled() {
	if m == nil {
		return
	}
	m.evaluationsCanceled.Inc()
}

func (m *Server) StatusBroadcast() {
	if m == nil {
		return
	}
	m.statusBroadcasts.Inc()
}

// SubscriberDelta adjusts the open subscriber gauge by d.
func (m *Server) SubscriberDelta(d int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(d))
}

func (m *Server) Request(method string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, statusLabel(code)).Inc()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	}
	return "2xx"
}
