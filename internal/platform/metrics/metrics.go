package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPLatency        *prometheus.HistogramVec
	ScanLatency        prometheus.Histogram
	OpenRequests       prometheus.Histogram
	UnrecognizedBodies prometheus.Counter
	Responses          *prometheus.CounterVec
	RequestsSent       prometheus.Counter
	SchemasCreated     prometheus.Counter
	DIDsCreated        prometheus.Counter
	CredentialsIssued  *prometheus.CounterVec
	Logins             *prometheus.CounterVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seeddid_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ScanLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "seeddid_approval_scan_duration_seconds",
			Help:    "Duration of open approval request scans",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		OpenRequests: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "seeddid_approval_open_requests",
			Help:    "Open approval requests found per scan",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		UnrecognizedBodies: f.NewCounter(prometheus.CounterOpts{
			Name: "seeddid_approval_unrecognized_messages_total",
			Help: "Message bodies skipped during scans because they are not envelopes",
		}),
		Responses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seeddid_approval_responses_total",
			Help: "Approval responses by outcome",
		}, []string{"outcome"}), // outcome: approved, rejected, failed
		RequestsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "seeddid_approval_requests_sent_total",
			Help: "Approval requests sent to peers",
		}),
		SchemasCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "seeddid_schemas_created_total",
			Help: "Credential schemas created",
		}),
		DIDsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "seeddid_dids_created_total",
			Help: "DID records saved",
		}),
		CredentialsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seeddid_credentials_issued_total",
			Help: "Credentials issued by data type",
		}, []string{"data_type"}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seeddid_logins_total",
			Help: "Wallet sign-in attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveScan(d time.Duration, open int) {
	if m != nil {
		m.ScanLatency.Observe(d.Seconds())
		m.OpenRequests.Observe(float64(open))
	}
}

func (m *Metrics) IncrementUnrecognized() {
	if m != nil {
		m.UnrecognizedBodies.Inc()
	}
}

func (m *Metrics) IncrementResponse(outcome string) {
	if m != nil {
		m.Responses.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementRequestsSent() {
	if m != nil {
		m.RequestsSent.Inc()
	}
}

func (m *Metrics) IncrementSchemasCreated() {
	if m != nil {
		m.SchemasCreated.Inc()
	}
}

func (m *Metrics) IncrementDIDsCreated() {
	if m != nil {
		m.DIDsCreated.Inc()
	}
}

func (m *Metrics) IncrementCredentialsIssued(dataType string) {
	if m != nil {
		m.CredentialsIssued.WithLabelValues(dataType).Inc()
	}
}

func (m *Metrics) IncrementLogin(outcome string) {
	if m != nil {
		m.Logins.WithLabelValues(outcome).Inc()
	}
}
