package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// Decoding Metrics
	transactionsDecodedTotal  *prometheus.CounterVec
	transactionDecodeDuration prometheus.Histogram
	instructionsClassified    *prometheus.CounterVec
	instructionsDegradedTotal *prometheus.CounterVec
	derivedEventsTotal        *prometheus.CounterVec

	// Workflow Metrics
	inspectWorkflowDuration        *prometheus.HistogramVec
	inspectWorkflowExecutionsTotal *prometheus.CounterVec
	inspectActivityDuration        *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per GetSignaturesForAddress call",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"endpoint"},
		),

		// Decoding Metrics
		transactionsDecodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_decoded_total",
				Help: "Total number of transactions decoded by outcome (success, failed, error)",
			},
			[]string{"outcome"},
		),
		transactionDecodeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transaction_decode_duration_seconds",
				Help:    "Duration of decoding a single transaction record in seconds",
				Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
		),
		instructionsClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "instructions_classified_total",
				Help: "Total number of instructions normalized by program and whether the type was recognized",
			},
			[]string{"program", "recognized"},
		),
		instructionsDegradedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "instructions_degraded_total",
				Help: "Total number of instruction fields that fell back to a placeholder",
			},
			[]string{"reason"},
		),
		derivedEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "derived_events_extracted_total",
				Help: "Total number of derived events extracted from decoded transactions",
			},
			[]string{"kind"},
		),

		// Workflow Metrics
		inspectWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inspect_workflow_duration_seconds",
				Help:    "Duration of batch inspection workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"network", "status"},
		),
		inspectWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inspect_workflow_executions_total",
				Help: "Total number of batch inspection workflow executions",
			},
			[]string{"network", "status"},
		),
		inspectActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inspect_activity_duration_seconds",
				Help:    "Duration of inspection activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "network"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// Decoding metric helpers

// RecordTransactionDecoded records the outcome of decoding one transaction record.
// Outcome is "success" or "failed" for assembled transactions and "error" when assembly failed.
func (m *Metrics) RecordTransactionDecoded(outcome string, duration float64) {
	m.transactionsDecodedTotal.WithLabelValues(outcome).Inc()
	m.transactionDecodeDuration.Observe(duration)
}

// RecordInstructionClassified records one normalized instruction.
func (m *Metrics) RecordInstructionClassified(program string, recognized bool) {
	label := "false"
	if recognized {
		label = "true"
	}
	m.instructionsClassified.WithLabelValues(program, label).Inc()
}

// RecordInstructionDegraded records a placeholder substitution while normalizing.
func (m *Metrics) RecordInstructionDegraded(reason string) {
	m.instructionsDegradedTotal.WithLabelValues(reason).Inc()
}

// RecordDerivedEvents records derived events of one kind (sol_transfer, priority_fee, ...).
func (m *Metrics) RecordDerivedEvents(kind string, count int) {
	m.derivedEventsTotal.WithLabelValues(kind).Add(float64(count))
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(network, status string, duration float64) {
	m.inspectWorkflowDuration.WithLabelValues(network, status).Observe(duration)
	m.inspectWorkflowExecutionsTotal.WithLabelValues(network, status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, network string, duration float64) {
	m.inspectActivityDuration.WithLabelValues(activity, network).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
