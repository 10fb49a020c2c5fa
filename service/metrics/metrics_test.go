package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransactionDecoded(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransactionDecoded("success", 0.001)
	m.RecordTransactionDecoded("success", 0.002)
	m.RecordTransactionDecoded("error", 0.001)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transactionsDecodedTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsDecodedTotal.WithLabelValues("error")))
}

func TestRecordInstructionClassified(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordInstructionClassified("System Program", true)
	m.RecordInstructionClassified("Unknown", false)
	m.RecordInstructionClassified("Unknown", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.instructionsClassified.WithLabelValues("System Program", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.instructionsClassified.WithLabelValues("Unknown", "false")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/test", "GET", "4xx")))
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil, "/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimer(t *testing.T) {
	var got float64
	done := Timer(time.Now().Add(-time.Second), func(d float64) { got = d })
	done()
	assert.GreaterOrEqual(t, got, 1.0)
}

func TestStatusCodeToString(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		301: "3xx",
		404: "4xx",
		503: "5xx",
		99:  "unknown",
	}
	for code, want := range tests {
		assert.Equal(t, want, statusCodeToString(code))
	}
}
