package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAPICall("sonar", "200", time.Second)
		m.RecordOperation("transform", "success")
		m.ObserveExpansion(2)
		m.RecordBusy()
		m.RecordRulesReload("found")
		m.ProgressClientConnected(1)
	})
	assert.Nil(t, m.Registry())
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	m.ObserveAPICall("sonar", "200", 1500*time.Millisecond)
	m.ObserveAPICall("sonar", "200", 500*time.Millisecond)
	m.RecordOperation("transform", "success")
	m.RecordBusy()
	m.RecordRulesReload("malformed")
	m.ProgressClientConnected(2)
	m.ProgressClientConnected(-1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("sonar", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TransformsTotal.WithLabelValues("transform", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BusyRejections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RulesReloadsTotal.WithLabelValues("malformed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ProgressClients))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.RecordOperation("examples", "failed")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `reprompt_operations_total{operation="examples",outcome="failed"} 1`)
	assert.Contains(t, string(body), "reprompt_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}
