package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tablegate/core"
)

func TestObserve(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)

	m.Observe("suppliers", core.OperationCreate, http.StatusOK, 5*time.Millisecond)
	m.Observe("suppliers", core.OperationCreate, http.StatusOK, 7*time.Millisecond)
	m.Observe("suppliers", "", http.StatusMethodNotAllowed, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `gateway_requests_total{operation="create",resource="suppliers",status="200"} 2`), body)
	assert.Contains(t, body, `gateway_requests_total{operation="none",resource="suppliers",status="405"} 1`)
	assert.Contains(t, body, `gateway_request_duration_seconds_count{operation="create",resource="suppliers"} 2`)

	_, err = New(registry)
	assert.Error(t, err, "registering twice must fail")
}
