package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tablegate/core/gateway"
	"github.com/relabs-tech/tablegate/core/service"
	"github.com/relabs-tech/tablegate/core/store"
)

func TestRouter(t *testing.T) {
	g, err := gateway.New(&gateway.Builder{
		Config:       `{"prefix":"api","resources":[{"resource":"suppliers"}]}`,
		Backend:      store.NewMemory(),
		UpdateSchema: true,
	})
	require.NoError(t, err)
	r := router(&service.Runtime{Gateway: g})

	testCases := []struct {
		path   string
		status int
		body   string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/version", http.StatusOK, `{"version":"unset"}`},
		{"/api/suppliers", http.StatusOK, `{"success":true,"data":[]}`},
		{"/metrics", http.StatusNotFound, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestCheckRoutes(t *testing.T) {
	configuration := func(config string) gateway.Configuration {
		g, err := gateway.New(&gateway.Builder{Config: config, Backend: store.NewMemory()})
		require.NoError(t, err)
		return g.Configuration()
	}

	assert.NoError(t, checkRoutes(configuration(`{"resources":[{"resource":"suppliers"}]}`)))
	assert.NoError(t, checkRoutes(configuration(`{"prefix":"api","resources":[{"resource":"version"}]}`)))
	for _, name := range []string{"healthz", "version", "metrics"} {
		assert.Error(t, checkRoutes(configuration(`{"resources":[{"resource":"`+name+`"}]}`)), name)
	}
}
