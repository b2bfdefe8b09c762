package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {

	client := NewWithHandler(nil)

	resource := client.Resource("suppliers")
	if p := resource.Path(); p != "/suppliers" {
		t.Fatal("unexpected resource path:", p)
	}

	item := resource.Item("s1")
	if p := item.Path(); p != "/suppliers/s1" {
		t.Fatal("unexpected item path:", p)
	}

	item = client.WithQueryAddressing().Resource("suppliers").Item("s 1")
	if p := item.Path(); p != "/suppliers?id=s+1" {
		t.Fatal("unexpected item path:", p)
	}

	resource = client.Resource("suppliers").WithFilter("risk", "42").WithParameter("order", "name.desc")
	if p := resource.Path(); p != "/suppliers?order=name.desc&risk=42" {
		t.Fatal("unexpected resource path:", p)
	}

	// parameters do not leak between derived resources
	base := client.Resource("suppliers")
	_ = base.WithParameter("limit", "1")
	assert.Equal(t, "/suppliers", base.Path())
}

func TestEnvelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Write([]byte(`{"success":true,"data":{"id":"s1"}}`))
		case "/api/fail":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"error":"Request body is required"}`))
		default:
			w.Write([]byte(`not json`))
		}
	})
	client := NewWithHandler(handler).WithPrefix("/api/")

	var result map[string]interface{}
	status, err := client.Resource("ok").Create(map[string]string{"name": "Acme"}, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "s1", result["id"])

	status, err = client.Resource("fail").Create(nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Request body is required", apiErr.Message)

	_, err = client.Resource("other").List(nil)
	assert.Error(t, err)
}
