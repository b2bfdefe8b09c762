// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package metrics exposes Prometheus metrics of the gateway
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/tablegate/core"
)

// Metrics counts gateway requests and measures their duration. It implements gateway.Observer.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them with registerer. With a nil
// registerer the prometheus default registry is used.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	} else if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Number of resource requests",
		}, []string{"resource", "operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of resource requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource", "operation"}),
		gatherer: gatherer,
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New but panics on error
func MustNew(registerer prometheus.Registerer) *Metrics {
	m, err := New(registerer)
	if err != nil {
		panic(err)
	}
	return m
}

// Observe implements gateway.Observer
func (m *Metrics) Observe(resource string, operation core.Operation, status int, duration time.Duration) {
	if operation == "" {
		operation = "none"
	}
	m.requests.WithLabelValues(resource, string(operation), strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(resource, string(operation)).Observe(duration.Seconds())
}

// Handler returns the HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
