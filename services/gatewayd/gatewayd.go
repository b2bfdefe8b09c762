// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/tablegate/core/gateway"
	"github.com/relabs-tech/tablegate/core/logger"
	"github.com/relabs-tech/tablegate/core/service"
)

var (
	// Version is the version of the current build
	Version = "unset"
)

func main() {
	nillog := logger.Default()
	s, err := service.FromEnv()
	if err != nil {
		nillog.WithError(err).Fatalln("cannot read configuration")
	}
	rt, err := s.Build(context.Background())
	if err != nil {
		nillog.WithError(err).Fatalln("cannot build gateway")
	}
	defer rt.Close()
	if err := checkRoutes(rt.Gateway.Configuration()); err != nil {
		nillog.WithError(err).Fatalln("invalid gateway configuration")
	}

	server := &http.Server{
		Addr:              s.Listen,
		Handler:           handlers.CompressHandler(router(rt)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		nillog.Infoln("listen on", s.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nillog.WithError(err).Fatalln("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	nillog.Infoln("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		nillog.WithError(err).Errorln("shutdown")
	}
}

// operationalRoutes are served by gatewayd itself in front of the gateway
var operationalRoutes = []string{"healthz", "version", "metrics"}

// checkRoutes rejects resources which the operational routes would hide. With a
// prefix the gateway lives in its own path space.
func checkRoutes(config gateway.Configuration) error {
	if config.Prefix != "" {
		return nil
	}
	for _, rc := range config.Resources {
		for _, route := range operationalRoutes {
			if rc.Resource == route {
				return fmt.Errorf("resource %s collides with the /%s route, configure a prefix", rc.Resource, route)
			}
		}
	}
	return nil
}

// router serves the operational routes and hands everything else to the gateway
func router(rt *service.Runtime) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		data, _ := json.Marshal(map[string]string{"version": Version})
		w.Write(data)
	}).Methods(http.MethodGet)
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics.Handler()).Methods(http.MethodGet)
	}
	r.PathPrefix("/").Handler(rt.Gateway)
	return r
}
