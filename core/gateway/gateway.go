// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/tablegate/core"
	"github.com/relabs-tech/tablegate/core/logger"
	"github.com/relabs-tech/tablegate/core/schema"
	"github.com/relabs-tech/tablegate/core/store"
)

// Observer receives the outcome of every resource request. The operation is empty
// for requests which were rejected before an operation could be derived.
type Observer interface {
	Observe(resource string, operation core.Operation, status int, duration time.Duration)
}

// Gateway is the generic resource gateway. It is an http.Handler.
type Gateway struct {
	config    *Configuration
	backend   store.Backend
	notifier  core.Notifier
	validator *schema.Validator
	observer  Observer
	router    *mux.Router
	handler   http.Handler
}

// Builder is a builder helper for the Gateway
type Builder struct {
	// Config is the JSON gateway configuration. This is mandatory.
	Config string
	// Backend is the table store. This is mandatory.
	Backend store.Backend
	// UpdateSchema makes sure that the tables of all explicitly configured resources exist. This is optional.
	UpdateSchema bool
	// Notifier receives a notification for every successful create, update and delete. This is optional.
	Notifier core.Notifier
	// Validator holds the JSON schemas referenced by schema_id. This is optional unless a
	// resource has a schema_id.
	Validator *schema.Validator
	// Observer receives request outcomes, for example for metrics. This is optional.
	Observer Observer
}

// New realizes the actual gateway. It creates the tables (if requested and they
// do not exist) and sets up the routes.
func New(bb *Builder) (*Gateway, error) {
	if bb.Backend == nil {
		return nil, fmt.Errorf("backend is missing")
	}
	config, err := parseConfiguration(bb.Config)
	if err != nil {
		return nil, err
	}

	nillog := logger.Default()
	for _, rc := range config.Resources {
		if rc.SchemaID != "" && !bb.Validator.HasSchema(rc.SchemaID) {
			return nil, fmt.Errorf("invalid configuration for resource %s, schema_id %s is unknown", rc.Resource, rc.SchemaID)
		}
		if bb.UpdateSchema && rc.Resource != AnyResource {
			if err := bb.Backend.Ensure(context.Background(), rc.Resource); err != nil {
				return nil, fmt.Errorf("cannot create table for resource %s: %w", rc.Resource, err)
			}
		}
		nillog.Debugf("resource %s: %v", rc.Resource, rc.Operations)
		if rc.Description != "" {
			nillog.Debugln("  description:", rc.Description)
		}
	}

	g := &Gateway{
		config:    config,
		backend:   bb.Backend,
		notifier:  bb.Notifier,
		validator: bb.Validator,
		observer:  bb.Observer,
		router:    mux.NewRouter().SkipClean(true).UseEncodedPath(),
	}
	g.handleRoutes()
	g.handler = logger.AddRequestID(g.handleCORS(g.recoverPanic(trimTrailingSlash(g.router))))
	return g, nil
}

// MustNew is New but panics on error
func MustNew(bb *Builder) *Gateway {
	g, err := New(bb)
	if err != nil {
		panic(err)
	}
	return g
}

// ServeHTTP implements http.Handler
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.handler.ServeHTTP(w, r)
}

// Configuration returns the effective configuration with all defaults applied
func (g *Gateway) Configuration() Configuration {
	return *g.config
}

func (g *Gateway) handleRoutes() {
	nillog := logger.Default()
	router := g.router
	if g.config.Prefix != "" {
		router = g.router.PathPrefix(g.config.Prefix).Subrouter()
	}

	nillog.Debugln("  handle route:", g.config.Prefix+"/{resource}", "GET,POST,PUT,PATCH,DELETE")
	router.HandleFunc("/{resource}", func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if g.config.Addressing == AddressQuery {
			id = r.URL.Query().Get(parameterID)
		}
		g.serveResource(w, r, mux.Vars(r)["resource"], id)
	})

	if g.config.Addressing == AddressPath {
		nillog.Debugln("  handle route:", g.config.Prefix+"/{resource}/{id}", "GET,PUT,PATCH,DELETE")
		router.HandleFunc("/{resource}/{id}", func(w http.ResponseWriter, r *http.Request) {
			params := mux.Vars(r)
			// routes match the encoded path so that ids may contain a slash
			id, err := url.PathUnescape(params["id"])
			if err != nil {
				writeError(w, badRequest("invalid resource ID: "+err.Error()))
				return
			}
			g.serveResource(w, r, params["resource"], id)
		})
	}

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !supportedMethod(r.Method) {
			writeError(w, methodNotAllowed())
			return
		}
		writeError(w, &apiError{status: http.StatusNotFound, message: "no such route " + r.URL.Path})
	})
	g.router.NotFoundHandler = notFound
	router.NotFoundHandler = notFound
}

// serveResource handles one resource request from method gate to response
func (g *Gateway) serveResource(w http.ResponseWriter, r *http.Request, resource string, id string) {
	start := time.Now()
	ctx, rlog := logger.ContextWithResource(r.Context(), resource)
	r = r.WithContext(ctx)

	var operation core.Operation
	status := http.StatusOK
	defer func() {
		if g.observer != nil {
			g.observer.Observe(resource, operation, status, time.Since(start))
		}
	}()

	fail := func(e *apiError) {
		status = e.status
		if e.status >= http.StatusInternalServerError {
			rlog.WithField("operation", operation).Errorln(e.Error())
		} else {
			rlog.WithField("operation", operation).Debugln(e.Error())
		}
		writeError(w, e)
	}

	if !supportedMethod(r.Method) {
		fail(methodNotAllowed())
		return
	}
	if r.Method == http.MethodPost && id != "" {
		fail(&apiError{status: http.StatusMethodNotAllowed, message: MessageMethodNotAllowed,
			details: "create does not take a resource ID, the id belongs into the body"})
		return
	}

	rc, ok := g.config.lookup(resource)
	if !ok {
		fail(&apiError{status: http.StatusNotFound, message: "no such resource " + resource})
		return
	}

	operation = operationFor(r.Method, id != "")
	if !rc.permits(operation) {
		fail(&apiError{status: http.StatusMethodNotAllowed, message: MessageMethodNotAllowed,
			details: "operation " + string(operation) + " is not permitted on " + resource})
		return
	}

	cmd, e := parseCommand(r, g.config.Addressing, id, g.config.MaxBodyBytes)
	if e != nil {
		fail(e)
		return
	}

	if create, ok := cmd.(createCommand); ok && rc.SchemaID != "" {
		for _, record := range create.records {
			if err := g.validator.ValidateData(map[string]interface{}(record), rc.SchemaID); err != nil {
				fail(badRequest(err.Error()))
				return
			}
		}
	}

	records, err := cmd.execute(ctx, g.backend, resource)
	if err != nil {
		e := fromStoreError(err)
		if e.status == http.StatusBadRequest {
			rlog.WithError(err).Warnln("backend error")
		}
		fail(e)
		return
	}

	if operation.IsWrite() {
		g.notify(ctx, resource, operation, records)
	}
	writeData(w, cmd.data(records))
}

// notify hands successful writes to the notifier. Notifier failures do not fail the request.
func (g *Gateway) notify(ctx context.Context, resource string, operation core.Operation, records []store.Record) {
	if g.notifier == nil {
		return
	}
	rlog := logger.FromContext(ctx)
	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			rlog.WithError(err).Errorln("cannot encode notification payload")
			continue
		}
		notification := core.Notification{
			Resource:  resource,
			Operation: operation,
			ID:        record.ID(),
			Payload:   payload,
		}
		if err := g.notifier.Notify(ctx, notification); err != nil {
			rlog.WithError(err).Errorf("cannot notify %s(%s) %s", resource, operation, record.ID())
		}
	}
}

// trimTrailingSlash removes one trailing slash so that /suppliers/ routes like /suppliers
func trimTrailingSlash(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			u := *r.URL
			u.Path = strings.TrimSuffix(p, "/")
			u.RawPath = strings.TrimSuffix(u.RawPath, "/")
			r2 := r.Clone(r.Context())
			r2.URL = &u
			r = r2
		}
		h.ServeHTTP(w, r)
	})
}

func (g *Gateway) recoverPanic(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.FromContext(r.Context()).Errorf("panic in request handler: %v", rec)
				writeError(w, internalError(fmt.Sprint(rec)))
			}
		}()
		h.ServeHTTP(w, r)
	})
}
