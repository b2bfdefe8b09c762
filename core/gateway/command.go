// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/tablegate/core"
	"github.com/relabs-tech/tablegate/core/store"
)

// reserved list parameters, never used as filters
const (
	parameterLimit  = "limit"
	parameterOffset = "offset"
	parameterOrder  = "order"
	parameterID     = "id"
)

// command is one parsed request. Each variant carries exactly what its operation needs.
type command interface {
	operation() core.Operation
	execute(ctx context.Context, backend store.Backend, table string) ([]store.Record, error)
	// data shapes the resulting records for the response envelope
	data(records []store.Record) interface{}
}

type listCommand struct {
	query store.Query
}

type readCommand struct {
	id string
}

type createCommand struct {
	records []store.Record
	// single is true if the body was a single object rather than an array
	single bool
}

type updateCommand struct {
	id    string
	patch store.Record
}

type deleteCommand struct {
	id string
}

func (listCommand) operation() core.Operation   { return core.OperationList }
func (readCommand) operation() core.Operation   { return core.OperationRead }
func (createCommand) operation() core.Operation { return core.OperationCreate }
func (updateCommand) operation() core.Operation { return core.OperationUpdate }
func (deleteCommand) operation() core.Operation { return core.OperationDelete }

func (c listCommand) execute(ctx context.Context, backend store.Backend, table string) ([]store.Record, error) {
	return backend.Select(ctx, table, c.query)
}

func (c readCommand) execute(ctx context.Context, backend store.Backend, table string) ([]store.Record, error) {
	record, err := backend.Get(ctx, table, c.id)
	if err != nil {
		return nil, err
	}
	return []store.Record{record}, nil
}

func (c createCommand) execute(ctx context.Context, backend store.Backend, table string) ([]store.Record, error) {
	return backend.Insert(ctx, table, c.records)
}

func (c updateCommand) execute(ctx context.Context, backend store.Backend, table string) ([]store.Record, error) {
	record, err := backend.Update(ctx, table, c.id, c.patch)
	if err != nil {
		return nil, err
	}
	return []store.Record{record}, nil
}

func (c deleteCommand) execute(ctx context.Context, backend store.Backend, table string) ([]store.Record, error) {
	record, err := backend.Delete(ctx, table, c.id)
	if err != nil {
		return nil, err
	}
	return []store.Record{record}, nil
}

func (listCommand) data(records []store.Record) interface{} { return records }
func (readCommand) data(records []store.Record) interface{} { return records[0] }
func (c createCommand) data(records []store.Record) interface{} {
	if c.single && len(records) == 1 {
		return records[0]
	}
	return records
}
func (updateCommand) data(records []store.Record) interface{} { return records[0] }
func (deleteCommand) data(records []store.Record) interface{} { return records[0] }

// supportedMethod returns true for the methods the gateway dispatches
func supportedMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// operationFor returns the operation a request for method maps to
func operationFor(method string, hasID bool) core.Operation {
	switch method {
	case http.MethodGet:
		if hasID {
			return core.OperationRead
		}
		return core.OperationList
	case http.MethodPost:
		return core.OperationCreate
	case http.MethodPut, http.MethodPatch:
		return core.OperationUpdate
	default:
		return core.OperationDelete
	}
}

// parseCommand builds the command for a request. The method must be supported.
func parseCommand(r *http.Request, addressing Addressing, id string, maxBodyBytes int64) (command, *apiError) {
	switch operationFor(r.Method, id != "") {
	case core.OperationList:
		query, err := parseQuery(r.URL.Query(), addressing)
		if err != nil {
			return nil, err
		}
		return listCommand{query: query}, nil

	case core.OperationRead:
		return readCommand{id: id}, nil

	case core.OperationCreate:
		body, err := readBody(r, maxBodyBytes)
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, badRequest(MessageBodyRequired)
		}
		return parseCreate(body)

	case core.OperationUpdate:
		if id == "" {
			return nil, badRequest(MessageIDRequired)
		}
		body, err := readBody(r, maxBodyBytes)
		if err != nil {
			return nil, err
		}
		if body == nil {
			return nil, badRequest(MessageBodyRequired)
		}
		object, ok := body.(map[string]interface{})
		if !ok {
			return nil, badRequest("request body must be a JSON object")
		}
		patch := store.Record(object)
		if bodyID, present := patch[store.IDProperty]; present {
			if s, ok := bodyID.(string); !ok || s != id {
				return nil, badRequest("identifier mismatch")
			}
			delete(patch, store.IDProperty)
		}
		return updateCommand{id: id, patch: patch}, nil

	default:
		if id == "" {
			return nil, badRequest(MessageIDRequired)
		}
		return deleteCommand{id: id}, nil
	}
}

func parseCreate(body interface{}) (command, *apiError) {
	switch t := body.(type) {
	case map[string]interface{}:
		return createCommand{records: []store.Record{t}, single: true}, nil
	case []interface{}:
		if len(t) == 0 {
			return nil, badRequest(MessageBodyRequired)
		}
		records := make([]store.Record, len(t))
		for i, element := range t {
			object, ok := element.(map[string]interface{})
			if !ok {
				return nil, badRequest("request body must be a JSON object or an array of objects")
			}
			records[i] = object
		}
		return createCommand{records: records}, nil
	default:
		return nil, badRequest("request body must be a JSON object or an array of objects")
	}
}

// readBody returns the decoded JSON body, or nil if the request has no JSON body
func readBody(r *http.Request, maxBodyBytes int64) (interface{}, *apiError) {
	if r.Method == http.MethodGet || r.Method == http.MethodDelete || r.Body == nil {
		return nil, nil
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, badRequest("cannot read request body: " + err.Error())
	}
	if int64(len(data)) > maxBodyBytes {
		return nil, badRequest("request body exceeds " + strconv.FormatInt(maxBodyBytes, 10) + " bytes")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var body interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, badRequest("Invalid JSON body: " + err.Error())
	}
	if body == nil {
		// a literal null is no body
		return nil, nil
	}
	return body, nil
}

// parseQuery derives the list query. All non-reserved parameters are equality filters.
func parseQuery(urlQuery url.Values, addressing Addressing) (store.Query, *apiError) {
	query := store.Query{Limit: store.NoLimit, Filters: map[string]string{}}
	for key, array := range urlQuery {
		if len(array) > 1 {
			return query, badRequest("illegal parameter array '" + key + "'")
		}
		value := array[0]
		var err error
		switch key {
		case parameterLimit:
			query.Limit, err = parseCount(value)
		case parameterOffset:
			query.Offset, err = parseCount(value)
		case parameterOrder:
			query.Order, err = parseOrder(value)
		case parameterID:
			if addressing == AddressQuery {
				// an empty id in query addressing mode is no id at all
				continue
			}
			query.Filters[key] = value
		default:
			query.Filters[key] = value
		}
		if err != nil {
			return query, badRequest("parameter '" + key + "': " + err.Error())
		}
	}
	return query, nil
}

func parseCount(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n < 0 {
		return 0, errors.New("out of range")
	}
	return n, nil
}

// parseOrder parses <property>.<direction>. Every direction but "desc" is ascending.
func parseOrder(value string) (*store.Order, error) {
	property, direction := value, ""
	if i := strings.LastIndexByte(value, '.'); i >= 0 {
		property, direction = value[:i], value[i+1:]
	}
	if property == "" {
		return nil, errors.New("missing property")
	}
	return &store.Order{Property: property, Descending: direction == "desc"}, nil
}
