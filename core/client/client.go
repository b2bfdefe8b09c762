// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast access to a resource gateway

With NewWithHandler the client talks directly to the gateway handler instead of
marshalling HTTP over the network. This is perfectly suited for unit tests. With
NewWithURL it talks to a remote gateway.

All calls unwrap the response envelope: on success the data field is decoded into
the result, on failure the error message of the envelope becomes the returned error.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Error is a failure reported by the gateway
type Error struct {
	Status  int
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("status %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Client provides easy access to the gateway API.
type Client struct {
	handler       http.Handler
	httpClient    *http.Client
	url           string
	ctx           context.Context
	queryAddress  bool
	defaultHeader map[string]string
}

// NewWithHandler creates a client which makes pseudo-REST requests directly to handler
func NewWithHandler(handler http.Handler) Client {
	return Client{
		handler:       handler,
		defaultHeader: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the gateway at url
func NewWithURL(url string) Client {
	return Client{
		url:           strings.TrimSuffix(url, "/"),
		httpClient:    &http.Client{Timeout: 20 * time.Second},
		defaultHeader: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	header := make(map[string]string, len(c.defaultHeader)+1)
	for k, v := range c.defaultHeader {
		header[k] = v
	}
	header[key] = value
	c.defaultHeader = header
	return c
}

// WithPrefix returns a new client which puts prefix in front of every path, for gateways
// configured with a prefix
func (c Client) WithPrefix(prefix string) Client {
	c.url += "/" + strings.Trim(prefix, "/")
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// WithQueryAddressing returns a new client which addresses records with ?id= instead of /{id}
func (c Client) WithQueryAddressing() Client {
	c.queryAddress = true
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Response is a raw gateway response
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends a request. body is marshalled to JSON unless it is a []byte or nil. The request
// carries Content-Type application/json whenever there is a body.
func (c Client) Do(method, path string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		j, ok := body.([]byte)
		if !ok {
			var err error
			j, err = json.Marshal(body)
			if err != nil {
				return nil, err
			}
		}
		reader = bytes.NewReader(j)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeader {
		r.Header.Set(key, value)
	}

	if c.handler != nil {
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, r)
		res := rec.Result()
		return &Response{Status: res.StatusCode, Header: res.Header, Body: rec.Body.Bytes()}, nil
	}

	res, err := c.httpClient.Do(r)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &Response{Status: res.StatusCode, Header: res.Header, Body: resBody}, nil
}

// call sends a request and unwraps the envelope into result. result can be nil.
// Returns the actual http status code.
func (c Client) call(method, path string, body interface{}, result interface{}) (int, error) {
	res, err := c.Do(method, path, body)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return res.Status, res.Decode(result)
}

// Decode unwraps the envelope. For a success envelope, data is decoded into result
// (if not nil); for an error envelope an *Error is returned.
func (res *Response) Decode(result interface{}) error {
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Details string          `json:"details"`
	}
	if err := json.Unmarshal(res.Body, &envelope); err != nil {
		return fmt.Errorf("status %d: cannot decode envelope '%s': %w", res.Status, strings.TrimSpace(string(res.Body)), err)
	}
	if !envelope.Success {
		return &Error{Status: res.Status, Message: envelope.Error, Details: envelope.Details}
	}
	if result != nil && len(envelope.Data) > 0 {
		return json.Unmarshal(envelope.Data, result)
	}
	return nil
}

// Resource represents a resource of the gateway
type Resource struct {
	client     Client
	resource   string
	parameters map[string]string
}

// Resource returns a resource for the client
func (c Client) Resource(resource string) Resource {
	return Resource{client: c, resource: resource, parameters: map[string]string{}}
}

// WithParameter returns a new resource with a query parameter added. This is how
// filters, limit, offset and order are passed.
func (r Resource) WithParameter(key string, value string) Resource {
	parameters := make(map[string]string, len(r.parameters)+1)
	for k, v := range r.parameters {
		parameters[k] = v
	}
	parameters[key] = value
	r.parameters = parameters
	return r
}

// WithFilter is WithParameter for an equality filter
func (r Resource) WithFilter(property string, value string) Resource {
	return r.WithParameter(property, value)
}

// Path returns the list path of the resource including all parameters
func (r Resource) Path() string {
	return "/" + r.resource + encodeParameters(r.parameters)
}

func encodeParameters(parameters map[string]string) string {
	if len(parameters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(parameters))
	for k := range parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(parameters[k]))
	}
	return "?" + strings.Join(parts, "&")
}

// Create posts a new record (or an array of records)
func (r Resource) Create(body interface{}, result interface{}) (int, error) {
	return r.client.call(http.MethodPost, "/"+r.resource, body, result)
}

// List lists the resource with all parameters
func (r Resource) List(result interface{}) (int, error) {
	return r.client.call(http.MethodGet, r.Path(), nil, result)
}

// Item is a single record of a resource
type Item struct {
	resource Resource
	id       string
}

// Item returns the record with id
func (r Resource) Item(id string) Item {
	return Item{resource: r, id: id}
}

// Path returns the path of the item
func (i Item) Path() string {
	r := i.resource
	if r.client.queryAddress {
		return "/" + r.resource + encodeParameters(map[string]string{"id": i.id})
	}
	return "/" + r.resource + "/" + url.PathEscape(i.id)
}

// Read reads the record
func (i Item) Read(result interface{}) (int, error) {
	return i.resource.client.call(http.MethodGet, i.Path(), nil, result)
}

// Patch applies a partial update
func (i Item) Patch(body interface{}, result interface{}) (int, error) {
	return i.resource.client.call(http.MethodPatch, i.Path(), body, result)
}

// Put applies an update
func (i Item) Put(body interface{}, result interface{}) (int, error) {
	return i.resource.client.call(http.MethodPut, i.Path(), body, result)
}

// Delete deletes the record and decodes the deleted record into result
func (i Item) Delete(result interface{}) (int, error) {
	return i.resource.client.call(http.MethodDelete, i.Path(), nil, result)
}
