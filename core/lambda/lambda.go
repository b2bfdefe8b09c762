// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package lambda runs an http.Handler behind AWS API Gateway (HTTP API, payload
format 2.0). Each event becomes one in-process request to the handler, and the
recorded response becomes the event response.
*/
package lambda

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"github.com/relabs-tech/tablegate/core/logger"
)

// Adapter converts API Gateway events into calls to an http.Handler
type Adapter struct {
	handler http.Handler
}

// New returns an adapter for handler
func New(handler http.Handler) *Adapter {
	return &Adapter{handler: handler}
}

// Handle is the lambda handler function, suitable for lambda.Start
func (a *Adapter) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	r, err := Request(ctx, event)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("cannot convert api gateway event")
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
			Body:       `{"success":false,"error":"Invalid request event"}`,
		}, nil
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, r)
	return Response(rec.Result().Header, rec.Code, rec.Body.Bytes()), nil
}

// Request builds the http request for event
func Request(ctx context.Context, event events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return nil, err
		}
		body = decoded
	}

	path := event.RawPath
	if path == "" {
		path = event.RequestContext.HTTP.Path
	}
	if path == "" {
		path = "/"
	}
	target := path
	if event.RawQueryString != "" {
		target += "?" + event.RawQueryString
	}

	method := event.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}
	r, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, value := range event.Headers {
		r.Header.Set(key, value)
	}
	if len(event.Cookies) > 0 {
		r.Header.Set("Cookie", strings.Join(event.Cookies, "; "))
	}
	if event.RequestContext.RequestID != "" && r.Header.Get(logger.RequestIDHeader) == "" {
		r.Header.Set(logger.RequestIDHeader, event.RequestContext.RequestID)
	}
	if event.RequestContext.HTTP.SourceIP != "" {
		r.RemoteAddr = event.RequestContext.HTTP.SourceIP
	}
	return r, nil
}

// Response builds the event response from a recorded http response. Bodies which
// are not valid UTF-8 are base64 encoded.
func Response(header http.Header, status int, body []byte) events.APIGatewayV2HTTPResponse {
	res := events.APIGatewayV2HTTPResponse{
		StatusCode:        status,
		Headers:           map[string]string{},
		MultiValueHeaders: map[string][]string{},
	}
	for key, values := range header {
		if key == "Set-Cookie" {
			res.Cookies = append(res.Cookies, values...)
			continue
		}
		if len(values) == 1 {
			res.Headers[key] = values[0]
		} else {
			res.MultiValueHeaders[key] = values
		}
	}
	if utf8.Valid(body) {
		res.Body = string(body)
	} else {
		res.Body = base64.StdEncoding.EncodeToString(body)
		res.IsBase64Encoded = true
	}
	return res
}
