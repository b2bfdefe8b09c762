// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package gateway

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/tablegate/core/store"
)

// Messages of the error envelope
const (
	MessageBodyRequired     = "Request body is required"
	MessageIDRequired       = "Resource ID is required"
	MessageMethodNotAllowed = "Method not allowed"
	MessageNotFound         = "Record not found"
	MessageInternal         = "Internal server error"
)

type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// apiError is a request failure with its HTTP status
type apiError struct {
	status  int
	message string
	details string
}

func (e *apiError) Error() string {
	if e.details != "" {
		return e.message + ": " + e.details
	}
	return e.message
}

func badRequest(message string) *apiError {
	return &apiError{status: http.StatusBadRequest, message: message}
}

func methodNotAllowed() *apiError {
	return &apiError{status: http.StatusMethodNotAllowed, message: MessageMethodNotAllowed}
}

func internalError(details string) *apiError {
	return &apiError{status: http.StatusInternalServerError, message: MessageInternal, details: details}
}

// fromStoreError maps a backend failure onto an api error. Backend messages are passed
// through to the caller unchanged.
func fromStoreError(err error) *apiError {
	var se *store.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &apiError{status: http.StatusNotFound, message: MessageNotFound}
	case errors.As(err, &se):
		return badRequest(se.Message)
	default:
		return internalError(err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.MarshalWithOption(body, json.DisableHTMLEscape())
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorEnvelope{Error: MessageInternal, Details: err.Error()})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, e *apiError) {
	writeJSON(w, e.status, errorEnvelope{Error: e.message, Details: e.details})
}
