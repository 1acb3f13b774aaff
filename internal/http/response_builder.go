// Package http provides the JSON API over the record service.
//
// This file implements a small builder for JSON responses so every handler
// answers with the same envelope and error shape.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"potrosnja/internal/core"
	"potrosnja/internal/services"
	"potrosnja/internal/transfer"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    interface{}
	headers    map[string]string
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v interface{}) *JSONResponseBuilder {
	b.payload = v
	return b
}

// SyncStatus exposes the advisory sync state as a header as well, so clients
// that ignore the body still notice a stale store.
func (b *JSONResponseBuilder) SyncStatus(st services.SyncStatus) *JSONResponseBuilder {
	return b.Header("X-Sync-State", string(st.State))
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "component", "http", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, Code: code})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, "validation_error", message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, "conflict", message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal_error", message)
}

// TooManyRequestsError creates a 429 Too Many Requests error response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later")
}

// ErrorFromDomain maps service and domain errors onto responses.
func ErrorFromDomain(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, core.ErrRecordNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, core.ErrPeriodTaken):
		return ConflictError(err.Error())
	case errors.Is(err, transfer.ErrMalformedDocument),
		errors.Is(err, transfer.ErrUnsupportedFormat),
		errors.Is(err, core.ErrUnknownField),
		errors.Is(err, errBadRequest):
		return BadRequestError(err.Error())
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrYearOutOfRange),
		errors.Is(err, core.ErrNegativeValue),
		errors.Is(err, core.ErrNonFiniteValue),
		errors.Is(err, core.ErrEmptyID),
		errors.Is(err, core.ErrInconsistentSum):
		return UnprocessableEntityError(err.Error())
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrorResponse(http.StatusRequestEntityTooLarge, "too_large", "request body too large")
	}
	return InternalServerError("internal error")
}
