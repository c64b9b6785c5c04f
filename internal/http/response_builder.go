// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"depositos/internal/auth"
	"depositos/internal/core"
	applog "depositos/internal/log"
	"depositos/internal/session"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
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
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

var (
	errBadRequest   = errors.New("malformed request")
	errInvalidPhoto = errors.New("invalid photo")
)

var validationErrors = []error{
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrInvalidStatus,
	core.ErrEmptyMemberID,
	core.ErrEmptyFirstName,
	core.ErrEmptyCode,
	core.ErrEmptyPatch,
	errInvalidPhoto,
}

// ErrorStatus maps an error to the status code it is reported with.
func ErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrDepositNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, session.ErrUnauthorized),
		errors.Is(err, session.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

// FromError builds the response for err. Server errors are logged and their
// text is not leaked to the client.
func FromError(r *http.Request, err error) *JSONResponseBuilder {
	switch status := ErrorStatus(err); status {
	case http.StatusInternalServerError:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.NewFields().
				WithError(err).
				WithErrorType(applog.ErrorTypeInternal).
				ToSlice()...)
		return InternalServerError("internal error")
	case http.StatusRequestEntityTooLarge:
		return ErrorResponse(status, "request body too large")
	case http.StatusBadRequest:
		return BadRequestError(err.Error())
	case http.StatusUnprocessableEntity:
		return UnprocessableEntityError(err.Error())
	case http.StatusNotFound:
		return NotFoundError(err.Error())
	default:
		return ErrorResponse(status, err.Error())
	}
}
