// Package handler contains the HTTP handlers for the JSON API.
//
// This file maps domain errors to HTTP responses. Every error body has the
// shape {"error": {"code": ..., "message": ...}} with extra fields for
// validation failures and plan limits.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/dentalab/internal/domain"
)

// JSONError is the response body for API errors.
type JSONError struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a single API error.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`

	// Set when a plan limit blocked the request.
	Reason string         `json:"reason,omitempty"`
	Kind   string         `json:"kind,omitempty"`
	Plan   domain.PlanKey `json:"plan,omitempty"`
	Usage  *int64         `json:"usage,omitempty"`
	Limit  *int64         `json:"limit,omitempty"`
}

// ErrorResponse writes err as a JSON error response.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	logError(logger, r, err, code, domain.ErrorOp(err), status)

	body := ErrorBody{
		Code:    code,
		Message: domain.ErrorMessage(err),
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Message = "Validation failed"
		body.Fields = ve.Fields
	}

	var le *domain.LimitError
	if errors.As(err, &le) {
		used, limit := le.Used, le.Limit
		body.Reason = le.Reason()
		body.Kind = string(le.Kind)
		body.Plan = le.Plan
		body.Usage = &used
		body.Limit = &limit
	}

	writeJSON(w, status, JSONError{Error: body})
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.ELIMIT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge // 413
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	case domain.ENOTIMPL:
		return http.StatusNotImplemented // 501
	case domain.EEXTERNAL:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found")
	ErrorResponse(w, r, logger, err)
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	err := domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required")
	ErrorResponse(w, r, logger, err)
}

// RateLimitedResponse writes a 429 with the standard error body.
// Callers set Retry-After first.
func RateLimitedResponse(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, JSONError{Error: ErrorBody{
		Code:    "rate_limited",
		Message: "Too many requests. Please try again later.",
	}})
}

// InternalErrorResponse logs the error and returns a generic 500 response.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

// logError logs 5xx responses at Error and 4xx at Info.
func logError(logger *slog.Logger, r *http.Request, err error, code, op string, status int) {
	attrs := []any{
		"error", err.Error(),
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if op != "" {
		attrs = append(attrs, "op", op)
	}

	if status >= 500 {
		logger.Error("server error", attrs...)
	} else {
		logger.Info("client error", attrs...)
	}
}
