// Package api is the control plane's admin HTTP surface: CRUD
// over teams, users, API keys, model aliases and quotas, plus the
// data-plane-facing GET /v1/config/sync endpoint. The envelope and
// error-mapping conventions are adapted from api/handlers/common.go in the
// teacher repo, rebased onto internal/model's error taxonomy instead of
// types.Error/types.ErrorCode.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/hyperinfer/internal/model"
)

// Response is the canonical API envelope every handler writes.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the structured error payload nested in a failed Response.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	HTTPStatus int    `json:"http_status"`
}

// WriteJSON writes data as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope wrapping data.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// WriteCreated writes a 201 envelope wrapping data.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// WriteError writes err's structured form, using err.HTTPStatus when set or
// falling back to model.HTTPStatusFor(err.Code).
func WriteError(w http.ResponseWriter, err *model.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = model.HTTPStatusFor(err.Code)
	}

	if logger != nil {
		logger.Error("api error",
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Error(err.Cause))
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:       string(err.Code),
			Message:    err.Message,
			Retryable:  err.Retryable,
			HTTPStatus: status,
		},
		Timestamp: time.Now(),
	})
}

// WriteErrorMessage is a convenience wrapper for handlers that don't already
// have a *model.Error in hand.
func WriteErrorMessage(w http.ResponseWriter, status int, code model.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, &model.Error{Code: code, Message: message, HTTPStatus: status}, logger)
}

// handleRepoError maps a repository error onto the envelope, falling back to
// a generic 500 when err isn't a *model.Error (shouldn't happen in practice,
// since internal/tenant always wraps through mapGormError).
func handleRepoError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if modelErr, ok := err.(*model.Error); ok {
		WriteError(w, modelErr, logger)
		return
	}
	WriteErrorMessage(w, http.StatusInternalServerError, model.ErrDBError, "internal error", logger)
}

// DecodeJSONBody decodes r's body into dst, rejecting bodies over 1MB and
// unknown fields. On failure it writes the error response itself and
// returns it, so callers can simply `if err := DecodeJSONBody(...); err !=
// nil { return }`.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := &model.Error{Code: model.ErrConfigError, Message: "request body is empty", HTTPStatus: http.StatusBadRequest}
		WriteError(w, err, logger)
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := &model.Error{
			Code: model.ErrConfigError, Message: "invalid JSON body",
			HTTPStatus: http.StatusBadRequest, Cause: err,
		}
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// pathValue extracts a path segment by name via Go 1.22+'s r.PathValue,
// falling back to a manual split for routers that don't set it.
func pathValue(r *http.Request, name string, fallbackIndex int) string {
	if v := r.PathValue(name); v != "" {
		return v
	}
	parts := splitPath(r.URL.Path)
	if fallbackIndex < 0 || fallbackIndex >= len(parts) {
		return ""
	}
	return parts[fallbackIndex]
}

func splitPath(p string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// ResponseWriter wraps http.ResponseWriter to capture the status code
// actually written, for access logging middleware.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
