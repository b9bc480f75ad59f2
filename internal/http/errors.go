package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-tracker/internal/client"
	"github.com/kjstillabower/climate-tracker/internal/observability"
	"github.com/kjstillabower/climate-tracker/internal/validation"
)

const (
	msgInternal       = "Internal server error"
	msgUpstream       = "Upstream API error"
	msgUpstreamFailed = "External API request failed"
	msgValidation     = "Validation failed"
)

// StatusError is a handler failure that carries the status to answer with.
// Messages of 5xx errors are never shown to clients.
type StatusError struct {
	Status  int
	Message string
	Err     error
}

// NewStatusError returns a StatusError with the given status and client message.
func NewStatusError(status int, message string) *StatusError {
	return &StatusError{Status: status, Message: message}
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

type errorBody struct {
	Error     string                  `json:"error"`
	Message   string                  `json:"message,omitempty"`
	Details   []validation.FieldError `json:"details,omitempty"`
	RequestID string                  `json:"requestId,omitempty"`
}

// handlerFunc is a route handler that reports failure by returning an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts fn into an http.Handler. It is the terminal stage for every
// upstream-backed route: the outcome feeds the degraded check, and any error
// is turned into a response by writeError.
func (h *Handler) handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			h.traffic.RecordSuccess()
			return
		}
		if _, ok := client.IsUpstreamError(err); ok {
			h.traffic.RecordError()
		}
		h.writeError(w, r, err)
	})
}

// writeError classifies err into a status and client-safe body.
// Upstream failures are always 502 regardless of the upstream status.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, h.logger)
	requestID := observability.CorrelationID(ctx)

	if ve, ok := validation.AsRequestValidationError(err); ok {
		logger.Warn("client error",
			zap.String("url", r.URL.RequestURI()),
			zap.Int("status", http.StatusBadRequest),
			zap.String("message", ve.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgValidation, Details: ve.Details(), RequestID: requestID})
		return
	}

	if ue, ok := client.IsUpstreamError(err); ok {
		message := ue.Message
		if message == "" {
			message = msgUpstreamFailed
		}
		logger.Warn("upstream API error",
			zap.String("url", r.URL.RequestURI()),
			zap.String("method", r.Method),
			zap.String("provider", ue.Provider),
			zap.String("upstream_url", ue.URL),
			zap.Int("upstream_status", ue.StatusCode),
			zap.String("category", string(client.CategorizeError(err))),
			zap.String("message", message))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: msgUpstream, Message: message, RequestID: requestID})
		return
	}

	status, message := http.StatusInternalServerError, msgInternal
	var se *StatusError
	if errors.As(err, &se) && se.Status >= 400 {
		status = se.Status
		if status < 500 {
			message = se.Message
		}
	}

	if status >= 500 {
		fields := []zap.Field{
			zap.String("url", r.URL.RequestURI()),
			zap.String("method", r.Method),
			zap.Error(err),
			zap.Stack("stack"),
		}
		if errors.Is(err, client.ErrMissingAPIKey) {
			fields = append(fields, zap.String("category", string(client.ErrorCategoryMissingAPIKey)))
		}
		logger.Error("unhandled server error", fields...)
	} else {
		logger.Warn("client error",
			zap.String("url", r.URL.RequestURI()),
			zap.Int("status", status),
			zap.String("message", message))
	}
	writeJSON(w, status, errorBody{Error: message, RequestID: requestID})
}

// writeJSON writes v as the whole response body. No trailing newline is added,
// so a body served from the cache is byte-identical to the original.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
