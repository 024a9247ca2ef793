package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openfield-labs/fieldforge/internal/cfgerr"
)

// Response is written back to the client by the router.
type Response interface {
	Write(w http.ResponseWriter, r *http.Request)
}

type jsonResponse struct {
	status int
	value  any
}

func (j *jsonResponse) Write(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(j.status)
	json.NewEncoder(w).Encode(j.value)
}

// JSON renders the given value with a 200 status.
func JSON(value any) Response { return &jsonResponse{status: 200, value: value} }

type emptyResponse struct{}

func (emptyResponse) Write(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }

// Empty returns 204 with no body.
func Empty() Response { return emptyResponse{} }

type errorResponse struct {
	status int
	body   map[string]any
	log    error // non-nil for server-side faults
}

func (e *errorResponse) Write(w http.ResponseWriter, r *http.Request) {
	if e.log != nil {
		slog.Error("request failed", "url", r.URL.Path, "error", e.log)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.status)
	json.NewEncoder(w).Encode(e.body)
}

// Error maps an error to a response. Engine error kinds become structured
// client errors that name the offending module/field/flag; anything else
// is logged and reported as a generic 500.
func Error(err error) Response {
	kind := cfgerr.KindOf(err)
	if kind == "" {
		return &errorResponse{
			status: 500,
			body:   map[string]any{"error": "internal error - please try again later"},
			log:    err,
		}
	}

	body := map[string]any{"error": string(kind), "detail": err.Error()}
	var status int
	switch kind {
	case cfgerr.NotFound:
		status = http.StatusNotFound
	case cfgerr.OutOfRange:
		status = http.StatusBadRequest
	case cfgerr.PolicyViolation, cfgerr.InvalidDependency:
		status = http.StatusUnprocessableEntity
	case cfgerr.CyclicDependency, cfgerr.StaleConfiguration:
		status = http.StatusConflict
	case cfgerr.AlreadyInitialized:
		// Reported as a no-op, not a failure.
		return &jsonResponse{status: 200, value: map[string]any{"status": "already_initialized"}}
	default:
		status = http.StatusInternalServerError
	}
	return &errorResponse{status: status, body: body}
}

// ClientErrorf returns a 400 with the given message.
func ClientErrorf(format string, args ...any) Response {
	return &errorResponse{status: 400, body: map[string]any{"error": fmt.Sprintf(format, args...)}}
}

// NotFoundf returns a 404 with the given message.
func NotFoundf(format string, args ...any) Response {
	return &errorResponse{status: 404, body: map[string]any{"error": fmt.Sprintf(format, args...)}}
}

// Unauthorized returns a 401. The error is logged, not exposed.
func Unauthorized(err error) Response {
	return &errorResponse{status: 401, body: map[string]any{"error": "unauthorized"}, log: err}
}

// Errorf is shorthand for Error(fmt.Errorf(...)).
func Errorf(format string, args ...any) Response {
	return Error(fmt.Errorf(strings.TrimSpace(format), args...))
}
