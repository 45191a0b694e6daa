package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/kstaniek/go-tcan-bench/internal/api"
	"github.com/kstaniek/go-tcan-bench/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen       = errors.New("listen")
	ErrServe        = errors.New("serve")
	ErrBadRequest   = errors.New("bad_request")
	ErrMonitorWrite = errors.New("monitor_write")
	ErrContext      = errors.New("context_cancelled")
)

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrBadRequest):
		return metrics.ErrHTTPBadRequest
	case errors.Is(err, ErrMonitorWrite):
		return metrics.ErrMonitorWrite
	case errors.Is(err, ErrListen), errors.Is(err, ErrServe):
		return metrics.ErrHTTPServe
	case errors.Is(err, ErrContext):
		return "context"
	default:
		return "other"
	}
}

// ErrResponse renders a failed request as {"status":"error","message":...}.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	api.Status
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errResponse(code int, msg string, err error) render.Renderer {
	return &ErrResponse{Err: err, HTTPStatusCode: code, Status: api.Status{Status: api.StatusError, Message: msg}}
}

// ErrInvalidMode is the reply to a mode outside the enumerated set.
func ErrInvalidMode(err error) render.Renderer {
	return errResponse(http.StatusBadRequest, "Invalid mode", err)
}

func ErrInvalidRequest(err error) render.Renderer {
	return errResponse(http.StatusBadRequest, err.Error(), err)
}

var ErrTooManyMonitors = errResponse(http.StatusServiceUnavailable, "Too many monitor clients", nil)

var ErrShuttingDown = errResponse(http.StatusServiceUnavailable, "Server shutting down", nil)
