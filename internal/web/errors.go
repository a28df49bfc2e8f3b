// internal/web/errors.go
package web

import (
	"errors"
	"net/http"

	"librarium/internal/apperror"
	"librarium/pkg/logger"
)

// Responder maps errors raised by the services onto HTTP responses. It is
// shared by every domain handler so the status-code policy lives in one place:
// business-rule violations are 400s, missing records are 404s, everything
// else is a generic 500 with a non-actionable detail string.
type Responder struct {
	log logger.Logger
}

func NewResponder(log logger.Logger) *Responder {
	return &Responder{log: log}
}

// Error writes the response for err according to its kind.
func (rp *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		rp.reply(w, r, http.StatusNotFound, Envelope{"error": err.Error()})
	case apperror.IsBusiness(err):
		rp.reply(w, r, http.StatusBadRequest, Envelope{"error": err.Error()})
	default:
		rp.log.Error("unexpected error", map[string]interface{}{
			"error":          err.Error(),
			"request_method": r.Method,
			"request_url":    r.URL.String(),
		})
		rp.reply(w, r, http.StatusInternalServerError, Envelope{
			"error":   "the server encountered a problem and could not process your request",
			"details": err.Error(),
		})
	}
}

// BadRequest writes a 400 with the given message, used for malformed input
// caught before a service is ever called.
func (rp *Responder) BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	rp.reply(w, r, http.StatusBadRequest, Envelope{"error": msg})
}

// NotFound writes a plain 404 for unmatched routes.
func (rp *Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	rp.reply(w, r, http.StatusNotFound, Envelope{"error": "the requested resource could not be found"})
}

// MethodNotAllowed writes a 405 for known routes with an unsupported verb.
func (rp *Responder) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rp.reply(w, r, http.StatusMethodNotAllowed, Envelope{"error": "the " + r.Method + " method is not supported for this resource"})
}

func (rp *Responder) reply(w http.ResponseWriter, r *http.Request, status int, data Envelope) {
	if err := WriteJSON(w, status, data, nil); err != nil {
		rp.log.Error("failed to write error response", map[string]interface{}{
			"error":       err.Error(),
			"request_url": r.URL.String(),
		})
		w.WriteHeader(http.StatusInternalServerError)
	}
}
