// internal/web/health.go
package web

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler answers /health with overall status, a timestamp and the
// database check result.
type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	dbStatus := "healthy"

	if err := h.db.PingContext(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		dbStatus = err.Error()
	}

	WriteJSON(w, code, Envelope{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"database":  dbStatus,
	}, nil)
}
