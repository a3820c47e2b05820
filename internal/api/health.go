package api

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports the state of each backing dependency. Any failing
// dependency degrades the whole service to 503.
type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(database Pinger) *HealthHandler {
	return &HealthHandler{checks: map[string]Pinger{"database": database}}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status: "ok",
		Checks: make(map[string]string, len(h.checks)),
		Time:   time.Now().UTC(),
	}
	status := http.StatusOK

	for name, dep := range h.checks {
		if err := dep.PingContext(ctx); err != nil {
			resp.Checks[name] = "error"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}
