package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/user-segments/internal/apperror"
)

// Pinger is anything whose reachability can be checked, the record store
// in practice.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the server can reach its store.
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Each check gives the store two
// seconds to answer.
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, timeout: 2 * time.Second, logger: logger}
}

// HandleHealth pings the store.
//
// HTTP: GET /healthz
// RESPONSE: 200 {"status":"ok"} or 503 store_unavailable
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", slog.String("error", err.Error()))
		writeError(w, apperror.StoreUnavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
