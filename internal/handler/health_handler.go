package handler

import (
	"context"
	"net/http"
	"time"
)

type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler reports database reachability through ping. A nil ping
// means the in-memory stores are in use.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.ping == nil {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok", "storage": "memory"}, nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		writeSuccess(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "storage": "unreachable"}, nil)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok", "storage": "postgres"}, nil)
}
