package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mcoot/geoseek/internal/api/response"
	"github.com/mcoot/geoseek/internal/storage"
)

// HealthHandler reports service health
type HealthHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store storage.Storage, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{storage: store, logger: logger}
}

// Check handles GET /api/v1/health. The coordinator itself is always up;
// an unreachable archive is reported but does not fail the check.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := response.Health{Status: "ok", Storage: "ok"}
	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("storage ping failed", slog.String("error", err.Error()))
		resp.Storage = "unavailable"
	}
	response.JSON(w, http.StatusOK, resp)
}
