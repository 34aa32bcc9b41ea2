package handler

import (
	"net/http"

	"marketing-backend/internal/middleware"
	"marketing-backend/internal/model"
	"marketing-backend/internal/service"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(service *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

func (h *AnalyticsHandler) Track(w http.ResponseWriter, r *http.Request) {
	var payload model.AnalyticsEventRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	e, err := h.service.Track(r.Context(), payload, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{"id": e.ID}, nil)
}

func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), queryInt(r, "days", 0))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, summary, nil)
}
