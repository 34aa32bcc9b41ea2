package handler

import (
	"net/http"

	"marketing-backend/internal/model"
	"marketing-backend/internal/service"
)

type NewsletterHandler struct {
	service *service.NewsletterService
}

func NewNewsletterHandler(service *service.NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{service: service}
}

func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var payload model.SubscribeRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	receipt, err := h.service.Subscribe(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, receipt, nil)
}

func (h *NewsletterHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var payload model.UnsubscribeRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Unsubscribe(r.Context(), payload.Email); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"unsubscribed": true}, nil)
}

// List returns active subscribers unless ?all=true.
func (h *NewsletterHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if all := queryBool(r, "all"); all != nil && *all {
		activeOnly = false
	}

	subscribers, err := h.service.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.SubscriberList{Subscribers: subscribers}, nil)
}
