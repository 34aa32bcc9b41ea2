package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"marketing-backend/internal/middleware"
	"marketing-backend/internal/model"
	"marketing-backend/internal/service"
)

type ContactHandler struct {
	service *service.ContactService
}

func NewContactHandler(service *service.ContactService) *ContactHandler {
	return &ContactHandler{service: service}
}

// Submit stores the message. The response reports whether the auto-reply
// was delivered; email failures never fail the request.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var payload model.ContactRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	receipt, err := h.service.Submit(r.Context(), payload, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{
		"id":         receipt.Contact.ID,
		"email_sent": receipt.EmailSent,
	}, nil)
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, meta, err := h.service.List(r.Context(), model.ContentFilter{
		Status: r.URL.Query().Get("status"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DocumentList{Items: docs}, &meta)
}

func (h *ContactHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var payload model.ContactStatusRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.service.UpdateStatus(r.Context(), actorID(r), chi.URLParam(r, "id"), payload.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, doc, nil)
}
