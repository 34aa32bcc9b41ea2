package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"marketing-backend/internal/middleware"
	"marketing-backend/internal/model"
	"marketing-backend/internal/service"
)

// ContentHandler serves the site collections. The collection name comes from
// the {collection} route parameter.
type ContentHandler struct {
	service *service.ContentService
}

func NewContentHandler(service *service.ContentService) *ContentHandler {
	return &ContentHandler{service: service}
}

func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ContentFilter{
		Published: queryBool(r, "published"),
		Featured:  queryBool(r, "featured"),
		Category:  r.URL.Query().Get("category"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 0),
	}
	if !isStaff(r) {
		published := true
		filter.Published = &published
	}

	docs, meta, err := h.service.List(r.Context(), chi.URLParam(r, "collection"), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DocumentList{Items: docs}, &meta)
}

func (h *ContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), !isStaff(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, doc, nil)
}

func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.service.Create(r.Context(), actorID(r), chi.URLParam(r, "collection"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, doc, nil)
}

func (h *ContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.service.Update(r.Context(), actorID(r), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, doc, nil)
}

func (h *ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorID(r), chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

// isStaff reports whether the optional caller may see unpublished content.
func isStaff(r *http.Request) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	return ok && service.Authorize(claims, model.RoleAdmin, model.RoleManager)
}
