package handler

import (
	"context"
	"net/http"
	"sort"

	"marketing-backend/internal/ai"
	"marketing-backend/internal/event"
	"marketing-backend/internal/model"
)

type suggester interface {
	Suggest(ctx context.Context, kind string, topic string, tone string) (model.Suggestion, error)
}

// AIHandler exposes content suggestions. Upstream failures are the caller's
// error here and surface as 429, 502, or 503.
type AIHandler struct {
	generator suggester
	bus       event.Bus
}

func NewAIHandler(generator suggester, bus event.Bus) *AIHandler {
	if bus == nil {
		bus = event.Discard{}
	}
	return &AIHandler{generator: generator, bus: bus}
}

func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var payload model.GenerateRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	suggestion, err := h.generator.Suggest(r.Context(), payload.Kind, payload.Topic, payload.Tone)
	if err != nil {
		writeError(w, err)
		return
	}

	h.bus.Publish(event.New(event.TypeSuggestionGenerated, actorID(r), map[string]string{"kind": suggestion.Kind}))
	writeSuccess(w, http.StatusOK, suggestion, nil)
}

func (h *AIHandler) Kinds(w http.ResponseWriter, _ *http.Request) {
	kinds := ai.Kinds()
	sort.Strings(kinds)
	writeSuccess(w, http.StatusOK, map[string]any{"kinds": kinds}, nil)
}
