package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"marketing-backend/internal/model"
	"marketing-backend/pkg/apierror"
)

type completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Generator turns content-suggestion requests into completion prompts.
type Generator struct {
	client   completer
	siteName string
}

var prompts = map[string]string{
	"service_description": "Write a concise, persuasive description (80-120 words) of the service %q for a company website.",
	"project_summary":     "Write a short case-study summary (60-100 words) for the portfolio project %q, covering challenge, approach, and result.",
	"testimonial_request": "Write a friendly email (under 120 words) asking a client to leave a testimonial about %q.",
	"blog_ideas":          "Suggest five blog post titles about %q, one per line, without numbering.",
	"tagline":             "Suggest three short taglines (under 10 words each) for %q, one per line.",
}

var tones = map[string]bool{
	"professional": true,
	"friendly":     true,
	"bold":         true,
	"casual":       true,
}

func NewGenerator(client completer, siteName string) *Generator {
	if siteName == "" {
		siteName = "our company"
	}
	return &Generator{client: client, siteName: siteName}
}

// Kinds lists the supported suggestion kinds.
func Kinds() []string {
	kinds := make([]string, 0, len(prompts))
	for kind := range prompts {
		kinds = append(kinds, kind)
	}
	return kinds
}

func (g *Generator) Suggest(ctx context.Context, kind string, topic string, tone string) (model.Suggestion, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	topic = strings.TrimSpace(topic)
	tone = strings.ToLower(strings.TrimSpace(tone))

	template, ok := prompts[kind]
	if !ok {
		return model.Suggestion{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "unsupported suggestion kind", kind, http.StatusBadRequest)
	}
	if topic == "" {
		return model.Suggestion{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "topic is required", "topic", http.StatusBadRequest)
	}
	if len(topic) > 500 {
		return model.Suggestion{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "topic is too long", "topic", http.StatusBadRequest)
	}
	if tone == "" {
		tone = "professional"
	}
	if !tones[tone] {
		return model.Suggestion{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "unsupported tone", tone, http.StatusBadRequest)
	}

	system := fmt.Sprintf("You are a marketing copywriter for %s. Write in a %s tone. Reply with the copy only.", g.siteName, tone)
	completion, err := g.client.Complete(ctx, CompletionRequest{
		System: system,
		Prompt: fmt.Sprintf(template, topic),
	})
	if err != nil {
		return model.Suggestion{}, err
	}

	return model.Suggestion{Kind: kind, Text: completion.Text, Model: completion.Model}, nil
}
