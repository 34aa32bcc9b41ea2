// Package ai calls an OpenAI-compatible chat completion API through the
// outbound executor.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"marketing-backend/internal/model"
	"marketing-backend/internal/outbound"
	"marketing-backend/pkg/apierror"
)

const Target = "ai"

type executor interface {
	Execute(ctx context.Context, target string, call outbound.Call) error
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

type Client struct {
	cfg       Config
	transport outbound.Transport
	executor  executor
}

type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

type Completion struct {
	Text         string
	Model        string
	FinishReason string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

func NewClient(cfg Config, transport outbound.Transport, executor executor) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	return &Client{cfg: cfg, transport: transport, executor: executor}
}

func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Complete sends a single-turn chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if !c.Configured() {
		return Completion{}, apierror.Wrap(model.ErrUpstreamUnavailable, "UPSTREAM_UNAVAILABLE", "AI provider is not configured", "", http.StatusServiceUnavailable)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return Completion{}, fmt.Errorf("ai: prompt is required")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.cfg.Temperature
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("ai: encode request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var completion Completion
	err = c.executor.Execute(ctx, Target, func(ctx context.Context) error {
		_, body, err := c.transport.Post(ctx, c.cfg.BaseURL+"/chat/completions", payload, headers)
		if err != nil {
			return err
		}
		completion, err = parseCompletion(body)
		return err
	})
	if err != nil {
		return Completion{}, err
	}

	return completion, nil
}

func parseCompletion(body []byte) (Completion, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Completion{}, &outbound.MalformedResponseError{Reason: "invalid JSON: " + err.Error()}
	}
	if len(resp.Choices) == 0 {
		return Completion{}, &outbound.MalformedResponseError{Reason: "no choices in completion"}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, &outbound.MalformedResponseError{Reason: "empty completion content"}
	}

	return Completion{Text: text, Model: resp.Model, FinishReason: resp.Choices[0].FinishReason}, nil
}
