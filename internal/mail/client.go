package mail

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

const Target = "email"

type executor interface {
	Execute(ctx context.Context, target string, call outbound.Call) error
}

type Config struct {
	BaseURL string
	APIKey  string
	From    string
}

type Message struct {
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

type SendReceipt struct {
	ID string `json:"id"`
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Client delivers transactional email through an HTTP email API.
type Client struct {
	cfg       Config
	transport outbound.Transport
	executor  executor
}

func NewClient(cfg Config, transport outbound.Transport, executor executor) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.resend.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, transport: transport, executor: executor}
}

func (c *Client) Send(ctx context.Context, msg Message) (SendReceipt, error) {
	if c.cfg.APIKey == "" {
		return SendReceipt{}, apierror.Wrap(model.ErrUpstreamUnavailable, "UPSTREAM_UNAVAILABLE", "email provider is not configured", "", http.StatusServiceUnavailable)
	}
	if len(msg.To) == 0 {
		return SendReceipt{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "email recipient is required", "to", http.StatusBadRequest)
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return SendReceipt{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "email subject is required", "subject", http.StatusBadRequest)
	}

	payload, err := json.Marshal(sendRequest{
		From:    c.cfg.From,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return SendReceipt{}, fmt.Errorf("mail: encode request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	var receipt SendReceipt
	err = c.executor.Execute(ctx, Target, func(ctx context.Context) error {
		_, body, err := c.transport.Post(ctx, c.cfg.BaseURL+"/emails", payload, headers)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &receipt); err != nil {
			return &outbound.MalformedResponseError{Reason: "invalid JSON: " + err.Error()}
		}
		if receipt.ID == "" {
			return &outbound.MalformedResponseError{Reason: "missing message id"}
		}
		return nil
	})
	if err != nil {
		return SendReceipt{}, err
	}

	return receipt, nil
}
