package mail

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-backend/internal/model"
	"marketing-backend/internal/outbound"
)

func newTestMailClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	executor := outbound.NewExecutor(nil,
		outbound.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Timeout: time.Second},
		outbound.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return NewClient(Config{BaseURL: server.URL, APIKey: "re_test", From: "hello@acme.test"}, outbound.NewHTTPTransport(nil), executor), &calls
}

func TestClientSend(t *testing.T) {
	client, calls := newTestMailClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello@acme.test", req.From)
		assert.Equal(t, []string{"a@b.com"}, req.To)
		assert.Equal(t, "Hi", req.Subject)

		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	})

	receipt, err := client.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "Hi", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "msg_1", receipt.ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientSendFailures(t *testing.T) {
	t.Run("missing id is malformed and not retried", func(t *testing.T) {
		client, calls := newTestMailClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})

		_, err := client.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "Hi"})
		require.ErrorIs(t, err, model.ErrUpstreamRejected)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("server errors exhaust retries", func(t *testing.T) {
		client, calls := newTestMailClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "Hi"})
		require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("validation happens before any call", func(t *testing.T) {
		client, calls := newTestMailClient(t, func(w http.ResponseWriter, r *http.Request) {})

		_, err := client.Send(context.Background(), Message{Subject: "Hi"})
		require.ErrorIs(t, err, model.ErrInvalidInput)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("unconfigured provider is unavailable", func(t *testing.T) {
		client := NewClient(Config{}, outbound.NewHTTPTransport(nil), outbound.NewExecutor(nil, outbound.DefaultPolicy()))
		_, err := client.Send(context.Background(), Message{To: []string{"a@b.com"}, Subject: "Hi"})
		require.ErrorIs(t, err, model.ErrUpstreamUnavailable)
	})
}

func TestRendererEscapesInput(t *testing.T) {
	renderer, err := NewRenderer("Acme", "https://acme.test")
	require.NoError(t, err)

	html, err := renderer.Render(TemplateContactAutoReply, map[string]any{
		"Name":    "<script>alert(1)</script>",
		"Subject": "Pricing",
		"Message": "Hello",
	})
	require.NoError(t, err)

	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "Pricing")
	assert.Contains(t, html, "The Acme team")
}

func TestRendererUnknownTemplate(t *testing.T) {
	renderer, err := NewRenderer("Acme", "")
	require.NoError(t, err)

	_, err = renderer.Render("missing.html", nil)
	require.Error(t, err)
}

type recordingSender struct {
	messages []Message
}

func (s *recordingSender) Send(_ context.Context, msg Message) (SendReceipt, error) {
	s.messages = append(s.messages, msg)
	return SendReceipt{ID: "x"}, nil
}

func TestMailer(t *testing.T) {
	renderer, err := NewRenderer("Acme", "https://acme.test")
	require.NoError(t, err)

	contact := model.ContactRequest{Name: "Ada", Email: "ada@example.com", Subject: "Quote", Message: "Need a site"}

	t.Run("auto reply goes to the visitor", func(t *testing.T) {
		sender := &recordingSender{}
		require.NoError(t, NewMailer(sender, renderer, "owner@acme.test", "Acme").ContactAutoReply(context.Background(), contact))

		require.Len(t, sender.messages, 1)
		assert.Equal(t, []string{"ada@example.com"}, sender.messages[0].To)
		assert.Contains(t, sender.messages[0].HTML, "Ada")
	})

	t.Run("notification goes to the owner with reply-to", func(t *testing.T) {
		sender := &recordingSender{}
		require.NoError(t, NewMailer(sender, renderer, "owner@acme.test", "Acme").ContactNotification(context.Background(), "c-1", contact))

		require.Len(t, sender.messages, 1)
		assert.Equal(t, []string{"owner@acme.test"}, sender.messages[0].To)
		assert.Equal(t, "ada@example.com", sender.messages[0].ReplyTo)
		assert.Equal(t, "New contact form submission: Quote", sender.messages[0].Subject)
	})

	t.Run("notification is skipped without an owner address", func(t *testing.T) {
		sender := &recordingSender{}
		require.NoError(t, NewMailer(sender, renderer, "", "Acme").ContactNotification(context.Background(), "c-1", contact))
		assert.Empty(t, sender.messages)
	})

	t.Run("newsletter welcome", func(t *testing.T) {
		sender := &recordingSender{}
		require.NoError(t, NewMailer(sender, renderer, "", "Acme").NewsletterWelcome(context.Background(), model.Subscriber{Email: "sub@example.com", Name: "Sam"}))

		require.Len(t, sender.messages, 1)
		assert.Equal(t, "Welcome to the Acme newsletter", sender.messages[0].Subject)
		assert.Contains(t, sender.messages[0].HTML, "Welcome, Sam!")
	})
}
