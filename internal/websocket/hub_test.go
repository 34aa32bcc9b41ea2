package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketing-backend/internal/event"
)

func startHub(t *testing.T) (*Hub, *event.InMemoryBus, *httptest.Server) {
	t.Helper()

	bus := event.NewBus()
	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	handler := NewHandler(hub, []string{"https://site.example"}, func(r *http.Request) (string, bool) {
		id := r.URL.Query().Get("principal")
		return id, id != ""
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return hub, bus, server
}

func dial(t *testing.T, server *httptest.Server, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?" + query
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHub_BroadcastsBusEvents(t *testing.T) {
	hub, bus, server := startHub(t)

	conn, _, err := dial(t, server, "principal=p1", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected() == 1 }, time.Second, 10*time.Millisecond)

	bus.Publish(event.New(event.TypeContactSubmitted, "", map[string]string{"id": "c1"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var got event.Event
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, event.TypeContactSubmitted, got.Type)
}

func TestHandler_RejectsAnonymous(t *testing.T) {
	_, _, server := startHub(t)

	_, resp, err := dial(t, server, "", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	_, _, server := startHub(t)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := dial(t, server, "principal=p1", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, _, server := startHub(t)

	conn, _, err := dial(t, server, "principal=p1", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connected() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connected() == 0 }, 2*time.Second, 10*time.Millisecond)
}
