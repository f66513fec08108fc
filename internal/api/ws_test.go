package api

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

	"github.com/hexar-systems/hexar/internal/track"
)

func TestHubBroadcast(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.handleWS)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	// Registration races the broadcast; wait for the hub to see the client.
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	sent := Event{
		Type:      "fall",
		Timestamp: time.Now().UTC(),
		Target:    &track.Target{ID: 9, State: track.StateFalling, FallRisk: 0.85},
	}
	hub.Broadcast(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "fall", got.Type)
	require.NotNil(t, got.Target)
	assert.Equal(t, uint32(9), got.Target.ID)
	assert.InDelta(t, 0.85, got.Target.FallRisk, 1e-9)
}

func TestHubTurnsAwayConnectsAfterShutdown(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.handleWS)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	// A connect after the hub loop exited must close promptly instead of
	// leaving the handler goroutine blocked on registration.
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, hub.ClientCount())
}

func TestHubDropsWithoutClients(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// Broadcasting with nobody connected must not block.
	for i := 0; i < 10; i++ {
		hub.Broadcast(Event{Type: "cycle"})
	}
	assert.Zero(t, hub.ClientCount())
}
