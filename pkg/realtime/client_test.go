package realtime

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

	"github.com/studyhive/studyhive-api/internal/models"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// gatewayStub accepts one connection at a time and records inbound frames.
type gatewayStub struct {
	server   *httptest.Server
	tokens   chan string
	inbound  chan []byte
	sessions chan *websocket.Conn
}

func newGatewayStub(t *testing.T) *gatewayStub {
	stub := &gatewayStub{
		tokens:   make(chan string, 8),
		inbound:  make(chan []byte, 32),
		sessions: make(chan *websocket.Conn, 8),
	}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.tokens <- r.URL.Query().Get("token")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		stub.sessions <- conn
		go func() {
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				stub.inbound <- raw
			}
		}()
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (g *gatewayStub) wsURL() string {
	return "ws" + strings.TrimPrefix(g.server.URL, "http")
}

func (g *gatewayStub) nextFrame(t *testing.T) frame {
	t.Helper()
	select {
	case raw := <-g.inbound:
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
		return frame{}
	}
}

func TestClientSendsTokenOnDial(t *testing.T) {
	stub := newGatewayStub(t)
	client := NewClient(stub.wsURL(), "access-token-123", Options{})

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	select {
	case token := <-stub.tokens:
		assert.Equal(t, "access-token-123", token)
	case <-time.After(2 * time.Second):
		t.Fatal("no connection arrived")
	}
}

func TestClientQueuesBeforeConnectAndFlushesInOrder(t *testing.T) {
	stub := newGatewayStub(t)
	client := NewClient(stub.wsURL(), "token", Options{})

	require.NoError(t, client.JoinResource("r1"))
	require.NoError(t, client.JoinResource("r2"))

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	first := stub.nextFrame(t)
	second := stub.nextFrame(t)
	assert.Equal(t, "join-resource", first.Event)
	assert.Contains(t, string(first.Data), "r1")
	assert.Equal(t, "join-resource", second.Event)
	assert.Contains(t, string(second.Data), "r2")
}

func TestClientSendsResourceUpdate(t *testing.T) {
	stub := newGatewayStub(t)
	client := NewClient(stub.wsURL(), "token", Options{})

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.NoError(t, client.SendResourceUpdate("r1", json.RawMessage(`{"title":"Revised notes"}`)))

	f := stub.nextFrame(t)
	assert.Equal(t, "resource-update", f.Event)
	assert.Contains(t, string(f.Data), `"room":"r1"`)
	assert.Contains(t, string(f.Data), "Revised notes")
}

func TestClientDispatchesEventsToHandlers(t *testing.T) {
	stub := newGatewayStub(t)
	client := NewClient(stub.wsURL(), "token", Options{})

	received := make(chan models.ResourceInteractionEvent, 1)
	client.On(models.EventResourceInteraction, func(data json.RawMessage) {
		var event models.ResourceInteractionEvent
		if err := json.Unmarshal(data, &event); err == nil {
			received <- event
		}
	})

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	conn := <-stub.sessions
	payload, _ := json.Marshal(map[string]interface{}{
		"event": models.EventResourceInteraction,
		"data": models.ResourceInteractionEvent{
			ResourceID: "r1",
			Kind:       "like",
			Stats:      models.ResourceStats{Likes: 4},
		},
	})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	select {
	case event := <-received:
		assert.Equal(t, "r1", event.ResourceID)
		assert.Equal(t, 4, event.Stats.Likes)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	stub := newGatewayStub(t)
	client := NewClient(stub.wsURL(), "token", Options{
		ReconnectAttempts: 3,
		ReconnectDelay:    50 * time.Millisecond,
	})

	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	first := <-stub.sessions
	first.Close()

	select {
	case <-stub.sessions:
	case <-time.After(3 * time.Second):
		t.Fatal("client did not reconnect")
	}
}

func TestClientSendAfterCloseFails(t *testing.T) {
	stub := newGatewayStub(t)
	client := NewClient(stub.wsURL(), "token", Options{})

	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Close())

	assert.Error(t, client.JoinResource("r1"))
}

func TestStoreTracksInteractionEvents(t *testing.T) {
	store := NewStore(10)

	payload, _ := json.Marshal(models.ResourceInteractionEvent{
		ResourceID: "r1",
		Kind:       "view",
		Stats:      models.ResourceStats{Views: 12, Likes: 3},
	})
	store.onInteraction(payload)

	stats, ok := store.Stats("r1")
	require.True(t, ok)
	assert.Equal(t, 12, stats.Views)
	assert.Equal(t, 3, stats.Likes)
}

func TestStoreBuffersNotificationsNewestFirst(t *testing.T) {
	store := NewStore(2)

	for _, id := range []string{"n1", "n2", "n3"} {
		payload, _ := json.Marshal(models.Notification{ID: id})
		store.onNotification(payload)
	}

	feed := store.Notifications()
	require.Len(t, feed, 2)
	assert.Equal(t, "n3", feed[0].ID)
	assert.Equal(t, "n2", feed[1].ID)
}
