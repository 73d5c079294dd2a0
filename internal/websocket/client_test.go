package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamehub-engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// dialTestHub runs a hub behind an httptest server and returns a
// connected client conn.
func dialTestHub(t *testing.T) (*Hub, *gorilla.Conn) {
	t.Helper()

	hub := NewHub(testLogger())
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, testLogger(), w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

func readFrame(t *testing.T, conn *gorilla.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func send(t *testing.T, conn *gorilla.Conn, req clientRequest) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
}

func TestSubscribeRoutesSessionEvents(t *testing.T) {
	hub, conn := dialTestHub(t)

	send(t, conn, clientRequest{Type: MessageTypeSubscribe, SessionID: "s1"})

	ack := readFrame(t, conn)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, "s1", ack.SessionID)

	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount("s1") == 1
	}, time.Second, 10*time.Millisecond)

	// An event for another session must not reach this client. Publishing
	// it first and checking which frame arrives next relies on the
	// broadcast queue being FIFO.
	hub.Publish(context.Background(), domain.Event{
		Type:      domain.EventGameStarted,
		SessionID: "s2",
		Timestamp: time.Now(),
	})
	hub.Publish(context.Background(), domain.Event{
		Type:      domain.EventPlayerJoined,
		SessionID: "s1",
		Timestamp: time.Now(),
	})

	msg := readFrame(t, conn)
	assert.Equal(t, domain.EventPlayerJoined, msg.Type)
	assert.Equal(t, "s1", msg.SessionID)
}

func TestSubscribeWithoutSessionID(t *testing.T) {
	_, conn := dialTestHub(t)

	send(t, conn, clientRequest{Type: MessageTypeSubscribe})

	msg := readFrame(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "session_id required for subscribe", data["error"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub, conn := dialTestHub(t)

	send(t, conn, clientRequest{Type: MessageTypeSubscribe, SessionID: "s1"})
	assert.Equal(t, "subscribed", readFrame(t, conn).Type)
	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount("s1") == 1
	}, time.Second, 10*time.Millisecond)

	send(t, conn, clientRequest{Type: MessageTypeUnsubscribe, SessionID: "s1"})
	assert.Equal(t, "unsubscribed", readFrame(t, conn).Type)
	require.Eventually(t, func() bool {
		return hub.GetSubscriberCount("s1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestProtocolPing(t *testing.T) {
	_, conn := dialTestHub(t)

	send(t, conn, clientRequest{Type: MessageTypePing})

	msg := readFrame(t, conn)
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestMalformedFrameReportsError(t *testing.T) {
	_, conn := dialTestHub(t)

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte("not json")))

	msg := readFrame(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
}

func TestDisconnectUnregistersClient(t *testing.T) {
	hub, conn := dialTestHub(t)

	require.Eventually(t, func() bool {
		return hub.GetTotalConnections() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return hub.GetTotalConnections() == 0
	}, time.Second, 10*time.Millisecond)
}
