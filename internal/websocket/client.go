package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Pump deadlines. The ping period must stay under the pong deadline or
// healthy connections get reaped.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// Client is one WebSocket connection. The read pump speaks the small
// session-subscription protocol; everything outbound flows through the
// buffered send channel drained by the write pump.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// clientRequest is the inbound protocol frame: subscribe, unsubscribe
// or ping, with the target session where one applies.
type clientRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

// readPump consumes protocol frames until the connection drops, then
// unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}

		var req clientRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.pushError("invalid message format")
			continue
		}

		switch {
		case req.Type == MessageTypeSubscribe && req.SessionID != "":
			c.hub.Subscribe(c, req.SessionID)
			c.push(Message{Type: "subscribed", SessionID: req.SessionID})

		case req.Type == MessageTypeSubscribe:
			c.pushError("session_id required for subscribe")

		case req.Type == MessageTypeUnsubscribe && req.SessionID != "":
			c.hub.Unsubscribe(c, req.SessionID)
			c.push(Message{Type: "unsubscribed", SessionID: req.SessionID})

		case req.Type == MessageTypePing:
			c.push(Message{Type: MessageTypePong})

		default:
			c.logger.Debug("unknown message type", "client_id", c.id, "type", req.Type)
		}
	}
}

// writePump writes queued frames and keeps the connection alive with
// periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push queues one outbound frame, dropping it if the client is slow.
func (c *Client) push(msg Message) {
	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client buffer full, dropping frame", "client_id", c.id, "type", msg.Type)
	}
}

func (c *Client) pushError(reason string) {
	c.push(Message{
		Type: MessageTypeError,
		Data: map[string]string{"error": reason},
	})
}

// ServeWs upgrades an HTTP request and starts the client pumps
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
	hub.Register(client)

	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "client_id", client.id)
}
