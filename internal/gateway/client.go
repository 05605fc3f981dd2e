package gateway

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/studyhive/studyhive-api/internal/models"
)

// inboundFrame is the message shape clients send upstream.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one websocket connection owned by the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger *zap.Logger
	send   chan []byte

	userID     string
	role       models.UserRole
	department string
	semester   *int

	pingInterval    time.Duration
	pongWait        time.Duration
	writeWait       time.Duration
	maxMessageBytes int64
}

func newClient(hub *Hub, conn *websocket.Conn, claims *models.JWTClaims, opts Options, logger *zap.Logger) *Client {
	return &Client{
		hub:             hub,
		conn:            conn,
		logger:          logger,
		send:            make(chan []byte, opts.SendBufferSize),
		userID:          claims.UserID,
		role:            claims.Role,
		department:      claims.Department,
		semester:        claims.Semester,
		pingInterval:    opts.PingInterval,
		pongWait:        opts.PongWait,
		writeWait:       opts.WriteWait,
		maxMessageBytes: opts.MaxMessageBytes,
	}
}

// readPump consumes inbound frames until the connection drops. Clients
// may join and leave resource rooms while a resource page is open.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("gateway read error", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.logger.Debug("gateway inbound frame rejected", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}

		switch frame.Event {
		case "join-resource":
			var req models.RoomJoinRequest
			if err := json.Unmarshal(frame.Data, &req); err == nil && req.Room != "" {
				c.hub.Join(c, ResourceRoom(req.Room))
			}
		case "leave-resource":
			var req models.RoomJoinRequest
			if err := json.Unmarshal(frame.Data, &req); err == nil && req.Room != "" {
				c.hub.Leave(c, ResourceRoom(req.Room))
			}
		case "resource-update":
			var req models.ResourceUpdateRequest
			if err := json.Unmarshal(frame.Data, &req); err == nil && req.Room != "" {
				c.hub.EmitExcept(ResourceRoom(req.Room), models.EventResourceUpdated, models.ResourceUpdatedEvent{
					ResourceID: req.Room,
					UserID:     c.userID,
					Payload:    req.Payload,
				}, c)
			}
		default:
			c.logger.Debug("gateway unknown inbound event", zap.String("event", frame.Event))
		}
	}
}

// writePump flushes queued frames and pings the peer on an interval.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
