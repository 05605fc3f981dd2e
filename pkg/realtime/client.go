package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler consumes one decoded event payload.
type Handler func(data json.RawMessage)

// Options tunes the client connection.
type Options struct {
	// ReconnectAttempts bounds automatic redials after a drop. The
	// counter resets on every successful connect.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
	WriteWait         time.Duration
	Logger            *zap.Logger
}

func (o *Options) applyDefaults() {
	if o.ReconnectAttempts <= 0 {
		o.ReconnectAttempts = 5
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 3 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client maintains a websocket connection to the gateway. Messages sent
// before the connection is up are queued and flushed in order once the
// dial succeeds, so callers never have to care about connection state.
type Client struct {
	endpoint string
	token    string
	opts     Options

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	pending   [][]byte
	handlers  map[string][]Handler
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewClient builds a client for the given gateway URL and access token.
// Call Connect to start the connection loop.
func NewClient(endpoint, token string, opts Options) *Client {
	opts.applyDefaults()
	return &Client{
		endpoint: endpoint,
		token:    token,
		opts:     opts,
		handlers: make(map[string][]Handler),
		done:     make(chan struct{}),
	}
}

// On registers a handler for the named event. Handlers run on the read
// loop goroutine and must not block.
func (c *Client) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// Connect dials the gateway and starts the read loop. Reconnection is
// automatic and bounded by Options.ReconnectAttempts per outage.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		cancel()
		return err
	}
	go c.run(ctx)
	return nil
}

// Close shuts the connection down and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.opts.WriteWait))
		conn.Close()
	}
	<-c.done
	return nil
}

// JoinResource subscribes to a resource room for live counter updates.
func (c *Client) JoinResource(resourceID string) error {
	return c.send("join-resource", map[string]string{"room": resourceID})
}

// LeaveResource unsubscribes from a resource room.
func (c *Client) LeaveResource(resourceID string) error {
	return c.send("leave-resource", map[string]string{"room": resourceID})
}

// SendResourceUpdate relays an edit to the other members of a resource
// room. The gateway delivers it as a resource-updated event to everyone
// in the room except this connection.
func (c *Client) SendResourceUpdate(resourceID string, payload json.RawMessage) error {
	return c.send("resource-update", map[string]interface{}{
		"room":    resourceID,
		"payload": payload,
	})
}

// send marshals the frame and either writes it immediately or queues it
// until the next successful connect.
func (c *Client) send(event string, data interface{}) error {
	payload, err := json.Marshal(outboundFrame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if !c.connected {
		c.pending = append(c.pending, payload)
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) dial(ctx context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, payload := range pending {
		conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.opts.Logger.Warn("failed to flush queued frame", zap.Error(err))
			break
		}
	}
	return nil
}

// run reads frames until the connection drops, then redials with a fixed
// delay until the attempt budget is spent.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		c.readLoop()

		c.mu.Lock()
		c.connected = false
		closed := c.closed
		c.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}

		if !c.reconnect(ctx) {
			c.opts.Logger.Warn("gateway reconnect budget exhausted",
				zap.Int("attempts", c.opts.ReconnectAttempts))
			return
		}
	}
}

func (c *Client) readLoop() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.opts.Logger.Debug("dropping malformed frame", zap.Error(err))
			continue
		}

		c.mu.Lock()
		handlers := append([]Handler(nil), c.handlers[f.Event]...)
		c.mu.Unlock()
		for _, handler := range handlers {
			handler(f.Data)
		}
	}
}

func (c *Client) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.opts.ReconnectDelay):
		}

		if err := c.dial(ctx); err != nil {
			c.opts.Logger.Debug("gateway redial failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		return true
	}
	return false
}
