package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Room name builders. Every connection sits in its user room plus the
// cohort rooms derived from its claims; resource rooms are joined on
// demand while a resource page is open.
func UserRoom(userID string) string        { return "user:" + userID }
func DepartmentRoom(department string) string { return "department:" + department }
func SemesterRoom(semester int) string     { return fmt.Sprintf("semester:%d", semester) }
func ResourceRoom(resourceID string) string { return "resource:" + resourceID }

// Envelope is the wire frame for every event sent to clients.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type broadcast struct {
	// An empty room targets every connected client.
	room    string
	payload []byte
	except  *Client
}

// Hub tracks connected clients and their room membership and fans
// broadcast frames out to room members.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}

	register   chan *Client
	unregister chan *Client
	broadcasts chan broadcast
}

// NewHub constructs a Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		rooms:      make(map[string]map[*Client]struct{}),
		clients:    make(map[*Client]map[string]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcasts: make(chan broadcast, 256),
	}
}

// Run processes registration and broadcast traffic until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcasts:
			h.deliver(msg)
		}
	}
}

// Emit serialises the event and queues it for every member of room.
func (h *Hub) Emit(room, event string, data interface{}) {
	h.queue(room, event, data, nil)
}

// EmitAll serialises the event and queues it for every connected client.
func (h *Hub) EmitAll(event string, data interface{}) {
	h.queue("", event, data, nil)
}

// EmitExcept queues the event for every member of room other than except.
// Used when relaying a client's own message back to its peers.
func (h *Hub) EmitExcept(room, event string, data interface{}, except *Client) {
	h.queue(room, event, data, except)
}

func (h *Hub) queue(room, event string, data interface{}, except *Client) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal gateway event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.broadcasts <- broadcast{room: room, payload: payload, except: except}:
	default:
		h.logger.Warn("gateway broadcast queue full, dropping event",
			zap.String("room", room),
			zap.String("event", event),
		)
	}
}

// Join adds a client to a room.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.clients[client][room] = struct{}{}
}

// Leave removes a client from a room.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.clients[client]; ok {
		delete(rooms, room)
	}
}

// RoomSize reports the member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = make(map[string]struct{})
	h.mu.Unlock()

	h.Join(client, UserRoom(client.userID))
	if client.department != "" {
		h.Join(client, DepartmentRoom(client.department))
	}
	if client.semester != nil {
		h.Join(client, SemesterRoom(*client.semester))
	}
	h.logger.Debug("gateway client connected", zap.String("user_id", client.userID))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	rooms, ok := h.clients[client]
	if ok {
		for room := range rooms {
			if members, exists := h.rooms[room]; exists {
				delete(members, client)
				if len(members) == 0 {
					delete(h.rooms, room)
				}
			}
		}
		delete(h.clients, client)
	}
	h.mu.Unlock()
	if ok {
		close(client.send)
		h.logger.Debug("gateway client disconnected", zap.String("user_id", client.userID))
	}
}

func (h *Hub) deliver(msg broadcast) {
	h.mu.RLock()
	var members []*Client
	if msg.room == "" {
		members = make([]*Client, 0, len(h.clients))
		for client := range h.clients {
			members = append(members, client)
		}
	} else {
		members = make([]*Client, 0, len(h.rooms[msg.room]))
		for client := range h.rooms[msg.room] {
			members = append(members, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range members {
		if client == msg.except {
			continue
		}
		select {
		case client.send <- msg.payload:
		default:
			// Slow consumer. Drop the connection rather than block the hub.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.rooms = make(map[string]map[*Client]struct{})
}
