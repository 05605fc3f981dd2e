package models

import "encoding/json"

// Realtime event names carried over the websocket gateway. Servers emit
// them; clients subscribe by name.
const (
	EventNewResource         = "new-resource"
	EventResourceInteraction = "resource-interaction"
	EventResourceUpdated     = "resource-updated"
	EventNotification        = "notification"
)

// NewResourceEvent announces a freshly uploaded resource to its cohort.
type NewResourceEvent struct {
	Resource     *Resource `json:"resource"`
	Notification string    `json:"notification"`
}

// ResourceInteractionEvent carries live counter updates for one resource.
type ResourceInteractionEvent struct {
	ResourceID string        `json:"resource_id"`
	Kind       string        `json:"kind"`
	Stats      ResourceStats `json:"stats"`
	ActorID    string        `json:"actor_id,omitempty"`
}

// RoomJoinRequest is the inbound payload for joining or leaving a room.
type RoomJoinRequest struct {
	Room string `json:"room"`
}

// ResourceUpdateRequest is the inbound payload for relaying an edit to the
// other viewers of a resource room. The payload is passed through opaque.
type ResourceUpdateRequest struct {
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// ResourceUpdatedEvent is the relayed form of a resource update, delivered
// to every room member except the sender.
type ResourceUpdatedEvent struct {
	ResourceID string          `json:"resource_id"`
	UserID     string          `json:"user_id"`
	Payload    json.RawMessage `json:"payload"`
}
