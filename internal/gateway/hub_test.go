package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhive/studyhive-api/internal/models"
)

func testClient(userID, department string, semester *int) *Client {
	return &Client{
		send:       make(chan []byte, 8),
		userID:     userID,
		role:       models.RoleStudent,
		department: department,
		semester:   semester,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHubAssignsCohortRoomsOnRegister(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	semester := 3
	client := testClient("u1", "CSE", &semester)
	hub.register <- client

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	assert.Equal(t, 1, hub.RoomSize(UserRoom("u1")))
	assert.Equal(t, 1, hub.RoomSize(DepartmentRoom("CSE")))
	assert.Equal(t, 1, hub.RoomSize(SemesterRoom(3)))
}

func TestHubEmitReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	semA, semB := 3, 4
	inRoom := testClient("u1", "CSE", &semA)
	outOfRoom := testClient("u2", "CSE", &semB)
	hub.register <- inRoom
	hub.register <- outOfRoom
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Emit(SemesterRoom(3), models.EventNotification, models.Notification{UserID: "u1", Title: "hello"})

	select {
	case payload := <-inRoom.send:
		var envelope Envelope
		require.NoError(t, json.Unmarshal(payload, &envelope))
		assert.Equal(t, models.EventNotification, envelope.Event)
	case <-time.After(time.Second):
		t.Fatal("expected event for semester room member")
	}

	select {
	case <-outOfRoom.send:
		t.Fatal("event leaked outside the room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubEmitAllReachesEveryClient(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	semA, semB := 1, 7
	first := testClient("u1", "CSE", &semA)
	second := testClient("u2", "ECE", &semB)
	hub.register <- first
	hub.register <- second
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.EmitAll(models.EventNewResource, models.NewResourceEvent{Notification: "placement drive material"})

	for _, client := range []*Client{first, second} {
		select {
		case payload := <-client.send:
			var envelope Envelope
			require.NoError(t, json.Unmarshal(payload, &envelope))
			assert.Equal(t, models.EventNewResource, envelope.Event)
		case <-time.After(time.Second):
			t.Fatalf("client %s missed the broadcast", client.userID)
		}
	}
}

func TestHubEmitExceptSkipsSender(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	sender := testClient("u1", "CSE", nil)
	peer := testClient("u2", "CSE", nil)
	hub.register <- sender
	hub.register <- peer
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.Join(sender, ResourceRoom("r1"))
	hub.Join(peer, ResourceRoom("r1"))

	hub.EmitExcept(ResourceRoom("r1"), models.EventResourceUpdated, models.ResourceUpdatedEvent{
		ResourceID: "r1",
		UserID:     "u1",
	}, sender)

	select {
	case payload := <-peer.send:
		var envelope Envelope
		require.NoError(t, json.Unmarshal(payload, &envelope))
		assert.Equal(t, models.EventResourceUpdated, envelope.Event)
	case <-time.After(time.Second):
		t.Fatal("peer did not receive the relayed update")
	}

	select {
	case <-sender.send:
		t.Fatal("update echoed back to its sender")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubResourceRoomJoinLeave(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := testClient("u1", "ECE", nil)
	hub.register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Join(client, ResourceRoom("r1"))
	assert.Equal(t, 1, hub.RoomSize(ResourceRoom("r1")))

	hub.Leave(client, ResourceRoom("r1"))
	assert.Equal(t, 0, hub.RoomSize(ResourceRoom("r1")))
}

func TestHubUnregisterCleansRooms(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	semester := 5
	client := testClient("u1", "MECH", &semester)
	hub.register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
	assert.Equal(t, 0, hub.RoomSize(UserRoom("u1")))
	assert.Equal(t, 0, hub.RoomSize(SemesterRoom(5)))
}

func TestEmitHelpersPanicWithoutInit(t *testing.T) {
	old := defaultHub
	defaultHub = nil
	defer func() { defaultHub = old }()

	assert.Panics(t, func() {
		EmitNewResource(SemesterRoom(1), models.NewResourceEvent{})
	})
	assert.Panics(t, func() {
		EmitResourceInteraction(ResourceRoom("r1"), models.ResourceInteractionEvent{})
	})
}
