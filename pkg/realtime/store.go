package realtime

import (
	"encoding/json"
	"sync"

	"github.com/studyhive/studyhive-api/internal/models"
)

// Store keeps a local view of live resource counters and the unread
// notification feed, updated from gateway events. UI code renders from
// the snapshot; the store absorbs the event stream.
type Store struct {
	mu            sync.RWMutex
	stats         map[string]models.ResourceStats
	notifications []models.Notification
	maxFeed       int
}

// NewStore builds a store retaining at most maxFeed notifications.
func NewStore(maxFeed int) *Store {
	if maxFeed <= 0 {
		maxFeed = 100
	}
	return &Store{
		stats:   make(map[string]models.ResourceStats),
		maxFeed: maxFeed,
	}
}

// Bind subscribes the store to the client's event stream.
func (s *Store) Bind(client *Client) {
	client.On(models.EventResourceInteraction, s.onInteraction)
	client.On(models.EventNotification, s.onNotification)
	client.On(models.EventNewResource, s.onNewResource)
}

// SeedStats primes the store with counters fetched over HTTP, so the
// first render does not wait for an event.
func (s *Store) SeedStats(resourceID string, stats models.ResourceStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[resourceID] = stats
}

// Stats returns the latest counters for a resource.
func (s *Store) Stats(resourceID string) (models.ResourceStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[resourceID]
	return stats, ok
}

// Notifications returns the buffered feed, newest first.
func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *Store) onInteraction(data json.RawMessage) {
	var event models.ResourceInteractionEvent
	if err := json.Unmarshal(data, &event); err != nil || event.ResourceID == "" {
		return
	}
	s.mu.Lock()
	s.stats[event.ResourceID] = event.Stats
	s.mu.Unlock()
}

func (s *Store) onNotification(data json.RawMessage) {
	var notification models.Notification
	if err := json.Unmarshal(data, &notification); err != nil {
		return
	}
	s.mu.Lock()
	s.notifications = append([]models.Notification{notification}, s.notifications...)
	if len(s.notifications) > s.maxFeed {
		s.notifications = s.notifications[:s.maxFeed]
	}
	s.mu.Unlock()
}

func (s *Store) onNewResource(data json.RawMessage) {
	var event models.NewResourceEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Resource == nil {
		return
	}
	s.mu.Lock()
	s.stats[event.Resource.ID] = event.Resource.Stats
	s.mu.Unlock()
}
