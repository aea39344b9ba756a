package broadcast

import (
	"log/slog"
	"sync"

	"github.com/mcoot/geoseek/internal/model"
)

// Subscriber receives encoded event frames for the sessions it is subscribed to
type Subscriber interface {
	ID() string
	// Deliver queues msg without blocking and reports whether it was accepted
	Deliver(msg []byte) bool
}

// Hub fans events out to the subscribers of a single session
type Hub struct {
	sessionID   model.SessionID
	subscribers map[string]Subscriber
	mu          sync.RWMutex
	logger      *slog.Logger
}

// NewHub creates a new Hub for a session
func NewHub(sessionID model.SessionID, logger *slog.Logger) *Hub {
	return &Hub{
		sessionID:   sessionID,
		subscribers: make(map[string]Subscriber),
		logger:      logger.With(slog.String("session_id", string(sessionID))),
	}
}

// Add subscribes sub to the hub; adding twice is a no-op
func (h *Hub) Add(sub Subscriber) {
	h.mu.Lock()
	h.subscribers[sub.ID()] = sub
	count := len(h.subscribers)
	h.mu.Unlock()
	h.logger.Debug("subscriber added",
		slog.String("subscriber_id", sub.ID()),
		slog.Int("total_subscribers", count))
}

// Remove unsubscribes sub and reports whether it was subscribed
func (h *Hub) Remove(sub Subscriber) bool {
	h.mu.Lock()
	_, ok := h.subscribers[sub.ID()]
	delete(h.subscribers, sub.ID())
	count := len(h.subscribers)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("subscriber removed",
			slog.String("subscriber_id", sub.ID()),
			slog.Int("total_subscribers", count))
	}
	return ok
}

// Broadcast delivers message to every subscriber. A subscriber whose buffer is
// full misses it.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sentCount := 0
	droppedCount := 0
	for id, sub := range h.subscribers {
		if sub.Deliver(message) {
			sentCount++
			continue
		}
		droppedCount++
		h.logger.Warn("message dropped - subscriber buffer full",
			slog.String("subscriber_id", id))
	}
	if droppedCount > 0 {
		h.logger.Warn("broadcast partial failure",
			slog.Int("sent", sentCount),
			slog.Int("dropped", droppedCount))
	}
}

// SubscriberCount returns the number of subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
