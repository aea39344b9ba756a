package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/geoseek/internal/model"
)

// Manager owns one Hub per session and encodes events into envelopes
type Manager struct {
	hubs   map[model.SessionID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewManager creates a new Manager
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		hubs:   make(map[model.SessionID]*Hub),
		logger: logger.With(slog.String("component", "broadcast")),
	}
}

// Encode builds the wire frame for an event
func Encode(event model.EventType, payload any) ([]byte, error) {
	if payload == nil {
		payload = model.EmptyPayload{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(model.Envelope{Type: event, Payload: raw})
}

// Subscribe adds sub to the session's hub, creating the hub if needed
func (m *Manager) Subscribe(sub Subscriber, sessionID model.SessionID) {
	m.getOrCreateHub(sessionID).Add(sub)
}

// Unsubscribe removes sub from the session's hub
func (m *Manager) Unsubscribe(sub Subscriber, sessionID model.SessionID) {
	if hub := m.Hub(sessionID); hub != nil {
		hub.Remove(sub)
	}
}

// Publish sends an event to every subscriber of the session. Sessions without
// a hub are skipped.
func (m *Manager) Publish(sessionID model.SessionID, event model.EventType, payload any) {
	hub := m.Hub(sessionID)
	if hub == nil {
		return
	}
	msg, err := Encode(event, payload)
	if err != nil {
		m.logger.Error("failed to encode event",
			slog.String("session_id", string(sessionID)),
			slog.String("event", string(event)),
			slog.String("error", err.Error()))
		return
	}
	hub.Broadcast(msg)
}

// Emit sends an event to a single subscriber
func (m *Manager) Emit(sub Subscriber, event model.EventType, payload any) {
	msg, err := Encode(event, payload)
	if err != nil {
		m.logger.Error("failed to encode event",
			slog.String("subscriber_id", sub.ID()),
			slog.String("event", string(event)),
			slog.String("error", err.Error()))
		return
	}
	if !sub.Deliver(msg) {
		m.logger.Warn("message dropped - subscriber buffer full",
			slog.String("subscriber_id", sub.ID()),
			slog.String("event", string(event)))
	}
}

func (m *Manager) getOrCreateHub(sessionID model.SessionID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[sessionID]; ok {
		return hub
	}
	hub := NewHub(sessionID, m.logger)
	m.hubs[sessionID] = hub
	return hub
}

// Hub returns the hub for a session, or nil if it doesn't exist
func (m *Manager) Hub(sessionID model.SessionID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[sessionID]
}

// Remove discards the session's hub
func (m *Manager) Remove(sessionID model.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.hubs[sessionID]; ok {
		delete(m.hubs, sessionID)
		m.logger.Info("hub removed", slog.String("session_id", string(sessionID)))
	}
}

// SubscriberCount returns the number of subscribers of a session
func (m *Manager) SubscriberCount(sessionID model.SessionID) int {
	if hub := m.Hub(sessionID); hub != nil {
		return hub.SubscriberCount()
	}
	return 0
}
