package model

import "encoding/json"

// EventType names a realtime message
type EventType string

// Inbound events (connection to server)
const (
	EventJoin           EventType = "join"
	EventStart          EventType = "start"
	EventUpdatePosition EventType = "updatePosition"
	EventSetSeeker      EventType = "setSeeker"
)

// Outbound events scoped to a single connection
const (
	EventJoinError     EventType = "joinError"
	EventStartError    EventType = "startError"
	EventRoleError     EventType = "roleError"
	EventSessionJoined EventType = "sessionJoined"
	EventError         EventType = "error"
)

// Outbound events broadcast to every subscriber of a session
const (
	EventPlayerJoined   EventType = "playerJoined"
	EventSessionStarted EventType = "sessionStarted"
	EventPositionUpdate EventType = "positionUpdate"
	EventPlayerLeft     EventType = "playerLeft"
	EventTimeUpdate     EventType = "timeUpdate"
	EventSessionEnded   EventType = "sessionEnded"
	EventRoleUpdate     EventType = "roleUpdate"
)

// Envelope is the wire frame for every realtime message
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload is sent by a connection to bind itself to a session
type JoinPayload struct {
	SessionID   SessionID `json:"sessionId"`
	DisplayName string    `json:"displayName"`
	Longitude   *float64  `json:"longitude"`
	Latitude    *float64  `json:"latitude"`
	Password    string    `json:"password,omitempty"`
}

// UpdatePositionPayload carries a player's latest reported position
type UpdatePositionPayload struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// SetSeekerPayload assigns or clears the seeker role
type SetSeekerPayload struct {
	PlayerID PlayerID `json:"playerId"`
	IsSeeker bool     `json:"isSeeker"`
}

// ErrorPayload is the body of every connection-scoped error event
type ErrorPayload struct {
	Error string `json:"error"`
}

// PlayerJoinedPayload announces a new roster entry
type PlayerJoinedPayload struct {
	DisplayName string  `json:"displayName"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
}

// SessionJoinedPayload is sent only to the joining connection
type SessionJoinedPayload struct {
	Session SessionSnapshot `json:"session"`
	Player  Player          `json:"player"`
}

// PositionUpdatePayload broadcasts a player's new position
type PositionUpdatePayload struct {
	PlayerID  PlayerID `json:"playerId"`
	Longitude float64  `json:"longitude"`
	Latitude  float64  `json:"latitude"`
}

// PlayerLeftPayload announces that a player left the roster
type PlayerLeftPayload struct {
	DisplayName string `json:"displayName"`
}

// TimeUpdatePayload carries the full session after a tick
type TimeUpdatePayload struct {
	Session SessionSnapshot `json:"session"`
}

// RoleUpdatePayload broadcasts a seeker assignment change
type RoleUpdatePayload struct {
	PlayerID PlayerID `json:"playerId"`
	IsSeeker bool     `json:"isSeeker"`
}

// EmptyPayload is used by events without data
type EmptyPayload struct{}
