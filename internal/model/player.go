package model

// PlayerID identifies a player within one session
type PlayerID string

// Player is a participant in a session; owned by the session's roster
type Player struct {
	ID          PlayerID `json:"id"`
	DisplayName string   `json:"displayName"`
	Longitude   float64  `json:"longitude"`
	Latitude    float64  `json:"latitude"`
	IsSeeker    bool     `json:"isSeeker"`

	// Connections counts live connections bound to this player.
	// The player leaves the roster when it drops to zero.
	Connections int `json:"-"`
}
