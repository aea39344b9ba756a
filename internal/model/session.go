package model

import (
	"sort"
	"time"
)

// SessionID identifies a session; derived from its name and play-area geometry
type SessionID string

// Phase represents where a session is in its lifecycle
type Phase string

const (
	PhasePending Phase = "pending" // Created, waiting to start
	PhaseActive  Phase = "active"  // Started, end countdown running
	PhaseEnded   Phase = "ended"   // End countdown reached zero
)

// StartPolicy decides who has authority to begin a session
type StartPolicy string

const (
	// StartManual sessions are started by the admin; the start countdown is advisory
	StartManual StartPolicy = "manual"
	// StartAuto sessions start when the start countdown reaches zero
	StartAuto StartPolicy = "auto"
)

// Valid reports whether p is a known start policy
func (p StartPolicy) Valid() bool {
	return p == StartManual || p == StartAuto
}

// LateJoinPolicy decides whether active sessions accept new players
type LateJoinPolicy string

const (
	LateJoinReject LateJoinPolicy = "reject"
	LateJoinAllow  LateJoinPolicy = "allow"
)

// Valid reports whether p is a known late join policy
func (p LateJoinPolicy) Valid() bool {
	return p == LateJoinReject || p == LateJoinAllow
}

// Session is one round of the game, played inside a circle on the map
type Session struct {
	ID         SessionID
	// Generation tells apart sessions re-created under the same ID
	Generation uint64

	Name          string
	IsPrivate     bool
	PasswordHash  []byte
	AdminPlayerID PlayerID

	CenterLongitude float64
	CenterLatitude  float64
	Radius          float64 // meters

	Roster  []*Player // join order
	Seekers map[PlayerID]bool

	SecondsUntilStart int
	SecondsUntilEnd   int
	Phase             Phase
	StartPolicy       StartPolicy

	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
}

// CreateParams holds the validated-on-create fields of a new session
type CreateParams struct {
	Name        string
	IsPrivate   bool
	Password    string
	DisplayName string

	// Coordinates are pointers so a missing value can be told apart from zero
	Longitude *float64
	Latitude  *float64
	Radius    *float64

	StartDelaySeconds int
	DurationSeconds   int
	StartPolicy       StartPolicy
}

// GetPlayer returns the roster entry with the given ID, or nil if not found
func (s *Session) GetPlayer(id PlayerID) *Player {
	for _, p := range s.Roster {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// RemovePlayer drops a player from the roster and the seeker set
func (s *Session) RemovePlayer(id PlayerID) bool {
	for i, p := range s.Roster {
		if p.ID == id {
			s.Roster = append(s.Roster[:i], s.Roster[i+1:]...)
			delete(s.Seekers, id)
			return true
		}
	}
	return false
}

// ReleasePlayer drops one connection's hold on a player. The player leaves the
// roster once no connections remain; removed reports whether that happened.
// Ended sessions keep their final roster.
func (s *Session) ReleasePlayer(id PlayerID) (player Player, removed bool, err error) {
	p := s.GetPlayer(id)
	if p == nil {
		return Player{}, false, ErrPlayerNotFound
	}
	if p.Connections > 0 {
		p.Connections--
	}
	if p.Connections == 0 && s.Phase != PhaseEnded {
		removed = s.RemovePlayer(id)
	}
	return *p, removed, nil
}

// SetSeeker marks or unmarks a rostered player as a seeker
func (s *Session) SetSeeker(id PlayerID, isSeeker bool) bool {
	p := s.GetPlayer(id)
	if p == nil {
		return false
	}
	p.IsSeeker = isSeeker
	if isSeeker {
		s.Seekers[id] = true
	} else {
		delete(s.Seekers, id)
	}
	return true
}

// Timed reports whether the scheduler still advances this session
func (s *Session) Timed() bool {
	return s.Phase == PhasePending || s.Phase == PhaseActive
}

// SeekerIDs returns the seeker set in a stable order
func (s *Session) SeekerIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(s.Seekers))
	for id := range s.Seekers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SessionSnapshot is the broadcastable view of a session. It never carries the password.
type SessionSnapshot struct {
	ID                SessionID   `json:"id"`
	Name              string      `json:"name"`
	IsPrivate         bool        `json:"isPrivate"`
	AdminPlayerID     PlayerID    `json:"adminPlayerId"`
	CenterLongitude   float64     `json:"centerLongitude"`
	CenterLatitude    float64     `json:"centerLatitude"`
	Radius            float64     `json:"radius"`
	Roster            []Player    `json:"roster"`
	SeekerIDs         []PlayerID  `json:"seekerIds"`
	SecondsUntilStart int         `json:"secondsUntilStart"`
	SecondsUntilEnd   int         `json:"secondsUntilEnd"`
	Phase             Phase       `json:"phase"`
	StartPolicy       StartPolicy `json:"startPolicy"`
}

// Snapshot copies the session into its wire view
func (s *Session) Snapshot() SessionSnapshot {
	roster := make([]Player, len(s.Roster))
	for i, p := range s.Roster {
		roster[i] = *p
	}
	return SessionSnapshot{
		ID:                s.ID,
		Name:              s.Name,
		IsPrivate:         s.IsPrivate,
		AdminPlayerID:     s.AdminPlayerID,
		CenterLongitude:   s.CenterLongitude,
		CenterLatitude:    s.CenterLatitude,
		Radius:            s.Radius,
		Roster:            roster,
		SeekerIDs:         s.SeekerIDs(),
		SecondsUntilStart: s.SecondsUntilStart,
		SecondsUntilEnd:   s.SecondsUntilEnd,
		Phase:             s.Phase,
		StartPolicy:       s.StartPolicy,
	}
}

// SummaryPlayer is a roster entry as recorded in a session summary
type SummaryPlayer struct {
	ID          PlayerID `json:"id"`
	DisplayName string   `json:"displayName"`
	IsSeeker    bool     `json:"isSeeker"`
}

// SessionSummary is the archived record of an ended session
type SessionSummary struct {
	ID              SessionID       `json:"id"`
	Name            string          `json:"name"`
	AdminPlayerID   PlayerID        `json:"adminPlayerId"`
	CenterLongitude float64         `json:"centerLongitude"`
	CenterLatitude  float64         `json:"centerLatitude"`
	Radius          float64         `json:"radius"`
	Players         []SummaryPlayer `json:"players"`
	SeekerIDs       []PlayerID      `json:"seekerIds"`
	CreatedAt       time.Time       `json:"createdAt"`
	StartedAt       time.Time       `json:"startedAt"`
	EndedAt         time.Time       `json:"endedAt"`
}

// Summarize builds the archive record for a session
func (s *Session) Summarize() *SessionSummary {
	players := make([]SummaryPlayer, len(s.Roster))
	for i, p := range s.Roster {
		players[i] = SummaryPlayer{ID: p.ID, DisplayName: p.DisplayName, IsSeeker: p.IsSeeker}
	}
	return &SessionSummary{
		ID:              s.ID,
		Name:            s.Name,
		AdminPlayerID:   s.AdminPlayerID,
		CenterLongitude: s.CenterLongitude,
		CenterLatitude:  s.CenterLatitude,
		Radius:          s.Radius,
		Players:         players,
		SeekerIDs:       s.SeekerIDs(),
		CreatedAt:       s.CreatedAt,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
	}
}

// Start moves a pending session to active
func (s *Session) Start(now time.Time) error {
	if s.Phase != PhasePending {
		return ErrNotPending
	}
	s.Phase = PhaseActive
	s.StartedAt = now
	return nil
}

// End moves an active session to ended
func (s *Session) End(now time.Time) {
	if s.Phase != PhaseActive {
		return
	}
	s.Phase = PhaseEnded
	s.EndedAt = now
}
