package response

import (
	"github.com/mcoot/geoseek/internal/model"
)

// CreateSessionResponse is the response after creating a session
type CreateSessionResponse struct {
	SessionID model.SessionID `json:"sessionId"`
}

// SessionListing is a joinable session as shown in the session list
type SessionListing struct {
	ID                model.SessionID   `json:"id"`
	Name              string            `json:"name"`
	CenterLongitude   float64           `json:"centerLongitude"`
	CenterLatitude    float64           `json:"centerLatitude"`
	Radius            float64           `json:"radius"`
	PlayerCount       int               `json:"playerCount"`
	Phase             model.Phase       `json:"phase"`
	StartPolicy       model.StartPolicy `json:"startPolicy"`
	SecondsUntilStart int               `json:"secondsUntilStart"`
}

// SessionListingFromSnapshot converts a session snapshot
func SessionListingFromSnapshot(s model.SessionSnapshot) SessionListing {
	return SessionListing{
		ID:                s.ID,
		Name:              s.Name,
		CenterLongitude:   s.CenterLongitude,
		CenterLatitude:    s.CenterLatitude,
		Radius:            s.Radius,
		PlayerCount:       len(s.Roster),
		Phase:             s.Phase,
		StartPolicy:       s.StartPolicy,
		SecondsUntilStart: s.SecondsUntilStart,
	}
}

// SessionList is the response for listing sessions
type SessionList struct {
	Sessions []SessionListing `json:"sessions"`
}

// SummaryList is the response for listing archived sessions
type SummaryList struct {
	Summaries []*model.SessionSummary `json:"summaries"`
}

// Health is the response for the health check
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}
