package storage

import (
	"context"

	"github.com/mcoot/geoseek/internal/model"
)

// Storage defines the interface for archived session data.
// Live sessions are never persisted; only summaries of ended ones.
type Storage interface {
	// Summary operations
	SaveSummary(ctx context.Context, summary *model.SessionSummary) error
	GetSummary(ctx context.Context, id model.SessionID) (*model.SessionSummary, error)
	// ListSummaries returns up to limit summaries, most recently ended first.
	// A non-positive limit returns all of them.
	ListSummaries(ctx context.Context, limit int) ([]*model.SessionSummary, error)

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
}
