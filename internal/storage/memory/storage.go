package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	summaries map[model.SessionID]*model.SessionSummary
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		summaries: make(map[model.SessionID]*model.SessionSummary),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Summary operations

func (s *Storage) SaveSummary(ctx context.Context, summary *model.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.ID] = summary
	return nil
}

func (s *Storage) GetSummary(ctx context.Context, id model.SessionID) (*model.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[id]
	if !ok {
		return nil, model.ErrSummaryNotFound
	}
	return summary, nil
}

func (s *Storage) ListSummaries(ctx context.Context, limit int) ([]*model.SessionSummary, error) {
	s.mu.RLock()
	out := make([]*model.SessionSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		out = append(out, summary)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EndedAt.Equal(out[j].EndedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}
