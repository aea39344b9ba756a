package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/geoseek/internal/broadcast"
	"github.com/mcoot/geoseek/internal/dependencies/clock"
	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/services/registry"
	"github.com/mcoot/geoseek/internal/storage"
)

// Config holds reaper settings
type Config struct {
	// After is how long an ended session stays resident before it is archived
	After time.Duration
	// Interval is how often ended sessions are swept
	Interval time.Duration
}

// Reaper archives and evicts sessions that ended long enough ago
type Reaper struct {
	registry  *registry.Registry
	broadcast *broadcast.Manager
	storage   storage.Storage
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger
}

// New creates a new Reaper
func New(reg *registry.Registry, bc *broadcast.Manager, store storage.Storage, clk clock.Clock, cfg Config, logger *slog.Logger) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Reaper{
		registry:  reg,
		broadcast: bc,
		storage:   store,
		clock:     clk,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "reaper")),
	}
}

// Run sweeps on the configured interval until ctx is cancelled
func (r *Reaper) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("reaper started",
		slog.Duration("after", r.cfg.After),
		slog.Duration("interval", r.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.Chan():
			r.Sweep(ctx)
		}
	}
}

// Sweep archives and drops every session that ended before the cutoff.
// It returns how many sessions were reaped.
func (r *Reaper) Sweep(ctx context.Context) int {
	cutoff := r.clock.Now().Add(-r.cfg.After)
	reaped := 0
	for _, id := range r.registry.EndedBefore(cutoff) {
		if ctx.Err() != nil {
			break
		}
		if err := r.reap(ctx, id); err != nil {
			r.logger.Error("failed to reap session",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
			continue
		}
		reaped++
	}
	if reaped > 0 {
		r.logger.Info("ended sessions reaped", slog.Int("count", reaped))
	}
	return reaped
}

func (r *Reaper) reap(ctx context.Context, id model.SessionID) error {
	var summary *model.SessionSummary
	err := r.registry.Mutate(id, func(s *model.Session) error {
		summary = s.Summarize()
		return nil
	})
	if err != nil {
		return err
	}

	// Archive first; a failed save leaves the session for the next sweep
	if err := r.storage.SaveSummary(ctx, summary); err != nil {
		return fmt.Errorf("archive summary: %w", err)
	}
	if _, err := r.registry.Drop(id); err != nil {
		return fmt.Errorf("drop session: %w", err)
	}
	r.broadcast.Remove(id)
	return nil
}
