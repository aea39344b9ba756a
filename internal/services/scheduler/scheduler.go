package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/geoseek/internal/broadcast"
	"github.com/mcoot/geoseek/internal/dependencies/clock"
	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/services/registry"
)

// DefaultInterval is the countdown tick period
const DefaultInterval = time.Second

// Scheduler advances session countdowns once per tick
type Scheduler struct {
	registry  *registry.Registry
	broadcast *broadcast.Manager
	clock     clock.Clock
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. A non-positive interval uses DefaultInterval.
func New(reg *registry.Registry, bc *broadcast.Manager, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		registry:  reg,
		broadcast: bc,
		clock:     clk,
		interval:  interval,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Run ticks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.Chan():
			s.Tick(ctx)
		}
	}
}

// Tick advances every pending and active session by one step
func (s *Scheduler) Tick(ctx context.Context) {
	for _, id := range s.registry.TimedSessionIDs() {
		if ctx.Err() != nil {
			return
		}
		if err := s.advance(id); err != nil {
			s.logger.Error("failed to advance session",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Scheduler) advance(id model.SessionID) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic advancing session: %v", r)
		}
	}()

	now := s.clock.Now()
	return s.registry.Mutate(id, func(sess *model.Session) error {
		switch sess.Phase {
		case model.PhasePending:
			s.advancePending(sess, now)
		case model.PhaseActive:
			s.advanceActive(sess, now)
		}
		return nil
	})
}

// advancePending counts down to the start. Manual sessions wait at zero for the admin.
func (s *Scheduler) advancePending(sess *model.Session, now time.Time) {
	if sess.SecondsUntilStart > 0 {
		sess.SecondsUntilStart--
	}
	s.broadcast.Publish(sess.ID, model.EventTimeUpdate, model.TimeUpdatePayload{Session: sess.Snapshot()})

	if sess.SecondsUntilStart > 0 || sess.StartPolicy != model.StartAuto {
		return
	}
	if err := sess.Start(now); err != nil {
		return
	}
	s.broadcast.Publish(sess.ID, model.EventSessionStarted, nil)
	s.logger.Info("session started by countdown", slog.String("session_id", string(sess.ID)))
}

func (s *Scheduler) advanceActive(sess *model.Session, now time.Time) {
	if sess.SecondsUntilEnd > 0 {
		sess.SecondsUntilEnd--
	}
	s.broadcast.Publish(sess.ID, model.EventTimeUpdate, model.TimeUpdatePayload{Session: sess.Snapshot()})

	if sess.SecondsUntilEnd > 0 {
		return
	}
	sess.End(now)
	s.broadcast.Publish(sess.ID, model.EventSessionEnded, nil)
	s.logger.Info("session ended", slog.String("session_id", string(sess.ID)))
}
