package registry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/geoseek/internal/dependencies/clock"
	"github.com/mcoot/geoseek/internal/model"
)

// Config holds registry settings
type Config struct {
	// DefaultStartPolicy applies when a create request does not name one
	DefaultStartPolicy model.StartPolicy
	// PasswordCost is the bcrypt cost used for private session passwords
	PasswordCost int
}

// DefaultConfig returns the default registry configuration
func DefaultConfig() Config {
	return Config{
		DefaultStartPolicy: model.StartManual,
		PasswordCost:       bcrypt.DefaultCost,
	}
}

// entry pairs a session with its exclusive mutation gate
type entry struct {
	mu      sync.Mutex
	session *model.Session
	dropped bool
}

// Registry owns every live session, split into pending and active collections.
//
// Each session is guarded by its own gate; the collection lock only covers
// insertion, moves and removal. Lock order is gate first, then collections.
type Registry struct {
	mu      sync.RWMutex
	pending map[model.SessionID]*entry
	active  map[model.SessionID]*entry
	created uint64

	clock  clock.Clock
	cfg    Config
	logger *slog.Logger
}

// New creates an empty Registry
func New(clk clock.Clock, cfg Config, logger *slog.Logger) *Registry {
	if !cfg.DefaultStartPolicy.Valid() {
		cfg.DefaultStartPolicy = model.StartManual
	}
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = bcrypt.DefaultCost
	}
	return &Registry{
		pending: make(map[model.SessionID]*entry),
		active:  make(map[model.SessionID]*entry),
		clock:   clk,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "registry")),
	}
}

// Create validates params and registers a new pending session with the
// creator as its admin and first roster entry
func (r *Registry) Create(ctx context.Context, params model.CreateParams) (model.SessionID, error) {
	if err := validate(&params); err != nil {
		return "", err
	}
	if params.StartPolicy == "" {
		params.StartPolicy = r.cfg.DefaultStartPolicy
	}

	var hash []byte
	if params.IsPrivate {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(params.Password), r.cfg.PasswordCost)
		if err != nil {
			if errors.Is(err, bcrypt.ErrPasswordTooLong) {
				return "", model.ErrInvalidFields
			}
			return "", err
		}
	}

	id := SessionIDFor(params.Name, *params.Longitude, *params.Latitude, *params.Radius)
	adminID := PlayerIDFor(params.DisplayName, id)
	now := r.clock.Now()

	session := &model.Session{
		ID:              id,
		Name:            params.Name,
		IsPrivate:       params.IsPrivate,
		PasswordHash:    hash,
		AdminPlayerID:   adminID,
		CenterLongitude: *params.Longitude,
		CenterLatitude:  *params.Latitude,
		Radius:          *params.Radius,
		Roster: []*model.Player{
			{
				ID:          adminID,
				DisplayName: params.DisplayName,
				Longitude:   *params.Longitude,
				Latitude:    *params.Latitude,
			},
		},
		Seekers:           make(map[model.PlayerID]bool),
		SecondsUntilStart: params.StartDelaySeconds,
		SecondsUntilEnd:   params.DurationSeconds,
		Phase:             model.PhasePending,
		StartPolicy:       params.StartPolicy,
		CreatedAt:         now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending[id] != nil || r.active[id] != nil {
		return "", model.ErrSessionExists
	}
	r.created++
	session.Generation = r.created
	r.pending[id] = &entry{session: session}

	r.logger.InfoContext(ctx, "session created",
		slog.String("session_id", string(id)),
		slog.String("name", params.Name),
		slog.String("start_policy", string(params.StartPolicy)),
		slog.Bool("private", params.IsPrivate))

	return id, nil
}

func validate(p *model.CreateParams) error {
	p.Name = strings.TrimSpace(p.Name)
	p.DisplayName = strings.TrimSpace(p.DisplayName)

	if p.Name == "" || p.DisplayName == "" || p.Longitude == nil || p.Latitude == nil || p.Radius == nil {
		return model.ErrMissingFields
	}
	if p.IsPrivate && p.Password == "" {
		return model.ErrMissingPassword
	}
	if p.DurationSeconds <= 0 {
		return model.ErrMissingDuration
	}

	lon, lat, radius := *p.Longitude, *p.Latitude, *p.Radius
	switch {
	case math.IsNaN(lon) || lon < -180 || lon > 180:
		return model.ErrInvalidFields
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return model.ErrInvalidFields
	case math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0:
		return model.ErrInvalidFields
	case p.StartDelaySeconds < 0:
		return model.ErrInvalidFields
	case p.StartPolicy != "" && !p.StartPolicy.Valid():
		return model.ErrInvalidFields
	}
	return nil
}

// lookup finds a session entry in pending, then active
func (r *Registry) lookup(id model.SessionID) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.pending[id]; ok {
		return e
	}
	return r.active[id]
}

// entries copies every entry out from under the collection lock
func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.pending)+len(r.active))
	for _, e := range r.pending {
		out = append(out, e)
	}
	for _, e := range r.active {
		out = append(out, e)
	}
	return out
}

// Find returns a snapshot of the session, looking in pending then active
func (r *Registry) Find(id model.SessionID) (model.SessionSnapshot, bool) {
	e := r.lookup(id)
	if e == nil {
		return model.SessionSnapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped {
		return model.SessionSnapshot{}, false
	}
	return e.session.Snapshot(), true
}

// Summary returns the archive record of a resident session that has ended
func (r *Registry) Summary(id model.SessionID) (*model.SessionSummary, bool) {
	e := r.lookup(id)
	if e == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped || e.session.Phase != model.PhaseEnded {
		return nil, false
	}
	return e.session.Summarize(), true
}

// Authorize checks a join password. Public sessions accept any password.
func (r *Registry) Authorize(id model.SessionID, password string) error {
	e := r.lookup(id)
	if e == nil {
		return model.ErrSessionNotFound
	}
	// IsPrivate and PasswordHash never change after creation
	if !e.session.IsPrivate {
		return nil
	}
	if bcrypt.CompareHashAndPassword(e.session.PasswordHash, []byte(password)) != nil {
		return model.ErrIncorrectPassword
	}
	return nil
}

// Mutate runs fn with exclusive access to the session. Any phase change made
// by fn is reflected in the collections before the gate is released.
func (r *Registry) Mutate(id model.SessionID, fn func(s *model.Session) error) error {
	e := r.lookup(id)
	if e == nil {
		return model.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped {
		return model.ErrSessionNotFound
	}

	before := e.session.Phase
	defer func() {
		if after := e.session.Phase; after != before {
			r.move(e, before, after)
		}
	}()
	return fn(e.session)
}

// move relocates an entry after a phase change. Caller holds the entry gate.
func (r *Registry) move(e *entry, from, to model.Phase) {
	s := e.session
	if !validTransition(from, to) {
		r.logger.Error("rejected invalid phase transition",
			slog.String("session_id", string(s.ID)),
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		s.Phase = from
		return
	}
	if from != model.PhasePending {
		// active and ended sessions share a collection
		return
	}

	r.mu.Lock()
	delete(r.pending, s.ID)
	r.active[s.ID] = e
	r.mu.Unlock()

	r.logger.Info("session promoted", slog.String("session_id", string(s.ID)))
}

func validTransition(from, to model.Phase) bool {
	return (from == model.PhasePending && to == model.PhaseActive) ||
		(from == model.PhaseActive && to == model.PhaseEnded)
}

// Promote moves a pending session to active
func (r *Registry) Promote(id model.SessionID) error {
	now := r.clock.Now()
	return r.Mutate(id, func(s *model.Session) error {
		return s.Start(now)
	})
}

// Drop evicts an ended session and returns its final state
func (r *Registry) Drop(id model.SessionID) (*model.Session, error) {
	e := r.lookup(id)
	if e == nil {
		return nil, model.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped {
		return nil, model.ErrSessionNotFound
	}
	if e.session.Phase != model.PhaseEnded {
		return nil, model.ErrNotPending
	}
	e.dropped = true

	r.mu.Lock()
	delete(r.pending, id)
	delete(r.active, id)
	r.mu.Unlock()

	r.logger.Info("session dropped", slog.String("session_id", string(id)))
	return e.session, nil
}

// TimedSessionIDs returns sessions whose countdowns still run, in no particular order
func (r *Registry) TimedSessionIDs() []model.SessionID {
	var ids []model.SessionID
	for _, e := range r.entries() {
		e.mu.Lock()
		if !e.dropped && e.session.Timed() {
			ids = append(ids, e.session.ID)
		}
		e.mu.Unlock()
	}
	return ids
}

// EndedBefore returns ended sessions whose end time is before cutoff
func (r *Registry) EndedBefore(cutoff time.Time) []model.SessionID {
	var ids []model.SessionID
	for _, e := range r.entries() {
		e.mu.Lock()
		if !e.dropped && e.session.Phase == model.PhaseEnded && e.session.EndedAt.Before(cutoff) {
			ids = append(ids, e.session.ID)
		}
		e.mu.Unlock()
	}
	return ids
}

// List returns snapshots of every resident session
func (r *Registry) List() []model.SessionSnapshot {
	var out []model.SessionSnapshot
	for _, e := range r.entries() {
		e.mu.Lock()
		if !e.dropped {
			out = append(out, e.session.Snapshot())
		}
		e.mu.Unlock()
	}
	return out
}

// Contains reports which collection currently holds the session
func (r *Registry) Contains(id model.SessionID) (inPending, inActive bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, inPending = r.pending[id]
	_, inActive = r.active[id]
	return inPending, inActive
}
