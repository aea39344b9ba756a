package lifecycle

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/mcoot/geoseek/internal/broadcast"
	"github.com/mcoot/geoseek/internal/dependencies/clock"
	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/services/registry"
)

// ErrClosed is returned by operations on a disconnected connection
var ErrClosed = errors.New("connection closed")

// Config holds connection handling settings
type Config struct {
	// LateJoinPolicy decides whether active sessions accept new players
	LateJoinPolicy model.LateJoinPolicy
}

// Handler binds realtime connections to sessions and applies their events
type Handler struct {
	registry  *registry.Registry
	broadcast *broadcast.Manager
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger
}

// New creates a new Handler
func New(reg *registry.Registry, bc *broadcast.Manager, clk clock.Clock, cfg Config, logger *slog.Logger) *Handler {
	if !cfg.LateJoinPolicy.Valid() {
		cfg.LateJoinPolicy = model.LateJoinReject
	}
	return &Handler{
		registry:  reg,
		broadcast: bc,
		clock:     clk,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "lifecycle")),
	}
}

// Connect starts tracking a new, unbound connection
func (h *Handler) Connect(sub broadcast.Subscriber) *Connection {
	h.logger.Debug("connection opened", slog.String("connection_id", sub.ID()))
	return &Connection{h: h, sub: sub}
}

// Connection is one realtime connection and its optional session binding.
// Operations on a connection are serialized.
type Connection struct {
	h   *Handler
	sub broadcast.Subscriber

	mu         sync.Mutex
	bound      bool
	closed     bool
	sessionID  model.SessionID
	generation uint64
	playerID   model.PlayerID

	disconnectOnce sync.Once
}

// Binding returns the session and player this connection is bound to
func (c *Connection) Binding() (model.SessionID, model.PlayerID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.playerID, c.bound
}

// fail emits err to this connection only and returns it
func (c *Connection) fail(event model.EventType, err error) error {
	c.h.broadcast.Emit(c.sub, event, model.ErrorPayload{Error: err.Error()})
	c.h.logger.Debug("connection event rejected",
		slog.String("connection_id", c.sub.ID()),
		slog.String("event", string(event)),
		slog.String("error", err.Error()))
	return err
}

// mutate runs fn against the bound session. A session that was dropped, or
// replaced by a new one under the same ID, unbinds the connection and
// reports ErrSessionNotFound. Caller holds c.mu.
func (c *Connection) mutate(fn func(s *model.Session) error) error {
	err := c.h.registry.Mutate(c.sessionID, func(s *model.Session) error {
		if s.Generation != c.generation {
			return model.ErrSessionNotFound
		}
		return fn(s)
	})
	if errors.Is(err, model.ErrSessionNotFound) {
		c.unbind()
	}
	return err
}

// unbind clears the binding. Caller holds c.mu.
func (c *Connection) unbind() {
	c.h.broadcast.Unsubscribe(c.sub, c.sessionID)
	c.bound = false
	c.sessionID = ""
	c.generation = 0
	c.playerID = ""
}

func validCoordinates(longitude, latitude float64) bool {
	return !math.IsNaN(longitude) && !math.IsNaN(latitude) &&
		longitude >= -180 && longitude <= 180 &&
		latitude >= -90 && latitude <= 90
}

// Join binds the connection to a session, adding the player to its roster.
// Failures are emitted as joinError and leave the connection unbound.
func (c *Connection) Join(p model.JoinPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.bound {
		return c.fail(model.EventJoinError, model.ErrAlreadyJoined)
	}

	displayName := strings.TrimSpace(p.DisplayName)
	if p.SessionID == "" || displayName == "" || p.Longitude == nil || p.Latitude == nil {
		return c.fail(model.EventJoinError, model.ErrMissingFields)
	}
	longitude, latitude := *p.Longitude, *p.Latitude
	if !validCoordinates(longitude, latitude) {
		return c.fail(model.EventJoinError, model.ErrInvalidFields)
	}

	if err := c.h.registry.Authorize(p.SessionID, p.Password); err != nil {
		return c.fail(model.EventJoinError, err)
	}

	playerID := registry.PlayerIDFor(displayName, p.SessionID)
	var generation uint64
	err := c.h.registry.Mutate(p.SessionID, func(s *model.Session) error {
		switch s.Phase {
		case model.PhaseEnded:
			return model.ErrSessionEnded
		case model.PhaseActive:
			if c.h.cfg.LateJoinPolicy != model.LateJoinAllow {
				return model.ErrAlreadyStarted
			}
		}

		player := s.GetPlayer(playerID)
		if player != nil && player.DisplayName != displayName {
			return model.ErrPlayerIDTaken
		}
		if player == nil {
			player = &model.Player{
				ID:          playerID,
				DisplayName: displayName,
				Longitude:   longitude,
				Latitude:    latitude,
			}
			s.Roster = append(s.Roster, player)
		}
		player.Connections++

		c.h.broadcast.Subscribe(c.sub, s.ID)
		c.h.broadcast.Publish(s.ID, model.EventPlayerJoined, model.PlayerJoinedPayload{
			DisplayName: displayName,
			Longitude:   longitude,
			Latitude:    latitude,
		})
		c.h.broadcast.Emit(c.sub, model.EventSessionJoined, model.SessionJoinedPayload{
			Session: s.Snapshot(),
			Player:  *player,
		})
		generation = s.Generation
		return nil
	})
	if err != nil {
		return c.fail(model.EventJoinError, err)
	}

	c.bound = true
	c.sessionID = p.SessionID
	c.generation = generation
	c.playerID = playerID

	c.h.logger.Info("player joined",
		slog.String("connection_id", c.sub.ID()),
		slog.String("session_id", string(p.SessionID)),
		slog.String("player_id", string(playerID)))
	return nil
}

// Start begins a manual-start session. Only the admin may start it.
func (c *Connection) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.bound {
		return c.fail(model.EventStartError, model.ErrNotJoined)
	}

	now := c.h.clock.Now()
	sessionID, playerID := c.sessionID, c.playerID
	err := c.mutate(func(s *model.Session) error {
		if s.AdminPlayerID != c.playerID {
			return model.ErrNotAdmin
		}
		if s.Phase != model.PhasePending {
			return model.ErrAlreadyStarted
		}
		if s.StartPolicy == model.StartAuto {
			return model.ErrAutoStart
		}
		if err := s.Start(now); err != nil {
			return err
		}
		c.h.broadcast.Publish(s.ID, model.EventSessionStarted, nil)
		return nil
	})
	if err != nil {
		return c.fail(model.EventStartError, err)
	}

	c.h.logger.Info("session started by admin",
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(playerID)))
	return nil
}

// UpdatePosition records the bound player's position and broadcasts it
func (c *Connection) UpdatePosition(longitude, latitude float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.bound {
		return c.fail(model.EventError, model.ErrNotJoined)
	}
	if !validCoordinates(longitude, latitude) {
		return c.fail(model.EventError, model.ErrInvalidFields)
	}

	err := c.mutate(func(s *model.Session) error {
		player := s.GetPlayer(c.playerID)
		if player == nil {
			return model.ErrPlayerNotFound
		}
		player.Longitude = longitude
		player.Latitude = latitude
		c.h.broadcast.Publish(s.ID, model.EventPositionUpdate, model.PositionUpdatePayload{
			PlayerID:  player.ID,
			Longitude: longitude,
			Latitude:  latitude,
		})
		return nil
	})
	if err != nil {
		return c.fail(model.EventError, err)
	}
	return nil
}

// SetSeeker assigns or clears the seeker role of a rostered player. Admin only.
func (c *Connection) SetSeeker(playerID model.PlayerID, isSeeker bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !c.bound {
		return c.fail(model.EventRoleError, model.ErrNotJoined)
	}

	err := c.mutate(func(s *model.Session) error {
		if s.AdminPlayerID != c.playerID {
			return model.ErrNotAdmin
		}
		if s.Phase == model.PhaseEnded {
			return model.ErrSessionEnded
		}
		if !s.SetSeeker(playerID, isSeeker) {
			return model.ErrPlayerNotFound
		}
		c.h.broadcast.Publish(s.ID, model.EventRoleUpdate, model.RoleUpdatePayload{
			PlayerID: playerID,
			IsSeeker: isSeeker,
		})
		return nil
	})
	if err != nil {
		return c.fail(model.EventRoleError, err)
	}
	return nil
}

// Disconnect releases the connection's binding. Safe to call more than once;
// only the first call has any effect.
func (c *Connection) Disconnect() {
	c.disconnectOnce.Do(c.disconnect)
}

func (c *Connection) disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if !c.bound {
		c.h.logger.Debug("connection closed", slog.String("connection_id", c.sub.ID()))
		return
	}

	sessionID, playerID := c.sessionID, c.playerID
	err := c.mutate(func(s *model.Session) error {
		player, removed, err := s.ReleasePlayer(c.playerID)
		if err != nil {
			return err
		}
		if removed {
			c.h.broadcast.Publish(s.ID, model.EventPlayerLeft, model.PlayerLeftPayload{
				DisplayName: player.DisplayName,
			})
		}
		return nil
	})
	if err != nil && !errors.Is(err, model.ErrSessionNotFound) {
		c.h.logger.Warn("failed to release player",
			slog.String("session_id", string(sessionID)),
			slog.String("player_id", string(playerID)),
			slog.String("error", err.Error()))
	}
	if c.bound {
		c.unbind()
	}

	c.h.logger.Info("player disconnected",
		slog.String("connection_id", c.sub.ID()),
		slog.String("session_id", string(sessionID)),
		slog.String("player_id", string(playerID)))
}

// HandleMessage dispatches one inbound envelope. Unknown or malformed
// messages are answered with an error event.
func (c *Connection) HandleMessage(env model.Envelope) error {
	switch env.Type {
	case model.EventJoin:
		var p model.JoinPayload
		if err := decode(env.Payload, &p); err != nil {
			return c.reject(model.EventJoinError, err)
		}
		return c.Join(p)

	case model.EventStart:
		return c.Start()

	case model.EventUpdatePosition:
		var p model.UpdatePositionPayload
		if err := decode(env.Payload, &p); err != nil {
			return c.reject(model.EventError, err)
		}
		return c.UpdatePosition(p.Longitude, p.Latitude)

	case model.EventSetSeeker:
		var p model.SetSeekerPayload
		if err := decode(env.Payload, &p); err != nil {
			return c.reject(model.EventRoleError, err)
		}
		return c.SetSeeker(p.PlayerID, p.IsSeeker)

	default:
		return c.reject(model.EventError, model.ErrUnknownEvent)
	}
}

// reject emits err unless the connection is already closed
func (c *Connection) reject(event model.EventType, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.fail(event, err)
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return model.ErrInvalidMessage
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return model.ErrInvalidMessage
	}
	return nil
}
