package factory

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/geoseek/internal/dependencies/mocks"
	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/services/lifecycle"
	"github.com/mcoot/geoseek/internal/services/reaper"
	"github.com/mcoot/geoseek/internal/services/registry"
	"github.com/mcoot/geoseek/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// TestOption adjusts the configuration of a TestApp
type TestOption func(cfg *Config)

// WithLateJoinPolicy sets the late join policy
func WithLateJoinPolicy(p model.LateJoinPolicy) TestOption {
	return func(cfg *Config) { cfg.Lifecycle.LateJoinPolicy = p }
}

// WithDefaultStartPolicy sets the start policy used when create requests omit one
func WithDefaultStartPolicy(p model.StartPolicy) TestOption {
	return func(cfg *Config) { cfg.Registry.DefaultStartPolicy = p }
}

// WithReaper enables the reaper
func WithReaper(after time.Duration) TestOption {
	return func(cfg *Config) { cfg.Reaper = reaper.Config{After: after, Interval: time.Minute} }
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp(opts ...TestOption) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	cfg := Config{
		Registry:  registry.Config{PasswordCost: bcrypt.MinCost},
		Lifecycle: lifecycle.Config{LateJoinPolicy: model.LateJoinReject},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &TestApp{
		App:       newWithDependencies(store, mockClock, cfg),
		MockClock: mockClock,
	}
}

// Tick advances the mock clock by one scheduler interval and runs the scheduler once
func (t *TestApp) Tick() {
	t.MockClock.Advance(time.Second)
	t.Scheduler.Tick(context.Background())
}
