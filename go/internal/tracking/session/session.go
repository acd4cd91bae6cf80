// Package session composes the match clock, tracking claim, undo stack, snapshot persistence
// and player timers into one live tracking session for a fixture.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/lock"
	"github.com/mcdev12/matchday/go/internal/tracking/notify"
	"github.com/mcdev12/matchday/go/internal/tracking/playertimer"
	"github.com/mcdev12/matchday/go/internal/tracking/snapshot"
	"github.com/mcdev12/matchday/go/internal/tracking/timer"
	"github.com/mcdev12/matchday/go/internal/tracking/undo"
)

var ErrFixtureNotFound = errors.New("fixture not found")

// FixtureSource reads fixtures from the backend.
type FixtureSource interface {
	snapshot.FixtureLookup
	GetFixture(ctx context.Context, fixtureID uuid.UUID) (models.Fixture, bool, error)
}

// MatchWriter persists match records on the backend.
type MatchWriter interface {
	StartPeriod(ctx context.Context, fixtureID uuid.UUID, periodNumber int, startedAt time.Time) (models.PeriodTiming, error)
	EndPeriod(ctx context.Context, fixtureID, periodID uuid.UUID, endedAt time.Time) error
	ReopenPeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error
	DeletePeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error
	AddPausedSeconds(ctx context.Context, fixtureID, periodID uuid.UUID, seconds int) error
	SetFixtureStatus(ctx context.Context, fixtureID uuid.UUID, status models.FixtureStatus) error
	RecordMatchEvent(ctx context.Context, event models.MatchEvent) (models.MatchEvent, error)
	DeleteMatchEvent(ctx context.Context, fixtureID, eventID uuid.UUID) error
	RecordSubstitution(ctx context.Context, sub models.Substitution) (models.Substitution, error)
	DeleteSubstitution(ctx context.Context, fixtureID, substitutionID uuid.UUID) error
}

// Deps are the collaborators of a session.
type Deps struct {
	Clock    clockwork.Clock
	Store    snapshot.Store
	RPC      lock.TrackingRPC
	Periods  playertimer.PeriodSource
	Fixtures FixtureSource
	Writer   MatchWriter
	Notifier notify.Notifier
}

// Config tunes a session.
type Config struct {
	UndoWindow time.Duration
	Lock       lock.Config
}

// MatchState is the session-owned part of a snapshot.
type MatchState struct {
	FirstPeriodID   uuid.UUID  `json:"firstPeriodId"`
	SecondPeriodID  uuid.UUID  `json:"secondPeriodId"`
	CurrentPeriodID uuid.UUID  `json:"currentPeriodId"`
	PausedAt        *time.Time `json:"pausedAt,omitempty"`
	OurScore        int        `json:"ourScore"`
	TheirScore      int        `json:"theirScore"`
}

// Session tracks one fixture for one identity.
type Session struct {
	fixtureID uuid.UUID
	deps      Deps

	engine    *timer.Engine
	undo      *undo.Stack
	snapshots *snapshot.Manager
	lock      *lock.Coordinator
	players   *playertimer.Set

	mu         sync.Mutex
	fixture    models.Fixture
	matchState MatchState
	opened     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a session. Call Open before issuing commands.
func New(fixtureID uuid.UUID, identity lock.Identity, deps Deps, cfg Config) *Session {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.LogNotifier{}
	}
	if cfg.UndoWindow <= 0 {
		cfg.UndoWindow = undo.DefaultWindow
	}

	snapshots := snapshot.NewManager(deps.Store, deps.Clock)
	s := &Session{
		fixtureID: fixtureID,
		deps:      deps,
		engine:    timer.NewEngine(fixtureID, deps.Clock),
		undo:      undo.NewStack(deps.Clock, deps.Notifier, cfg.UndoWindow),
		snapshots: snapshots,
		lock:      lock.NewCoordinator(fixtureID, identity, deps.RPC, deps.Notifier, snapshots, deps.Clock, cfg.Lock),
		players:   playertimer.NewSet(fixtureID, deps.Periods, deps.Clock),
	}
	s.engine.OnChange(s.onClockChange)
	return s
}

// Open sweeps stale snapshots, seeds the claim from the fixture record, resumes a recovered
// snapshot when the fixture is still live and starts the background loops.
func (s *Session) Open(ctx context.Context) error {
	logger := log.With().Str("fixture_id", s.fixtureID.String()).Logger()

	if _, err := s.snapshots.ClearExpired(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to clear expired snapshots")
	}

	fixture, found, err := s.deps.Fixtures.GetFixture(ctx, s.fixtureID)
	if err != nil {
		return fmt.Errorf("failed to load fixture: %w", err)
	}
	if !found {
		return ErrFixtureNotFound
	}
	s.mu.Lock()
	s.fixture = fixture
	s.mu.Unlock()

	s.lock.HandleFixtureChange(ctx, fixture)
	s.recover(ctx, fixture)

	if err := s.players.SetPeriod(ctx, s.currentPeriod()); err != nil {
		logger.Warn().Err(err).Msg("failed to load player times")
	}
	s.players.SetRunning(s.engine.IsRunning())

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.opened = true
	s.mu.Unlock()

	s.wg.Add(3)
	go func() { defer s.wg.Done(); s.engine.Run(loopCtx) }()
	go func() { defer s.wg.Done(); s.players.Run(loopCtx) }()
	go func() { defer s.wg.Done(); s.undo.Run(loopCtx) }()

	logger.Info().
		Str("phase", string(s.engine.Phase())).
		Str("lock", s.lock.Status().String()).
		Msg("tracking session opened")
	return nil
}

func (s *Session) recover(ctx context.Context, fixture models.Fixture) {
	logger := log.With().Str("fixture_id", s.fixtureID.String()).Logger()

	snap, err := s.snapshots.Recover(ctx, s.fixtureID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read match snapshot")
		return
	}
	if snap == nil {
		return
	}

	// the local phase may be stale if another device finished the match
	status, found, err := s.deps.Fixtures.FixtureStatus(ctx, s.fixtureID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to confirm fixture status, using fixture record")
		status, found = fixture.Status, true
	}
	if !found || status == models.FixtureStatusCompleted || status == models.FixtureStatusCancelled {
		logger.Info().Str("status", string(status)).Msg("discarding snapshot for finished fixture")
		s.clearSnapshot(ctx)
		return
	}

	var state MatchState
	if len(snap.MatchState) > 0 {
		if err := json.Unmarshal(snap.MatchState, &state); err != nil {
			logger.Warn().Err(err).Msg("discarding snapshot with corrupt match state")
			s.clearSnapshot(ctx)
			return
		}
	}
	s.mu.Lock()
	s.matchState = state
	s.mu.Unlock()

	if err := s.engine.Restore(snap.GameState, snap.StartTimes); err != nil {
		logger.Warn().Err(err).Msg("discarding snapshot with invalid game state")
		s.mu.Lock()
		s.matchState = MatchState{}
		s.mu.Unlock()
		s.clearSnapshot(ctx)
		return
	}
	logger.Info().
		Str("phase", string(snap.GameState.MatchPhase)).
		Int("current_time", s.engine.CurrentTime()).
		Msg("match state recovered")
	s.deps.Notifier.Notify(notify.Notification{
		Level:       notify.LevelInfo,
		Title:       "Match restored",
		Description: "Your live match was recovered.",
	})
}

// Close stops the background loops, releases a held claim and drops pending undo actions.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.opened = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.lock.Close(ctx)
	s.undo.Clear()
	s.wg.Wait()
	log.Info().Str("fixture_id", s.fixtureID.String()).Msg("tracking session closed")
}

// onClockChange writes the snapshot through after every clock transition.
func (s *Session) onClockChange(state models.GameState, _ models.StartTimes) {
	s.players.SetRunning(state.IsRunning)
	if state.MatchPhase == models.PhaseCompleted {
		return
	}
	if err := s.persist(context.Background()); err != nil {
		log.Warn().Err(err).Str("fixture_id", s.fixtureID.String()).Msg("failed to save match snapshot")
	}
}

func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	fixture, err := json.Marshal(s.fixture)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to encode fixture: %w", err)
	}
	matchState, err := json.Marshal(s.matchState)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode match state: %w", err)
	}

	return s.snapshots.Save(ctx, snapshot.Snapshot{
		FixtureID:  s.fixtureID,
		Fixture:    fixture,
		MatchState: matchState,
		GameState:  s.engine.State(),
		StartTimes: s.engine.StartTimes(),
	})
}

func (s *Session) clearSnapshot(ctx context.Context) {
	if err := s.snapshots.Clear(ctx, s.fixtureID); err != nil {
		log.Warn().Err(err).Str("fixture_id", s.fixtureID.String()).Msg("failed to clear match snapshot")
	}
}

func (s *Session) currentPeriod() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchState.CurrentPeriodID
}

func (s *Session) updateMatchState(fn func(*MatchState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.matchState)
}

// FixtureID returns the tracked fixture.
func (s *Session) FixtureID() uuid.UUID { return s.fixtureID }

// Engine returns the match clock.
func (s *Session) Engine() *timer.Engine { return s.engine }

// Lock returns the tracking claim coordinator.
func (s *Session) Lock() *lock.Coordinator { return s.lock }

// Undo returns the undo stack.
func (s *Session) Undo() *undo.Stack { return s.undo }

// Players returns the player timer set.
func (s *Session) Players() *playertimer.Set { return s.players }

// Snapshots returns the snapshot manager.
func (s *Session) Snapshots() *snapshot.Manager { return s.snapshots }

// MatchState returns a copy of the session-owned match state.
func (s *Session) MatchState() MatchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchState
}
