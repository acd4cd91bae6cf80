// Package playertimer derives per-player on-field minutes from authoritative period timing.
package playertimer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/models"
)

// TickInterval is how often Run recomputes player minutes.
const TickInterval = time.Second

// PeriodSource reads the authoritative timing and on-field players of a period.
type PeriodSource interface {
	PeriodTiming(ctx context.Context, fixtureID, periodID uuid.UUID) (models.PeriodTiming, error)
	ActivePlayers(ctx context.Context, fixtureID, periodID uuid.UUID) ([]models.OnFieldPlayer, error)
}

// Clock is the subset of clockwork.Clock the set needs.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Set tracks on-field minutes for every active player of the current period.
type Set struct {
	fixtureID uuid.UUID
	source    PeriodSource
	clock     Clock

	mu         sync.Mutex
	periodID   uuid.UUID
	generation uint64
	running    bool
	timers     map[uuid.UUID]models.PlayerTimer
}

// NewSet creates an empty set for fixtureID.
func NewSet(fixtureID uuid.UUID, source PeriodSource, clock Clock) *Set {
	return &Set{
		fixtureID: fixtureID,
		source:    source,
		clock:     clock,
		timers:    make(map[uuid.UUID]models.PlayerTimer),
	}
}

// SetPeriod switches the active period and reloads every timer from scratch when it changed.
// uuid.Nil means no period is active.
func (s *Set) SetPeriod(ctx context.Context, periodID uuid.UUID) error {
	s.mu.Lock()
	if s.periodID == periodID {
		s.mu.Unlock()
		return nil
	}
	s.periodID = periodID
	s.generation++
	s.timers = make(map[uuid.UUID]models.PlayerTimer)
	s.mu.Unlock()

	return s.Load(ctx)
}

// SetRunning tells the set whether the match clock is running.
func (s *Set) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// Load fetches the active players and period timing and recomputes every timer. Results
// for a period that was replaced while the fetch was in flight are discarded.
func (s *Set) Load(ctx context.Context) error {
	s.mu.Lock()
	periodID := s.periodID
	generation := s.generation
	s.mu.Unlock()

	if periodID == uuid.Nil {
		s.replace(generation, nil)
		return nil
	}

	timing, err := s.source.PeriodTiming(ctx, s.fixtureID, periodID)
	if err != nil {
		return fmt.Errorf("failed to load period timing: %w", err)
	}
	if timing.ActualStartAt == nil {
		s.replace(generation, nil)
		return nil
	}
	players, err := s.source.ActivePlayers(ctx, s.fixtureID, periodID)
	if err != nil {
		return fmt.Errorf("failed to load active players: %w", err)
	}

	now := s.clock.Now()
	timers := make(map[uuid.UUID]models.PlayerTimer, len(players))
	for _, p := range players {
		startedAt := timing.ActualStartAt.
			Add(time.Duration(p.OnMinute) * time.Minute).
			Add(time.Duration(timing.PausedSeconds) * time.Second)
		timers[p.PlayerID] = models.PlayerTimer{
			PlayerID:       p.PlayerID,
			CurrentMinutes: minutesSince(now, startedAt),
			IsActive:       true,
			StartedAt:      startedAt,
		}
	}

	if !s.replace(generation, timers) {
		log.Debug().
			Str("fixture_id", s.fixtureID.String()).
			Str("period_id", periodID.String()).
			Msg("discarding player times for superseded period")
		return nil
	}
	log.Debug().
		Str("fixture_id", s.fixtureID.String()).
		Str("period_id", periodID.String()).
		Int("players", len(timers)).
		Msg("player times loaded")
	return nil
}

// Tick recomputes every timer from its derived start instant while the clock runs.
func (s *Set) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.periodID == uuid.Nil {
		return
	}
	now := s.clock.Now()
	for id, timer := range s.timers {
		timer.CurrentMinutes = minutesSince(now, timer.StartedAt)
		s.timers[id] = timer
	}
}

// Run calls Tick once per TickInterval until ctx is cancelled.
func (s *Set) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Tick()
		}
	}
}

// PlayerTime returns a player's on-field minutes, or 0 if the player is not tracked.
func (s *Set) PlayerTime(playerID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[playerID].CurrentMinutes
}

// IsPlayerActive reports whether a player is tracked as on the field.
func (s *Set) IsPlayerActive(playerID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[playerID].IsActive
}

// PeriodID returns the active period, or uuid.Nil.
func (s *Set) PeriodID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periodID
}

// Timers returns the tracked timers ordered by player id.
func (s *Set) Timers() []models.PlayerTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PlayerTimer, 0, len(s.timers))
	for _, timer := range s.timers {
		out = append(out, timer)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PlayerID.String() < out[j].PlayerID.String()
	})
	return out
}

func (s *Set) replace(generation uint64, timers map[uuid.UUID]models.PlayerTimer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	if timers == nil {
		timers = make(map[uuid.UUID]models.PlayerTimer)
	}
	s.timers = timers
	return true
}

func minutesSince(now, startedAt time.Time) int {
	minutes := int(now.Sub(startedAt) / time.Minute)
	if minutes < 0 {
		return 0
	}
	return minutes
}
