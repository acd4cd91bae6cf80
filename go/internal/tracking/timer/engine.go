// Package timer implements the live match clock.
//
// Elapsed time is never accumulated tick by tick. Every read derives the active half's seconds
// from a captured wall-clock instant and a frozen base, so a delayed or suspended ticker cannot
// introduce drift.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrInvalidState      = errors.New("invalid game state")
)

// TickInterval is how often Run refreshes the clock.
const TickInterval = time.Second

// Clock is the subset of clockwork.Clock the engine needs.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// ChangeFunc is called after every successful state transition.
type ChangeFunc func(state models.GameState, startTimes models.StartTimes)

// TickFunc is called on every tick while the clock is running.
type TickFunc func(currentSeconds int)

// Engine tracks elapsed seconds per half for one fixture.
type Engine struct {
	fixtureID uuid.UUID
	clock     Clock

	mu         sync.Mutex
	phase      models.MatchPhase
	half       models.Half
	running    bool
	first      int
	second     int
	base       int
	tickStart  time.Time
	startTimes models.StartTimes

	listenersMu sync.RWMutex
	onChange    []ChangeFunc
	onTick      []TickFunc
}

// NewEngine creates an engine in the pre-match phase.
func NewEngine(fixtureID uuid.UUID, clock Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		fixtureID: fixtureID,
		clock:     clock,
		phase:     models.PhasePreMatch,
		half:      models.HalfFirst,
	}
}

// OnChange registers a state-save hook.
func (e *Engine) OnChange(fn ChangeFunc) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.onChange = append(e.onChange, fn)
}

// OnTick registers a tick listener.
func (e *Engine) OnTick(fn TickFunc) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.onTick = append(e.onTick, fn)
}

// StartMatch kicks off the first half.
func (e *Engine) StartMatch() error {
	return e.transition("start_match", func(now time.Time) error {
		if e.phase != models.PhasePreMatch {
			return e.invalid("start_match")
		}
		e.phase = models.PhaseFirstHalf
		e.half = models.HalfFirst
		e.first, e.second, e.base = 0, 0, 0
		e.tickStart = now
		e.running = true
		kickoff := now
		e.startTimes.FirstHalf = &kickoff
		return nil
	})
}

// ToggleTimer pauses a running clock or resumes a paused one.
func (e *Engine) ToggleTimer() error {
	return e.transition("toggle_timer", func(now time.Time) error {
		if e.phase != models.PhaseFirstHalf && e.phase != models.PhaseSecondHalf {
			return e.invalid("toggle_timer")
		}
		if e.running {
			e.refreshLocked(now)
			e.base = e.activeLocked()
			e.running = false
			return nil
		}
		e.base = e.activeLocked()
		e.tickStart = now
		e.running = true
		return nil
	})
}

// EndFirstHalf stops the clock and moves to half-time.
func (e *Engine) EndFirstHalf() error {
	return e.transition("end_first_half", func(now time.Time) error {
		if e.phase != models.PhaseFirstHalf {
			return e.invalid("end_first_half")
		}
		e.refreshLocked(now)
		e.base = e.first
		e.running = false
		e.phase = models.PhaseHalfTime
		return nil
	})
}

// StartSecondHalf resets the second-half counter and starts the clock.
func (e *Engine) StartSecondHalf() error {
	return e.transition("start_second_half", func(now time.Time) error {
		if e.phase != models.PhaseHalfTime {
			return e.invalid("start_second_half")
		}
		e.second = 0
		e.base = 0
		e.half = models.HalfSecond
		e.tickStart = now
		e.running = true
		e.phase = models.PhaseSecondHalf
		kickoff := now
		e.startTimes.SecondHalf = &kickoff
		return nil
	})
}

// EndMatch stops the clock for good.
func (e *Engine) EndMatch() error {
	return e.transition("end_match", func(now time.Time) error {
		if e.phase != models.PhaseSecondHalf {
			return e.invalid("end_match")
		}
		e.refreshLocked(now)
		e.base = e.second
		e.running = false
		e.phase = models.PhaseCompleted
		return nil
	})
}

// Restore replaces the engine state with a previously captured one.
func (e *Engine) Restore(state models.GameState, startTimes models.StartTimes) error {
	if err := Validate(state); err != nil {
		return err
	}
	return e.transition("restore", func(now time.Time) error {
		e.phase = state.MatchPhase
		e.half = state.CurrentHalf
		if e.half == "" {
			e.half = models.HalfFirst
		}
		e.first = state.FirstHalfSeconds
		e.second = state.SecondHalfSeconds
		e.running = state.IsRunning
		e.startTimes = startTimes
		e.base = e.activeLocked()
		e.tickStart = now
		if state.IsRunning && state.TickStartedAt != nil {
			e.base = state.BaseSeconds
			e.tickStart = *state.TickStartedAt
			e.refreshLocked(now)
		}
		return nil
	})
}

// CurrentTime returns the active half's elapsed seconds.
func (e *Engine) CurrentTime() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshLocked(e.clock.Now())
	return e.activeLocked()
}

// CurrentMinute returns the active half's elapsed whole minutes.
func (e *Engine) CurrentMinute() int {
	return e.CurrentTime() / 60
}

// Phase returns the current match phase.
func (e *Engine) Phase() models.MatchPhase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// IsRunning reports whether the clock is accumulating time.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// State returns a snapshot of the engine.
func (e *Engine) State() models.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshLocked(e.clock.Now())
	return e.stateLocked()
}

// StartTimes returns the kickoff instant of each half.
func (e *Engine) StartTimes() models.StartTimes {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startTimes
}

// Tick refreshes the clock and notifies tick listeners.
func (e *Engine) Tick() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.refreshLocked(e.clock.Now())
	current := e.activeLocked()
	e.mu.Unlock()

	e.listenersMu.RLock()
	listeners := append([]TickFunc(nil), e.onTick...)
	e.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(current)
	}
}

// Run ticks the clock once per TickInterval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	log.Debug().Str("fixture_id", e.fixtureID.String()).Msg("match clock started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("fixture_id", e.fixtureID.String()).Msg("match clock stopped")
			return
		case <-ticker.Chan():
			e.Tick()
		}
	}
}

// Validate checks the invariants of a game state.
func Validate(state models.GameState) error {
	switch state.MatchPhase {
	case models.PhasePreMatch:
		if state.FirstHalfSeconds != 0 || state.SecondHalfSeconds != 0 || state.IsRunning {
			return fmt.Errorf("%w: pre-match clock must be zero and stopped", ErrInvalidState)
		}
	case models.PhaseCompleted, models.PhaseHalfTime:
		if state.IsRunning {
			return fmt.Errorf("%w: clock running in phase %s", ErrInvalidState, state.MatchPhase)
		}
	case models.PhaseFirstHalf, models.PhaseSecondHalf:
	default:
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, state.MatchPhase)
	}
	if state.FirstHalfSeconds < 0 || state.SecondHalfSeconds < 0 {
		return fmt.Errorf("%w: negative clock", ErrInvalidState)
	}
	return nil
}

func (e *Engine) transition(name string, apply func(now time.Time) error) error {
	e.mu.Lock()
	if err := apply(e.clock.Now()); err != nil {
		e.mu.Unlock()
		return err
	}
	state := e.stateLocked()
	startTimes := e.startTimes
	e.mu.Unlock()

	log.Info().
		Str("fixture_id", e.fixtureID.String()).
		Str("transition", name).
		Str("phase", string(state.MatchPhase)).
		Bool("running", state.IsRunning).
		Msg("match clock transition")

	e.listenersMu.RLock()
	listeners := append([]ChangeFunc(nil), e.onChange...)
	e.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(state, startTimes)
	}
	return nil
}

func (e *Engine) invalid(op string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, e.phase)
}

// refreshLocked recomputes the active counter from absolute time.
func (e *Engine) refreshLocked(now time.Time) {
	if !e.running {
		return
	}
	elapsed := int(now.Sub(e.tickStart) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if e.half == models.HalfSecond {
		e.second = e.base + elapsed
	} else {
		e.first = e.base + elapsed
	}
}

func (e *Engine) activeLocked() int {
	if e.half == models.HalfSecond {
		return e.second
	}
	return e.first
}

func (e *Engine) stateLocked() models.GameState {
	state := models.GameState{
		MatchPhase:        e.phase,
		CurrentHalf:       e.half,
		IsRunning:         e.running,
		FirstHalfSeconds:  e.first,
		SecondHalfSeconds: e.second,
		BaseSeconds:       e.base,
	}
	if e.running {
		tickStart := e.tickStart
		state.TickStartedAt = &tickStart
	}
	return state
}
