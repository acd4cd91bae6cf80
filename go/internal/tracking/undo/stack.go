// Package undo keeps a time-boxed stack of compensating actions.
package undo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/tracking/notify"
	"github.com/rs/zerolog/log"
)

// DefaultWindow is how long an action stays undoable.
const DefaultWindow = 30 * time.Second

// Kind classifies an undoable action.
type Kind string

const (
	KindEvent        Kind = "event"
	KindSubstitution Kind = "substitution"
	KindPeriod       Kind = "period"
)

// CompensateFunc reverses the effect of a recorded action.
type CompensateFunc func(ctx context.Context) error

// Action is a reversible action awaiting expiry.
type Action struct {
	ID          uuid.UUID
	Kind        Kind
	Description string
	Compensate  CompensateFunc
	CreatedAt   time.Time
}

// Clock is the subset of clockwork.Clock the stack needs.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) clockwork.Timer
	NewTicker(d time.Duration) clockwork.Ticker
}

// Stack holds pending undo actions. Only the most recent one is undoable.
type Stack struct {
	clock    Clock
	notifier notify.Notifier
	window   time.Duration

	mu       sync.Mutex
	actions  []Action
	timer    clockwork.Timer
	timerFor uuid.UUID
	undoing  bool
}

// NewStack creates an empty stack. A zero window uses DefaultWindow.
func NewStack(clock Clock, notifier notify.Notifier, window time.Duration) *Stack {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Stack{
		clock:    clock,
		notifier: notifier,
		window:   window,
	}
}

// Push records a new undoable action and schedules its expiry.
func (s *Stack) Push(kind Kind, description string, compensate CompensateFunc) Action {
	action := Action{
		ID:          uuid.New(),
		Kind:        kind,
		Description: description,
		Compensate:  compensate,
		CreatedAt:   s.clock.Now(),
	}

	s.mu.Lock()
	s.actions = append(s.actions, action)
	// Earlier timers keep running; expire filters by id.
	s.timer = s.clock.AfterFunc(s.window, func() { s.expire(action.ID) })
	s.timerFor = action.ID
	depth := len(s.actions)
	s.mu.Unlock()

	log.Debug().
		Str("action_id", action.ID.String()).
		Str("kind", string(kind)).
		Int("depth", depth).
		Msg("undo action pushed")

	s.notifier.Notify(notify.Notification{
		Level:       notify.LevelInfo,
		Title:       description,
		Description: fmt.Sprintf("Undo available for %d seconds", int(s.window/time.Second)),
		Duration:    s.window,
	})
	return action
}

// Perform runs the compensating operation of the current action.
// It reports whether an action was undone. Failures leave the action in place.
func (s *Stack) Perform(ctx context.Context) bool {
	s.mu.Lock()
	s.pruneLocked(s.clock.Now())
	if s.undoing || len(s.actions) == 0 {
		s.mu.Unlock()
		return false
	}
	action := s.actions[len(s.actions)-1]
	s.undoing = true
	s.mu.Unlock()

	err := action.Compensate(ctx)

	s.mu.Lock()
	s.undoing = false
	if err == nil {
		s.removeLocked(action.ID)
	}
	s.mu.Unlock()

	if err != nil {
		log.Error().
			Err(err).
			Str("action_id", action.ID.String()).
			Str("kind", string(action.Kind)).
			Msg("undo failed")
		s.notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Undo failed",
			Description: err.Error(),
		})
		return false
	}

	log.Info().
		Str("action_id", action.ID.String()).
		Str("kind", string(action.Kind)).
		Msg("undo performed")
	s.notifier.Notify(notify.Notification{
		Level:       notify.LevelSuccess,
		Title:       "Undone",
		Description: action.Description,
	})
	return true
}

// Current returns the action that would be undone next.
func (s *Stack) Current() (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())
	if len(s.actions) == 0 {
		return Action{}, false
	}
	return s.actions[len(s.actions)-1], true
}

// RemainingSeconds returns the whole seconds left to undo the current action.
func (s *Stack) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.pruneLocked(now)
	if len(s.actions) == 0 {
		return 0
	}
	return s.remaining(s.actions[len(s.actions)-1], now)
}

// Len returns the number of pending actions.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())
	return len(s.actions)
}

// IsUndoing reports whether a compensating operation is in flight.
func (s *Stack) IsUndoing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undoing
}

// Clear drops every pending action and cancels the tracked timer.
func (s *Stack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerFor = uuid.Nil
	s.actions = nil
}

// Tick drops actions whose countdown reached zero.
func (s *Stack) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(s.clock.Now())
}

// Run refreshes the countdown once per second until ctx is cancelled.
func (s *Stack) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(time.Second)
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

func (s *Stack) expire(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timerFor == id {
		// The tracked timer is the one firing; drop the reference without stopping it.
		s.timer = nil
		s.timerFor = uuid.Nil
	}
	if s.removeLocked(id) {
		log.Debug().Str("action_id", id.String()).Msg("undo window expired")
	}
}

func (s *Stack) remaining(action Action, now time.Time) int {
	left := s.window - now.Sub(action.CreatedAt)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func (s *Stack) pruneLocked(now time.Time) {
	kept := s.actions[:0]
	for _, action := range s.actions {
		if s.remaining(action, now) > 0 {
			kept = append(kept, action)
		}
	}
	for i := len(kept); i < len(s.actions); i++ {
		s.actions[i] = Action{}
	}
	s.actions = kept
	if len(s.actions) == 0 {
		s.stopTimerLocked()
	}
}

func (s *Stack) removeLocked(id uuid.UUID) bool {
	for i, action := range s.actions {
		if action.ID == id {
			s.actions = append(s.actions[:i], s.actions[i+1:]...)
			if s.timerFor == id {
				s.stopTimerLocked()
			}
			return true
		}
	}
	return false
}

func (s *Stack) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerFor = uuid.Nil
}
