// Package optimistic models a locally predicted value that an authoritative source later
// confirms or overrides.
package optimistic

import "sync"

// State describes where a Value is in its reconciliation cycle.
type State int

const (
	// Reconciling means a request is in flight and the current value is the last known one.
	Reconciling State = iota
	// Optimistic means the value is a local prediction not yet seen on the authoritative feed.
	Optimistic
	// Confirmed means the value came from the authoritative feed.
	Confirmed
)

func (s State) String() string {
	switch s {
	case Reconciling:
		return "reconciling"
	case Optimistic:
		return "optimistic"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Token identifies one Begin/Predict round trip.
type Token struct {
	generation uint64
}

// Value holds a T together with its reconciliation state. Confirmations always win: a
// prediction issued before a later confirmation is dropped.
type Value[T any] struct {
	mu         sync.Mutex
	value      T
	state      State
	prior      State
	generation uint64
}

// New returns a Value initialised as confirmed.
func New[T any](initial T) *Value[T] {
	return &Value[T]{value: initial, state: Confirmed}
}

// Begin marks a request as in flight and returns the token its response must present.
func (v *Value[T]) Begin() Token {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state != Reconciling {
		v.prior = v.state
	}
	v.state = Reconciling
	return Token{generation: v.generation}
}

// Predict applies a local prediction unless a confirmation arrived after tok was issued.
// It reports whether the prediction was applied.
func (v *Value[T]) Predict(tok Token, value T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if tok.generation != v.generation {
		return false
	}
	v.value = value
	v.state = Optimistic
	return true
}

// Abandon ends an in-flight request without a prediction, restoring the state held before Begin.
func (v *Value[T]) Abandon(tok Token) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if tok.generation == v.generation && v.state == Reconciling {
		v.state = v.prior
	}
}

// Confirm stores an authoritative value and invalidates outstanding tokens.
func (v *Value[T]) Confirm(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	v.state = Confirmed
	v.generation++
}

// Get returns the current value and its state.
func (v *Value[T]) Get() (T, State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.state
}
