package models

import "time"

// MatchPhase is the linear phase of a live match.
type MatchPhase string

const (
	PhasePreMatch   MatchPhase = "pre-match"
	PhaseFirstHalf  MatchPhase = "first-half"
	PhaseHalfTime   MatchPhase = "half-time"
	PhaseSecondHalf MatchPhase = "second-half"
	PhaseCompleted  MatchPhase = "completed"
)

// Half identifies which half the match clock is counting.
type Half string

const (
	HalfFirst  Half = "first"
	HalfSecond Half = "second"
)

// GameState is the timer-owned part of a match snapshot.
type GameState struct {
	MatchPhase        MatchPhase `json:"matchPhase"`
	CurrentHalf       Half       `json:"currentHalf"`
	IsRunning         bool       `json:"isRunning"`
	FirstHalfSeconds  int        `json:"firstHalfSeconds"`
	SecondHalfSeconds int        `json:"secondHalfSeconds"`
	// BaseSeconds and TickStartedAt let a running clock resume exactly after a restart.
	BaseSeconds   int        `json:"baseSeconds"`
	TickStartedAt *time.Time `json:"tickStartedAt,omitempty"`
}

// StartTimes records the wall-clock instant each half kicked off.
type StartTimes struct {
	FirstHalf  *time.Time `json:"firstHalf,omitempty"`
	SecondHalf *time.Time `json:"secondHalf,omitempty"`
}
