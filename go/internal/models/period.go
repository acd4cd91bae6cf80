package models

import (
	"time"

	"github.com/google/uuid"
)

// PeriodTiming is the authoritative timing of one match period.
type PeriodTiming struct {
	PeriodID      uuid.UUID  `json:"period_id"`
	FixtureID     uuid.UUID  `json:"fixture_id"`
	PeriodNumber  int        `json:"period_number"`
	ActualStartAt *time.Time `json:"actual_start_at,omitempty"`
	PausedSeconds int        `json:"paused_seconds"`
}

// OnFieldPlayer is a player currently marked active in a period.
type OnFieldPlayer struct {
	PlayerID uuid.UUID `json:"player_id"`
	// OnMinute is the period minute the player came on (0 for starters).
	OnMinute int `json:"on_minute"`
}

// PlayerTimer is the derived on-field time of one player.
type PlayerTimer struct {
	PlayerID       uuid.UUID `json:"player_id"`
	CurrentMinutes int       `json:"current_minutes"`
	IsActive       bool      `json:"is_active"`
	StartedAt      time.Time `json:"started_at"`
}
