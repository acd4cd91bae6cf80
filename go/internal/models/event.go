package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MatchEventType defines the kind of a recorded match event.
type MatchEventType string

const (
	MatchEventGoal       MatchEventType = "goal"
	MatchEventOwnGoal    MatchEventType = "own_goal"
	MatchEventYellowCard MatchEventType = "yellow_card"
	MatchEventRedCard    MatchEventType = "red_card"
)

// MatchEvent is a recorded in-match event.
type MatchEvent struct {
	ID          uuid.UUID       `json:"id"`
	FixtureID   uuid.UUID       `json:"fixture_id"`
	PeriodID    *uuid.UUID      `json:"period_id,omitempty"`
	EventType   MatchEventType  `json:"event_type"`
	PlayerID    *uuid.UUID      `json:"player_id,omitempty"`
	AssistID    *uuid.UUID      `json:"assist_id,omitempty"`
	MatchMinute int             `json:"match_minute"`
	IsOurTeam   bool            `json:"is_our_team"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Substitution swaps one on-field player for another.
type Substitution struct {
	ID          uuid.UUID  `json:"id"`
	FixtureID   uuid.UUID  `json:"fixture_id"`
	PeriodID    *uuid.UUID `json:"period_id,omitempty"`
	PlayerOffID uuid.UUID  `json:"player_off_id"`
	PlayerOnID  uuid.UUID  `json:"player_on_id"`
	MatchMinute int        `json:"match_minute"`
	CreatedAt   time.Time  `json:"created_at"`
}
