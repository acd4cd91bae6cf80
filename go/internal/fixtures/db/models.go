package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Fixture struct {
	ID                    uuid.UUID      `json:"id"`
	TeamID                uuid.UUID      `json:"team_id"`
	OpponentName          string         `json:"opponent_name"`
	Status                string         `json:"status"`
	KickoffAt             time.Time      `json:"kickoff_at"`
	HalfLengthMinutes     int32          `json:"half_length_minutes"`
	ActiveTrackerID       sql.NullString `json:"active_tracker_id"`
	ActiveTrackerInstance sql.NullString `json:"active_tracker_instance"`
	TrackingStartedAt     sql.NullTime   `json:"tracking_started_at"`
	LastTrackingActivity  sql.NullTime   `json:"last_tracking_activity"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

type MatchPeriod struct {
	ID            uuid.UUID    `json:"id"`
	FixtureID     uuid.UUID    `json:"fixture_id"`
	PeriodNumber  int32        `json:"period_number"`
	ActualStartAt sql.NullTime `json:"actual_start_at"`
	EndedAt       sql.NullTime `json:"ended_at"`
	PausedSeconds int32        `json:"paused_seconds"`
}

type PlayerMatchStatus struct {
	FixtureID uuid.UUID `json:"fixture_id"`
	PeriodID  uuid.UUID `json:"period_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	IsActive  bool      `json:"is_active"`
	OnMinute  int32     `json:"on_minute"`
}

type MatchEvent struct {
	ID          uuid.UUID             `json:"id"`
	FixtureID   uuid.UUID             `json:"fixture_id"`
	PeriodID    uuid.NullUUID         `json:"period_id"`
	EventType   string                `json:"event_type"`
	PlayerID    uuid.NullUUID         `json:"player_id"`
	AssistID    uuid.NullUUID         `json:"assist_id"`
	MatchMinute int32                 `json:"match_minute"`
	IsOurTeam   bool                  `json:"is_our_team"`
	Metadata    pqtype.NullRawMessage `json:"metadata"`
	CreatedAt   time.Time             `json:"created_at"`
}

type Substitution struct {
	ID          uuid.UUID     `json:"id"`
	FixtureID   uuid.UUID     `json:"fixture_id"`
	PeriodID    uuid.NullUUID `json:"period_id"`
	PlayerOffID uuid.UUID     `json:"player_off_id"`
	PlayerOnID  uuid.UUID     `json:"player_on_id"`
	MatchMinute int32         `json:"match_minute"`
	CreatedAt   time.Time     `json:"created_at"`
}

type TrackingOutbox struct {
	ID        uuid.UUID       `json:"id"`
	FixtureID uuid.UUID       `json:"fixture_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    sql.NullTime    `json:"sent_at"`
}
