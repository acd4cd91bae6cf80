package models

import (
	"time"

	"github.com/google/uuid"
)

// FixtureStatus defines the lifecycle status of a fixture.
type FixtureStatus string

const (
	FixtureStatusScheduled  FixtureStatus = "scheduled"
	FixtureStatusInProgress FixtureStatus = "in_progress"
	FixtureStatusCompleted  FixtureStatus = "completed"
	FixtureStatusCancelled  FixtureStatus = "cancelled"
)

// Fixture represents a scheduled match between two teams.
type Fixture struct {
	ID                    uuid.UUID     `json:"id"`
	TeamID                uuid.UUID     `json:"team_id"`
	OpponentName          string        `json:"opponent_name"`
	Status                FixtureStatus `json:"status"`
	KickoffAt             time.Time     `json:"kickoff_at"`
	HalfLengthMinutes     int           `json:"half_length_minutes"`
	ActiveTrackerID       *string       `json:"active_tracker_id,omitempty"`
	ActiveTrackerInstance *string       `json:"active_tracker_instance,omitempty"`
	TrackingStartedAt     *time.Time    `json:"tracking_started_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// TrackingLock mirrors the authoritative single-writer claim on a fixture.
type TrackingLock struct {
	FixtureID         uuid.UUID  `json:"fixture_id"`
	ActiveTrackerID   *string    `json:"active_tracker_id,omitempty"`
	TrackingStartedAt *time.Time `json:"tracking_started_at,omitempty"`
	IsActiveTracker   bool       `json:"is_active_tracker"`
}
