package rpc

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/matchday/go/internal/models"
)

type Empty struct{}

type TrackerRequest struct {
	FixtureID  uuid.UUID `json:"fixture_id"`
	TrackerID  string    `json:"tracker_id"`
	InstanceID string    `json:"instance_id,omitempty"`
}

type FixtureRequest struct {
	FixtureID uuid.UUID `json:"fixture_id"`
}

type PeriodRequest struct {
	FixtureID uuid.UUID `json:"fixture_id"`
	PeriodID  uuid.UUID `json:"period_id"`
}

type StartPeriodRequest struct {
	FixtureID    uuid.UUID `json:"fixture_id"`
	PeriodNumber int       `json:"period_number"`
	StartedAt    time.Time `json:"started_at"`
}

type EndPeriodRequest struct {
	FixtureID uuid.UUID `json:"fixture_id"`
	PeriodID  uuid.UUID `json:"period_id"`
	EndedAt   time.Time `json:"ended_at"`
}

type AddPausedSecondsRequest struct {
	FixtureID uuid.UUID `json:"fixture_id"`
	PeriodID  uuid.UUID `json:"period_id"`
	Seconds   int       `json:"seconds"`
}

type SetFixtureStatusRequest struct {
	FixtureID uuid.UUID            `json:"fixture_id"`
	Status    models.FixtureStatus `json:"status"`
}

type RecordRequest struct {
	FixtureID uuid.UUID `json:"fixture_id"`
	RecordID  uuid.UUID `json:"record_id"`
}

type ActivePlayersResponse struct {
	Players []models.OnFieldPlayer `json:"players"`
}
