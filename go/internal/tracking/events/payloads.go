package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/matchday/go/internal/models"
)

// Change notifications shared by trackingd and tracker hosts

// EventType names a change on a fixture or one of its dependent records.
type EventType string

const (
	EventTypeFixtureUpdated      EventType = "FixtureUpdated"
	EventTypePeriodChanged       EventType = "PeriodChanged"
	EventTypePlayerStatusChanged EventType = "PlayerStatusChanged"
	EventTypeMatchEventChanged   EventType = "MatchEventChanged"
)

// SubjectPrefix is the root of every tracking subject on the bus.
const SubjectPrefix = "tracking.fixtures"

// Envelope wraps every change notification.
type Envelope struct {
	EventID   uuid.UUID       `json:"eventId"`
	EventType EventType       `json:"eventType"`
	FixtureID uuid.UUID       `json:"fixtureId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// FixtureUpdatedPayload carries the fixture row after a change to its holder or status.
type FixtureUpdatedPayload struct {
	Fixture models.Fixture `json:"fixture"`
}

// PeriodChangedPayload is sent when a period starts, pauses or becomes current.
type PeriodChangedPayload struct {
	Period    models.PeriodTiming `json:"period"`
	IsCurrent bool                `json:"is_current"`
}

// PlayerStatusChangedPayload is sent when a player goes on or off the field.
type PlayerStatusChangedPayload struct {
	PeriodID uuid.UUID `json:"period_id"`
	PlayerID uuid.UUID `json:"player_id"`
	IsActive bool      `json:"is_active"`
	OnMinute int       `json:"on_minute"`
}

// MatchEventChangedPayload is sent when a match event or substitution is written or removed.
type MatchEventChangedPayload struct {
	RecordID  uuid.UUID `json:"record_id"`
	Kind      string    `json:"kind"`
	Operation string    `json:"operation"`
}

// NewEnvelope encodes payload into an envelope stamped at ts.
func NewEnvelope(eventType EventType, fixtureID uuid.UUID, ts time.Time, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:   uuid.New(),
		EventType: eventType,
		FixtureID: fixtureID,
		Timestamp: ts,
		Payload:   data,
	}, nil
}

// Subject returns the bus subject an envelope is published on.
func Subject(fixtureID uuid.UUID, eventType EventType) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, fixtureID, eventType)
}

// ParsePayload decodes the envelope payload into the struct matching its type.
func ParsePayload(env Envelope) (any, error) {
	switch env.EventType {
	case EventTypeFixtureUpdated:
		var payload FixtureUpdatedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePeriodChanged:
		var payload PeriodChangedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePlayerStatusChanged:
		var payload PlayerStatusChangedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMatchEventChanged:
		var payload MatchEventChangedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
}
