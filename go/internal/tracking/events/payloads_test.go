package events

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/matchday/go/internal/models"
)

func TestParsePayload_FixtureUpdated(t *testing.T) {
	fixtureID := uuid.New()
	holder := "coach-1"
	env, err := NewEnvelope(EventTypeFixtureUpdated, fixtureID, time.Now(), FixtureUpdatedPayload{
		Fixture: models.Fixture{ID: fixtureID, Status: models.FixtureStatusInProgress, ActiveTrackerID: &holder},
	})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}

	parsed, err := ParsePayload(env)
	if err != nil {
		t.Fatalf("ParsePayload failed: %v", err)
	}
	payload, ok := parsed.(FixtureUpdatedPayload)
	if !ok {
		t.Fatalf("Expected FixtureUpdatedPayload, got %T", parsed)
	}
	if payload.Fixture.ActiveTrackerID == nil || *payload.Fixture.ActiveTrackerID != holder {
		t.Errorf("Expected holder %q, got %v", holder, payload.Fixture.ActiveTrackerID)
	}
}

func TestParsePayload_UnknownType(t *testing.T) {
	if _, err := ParsePayload(Envelope{EventType: "Bogus", Payload: []byte("{}")}); err == nil {
		t.Error("Expected error for unknown event type")
	}
}

func TestSubject(t *testing.T) {
	id := uuid.MustParse("8f14e45f-ceea-4672-9b5c-0f0d6c1a2b3c")
	want := "tracking.fixtures.8f14e45f-ceea-4672-9b5c-0f0d6c1a2b3c.PeriodChanged"
	if got := Subject(id, EventTypePeriodChanged); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
