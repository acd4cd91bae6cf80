package sqlutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNullUUIDRoundTrip(t *testing.T) {
	if got := ToNullUUID(nil); got.Valid {
		t.Errorf("Expected invalid NullUUID for nil, got %+v", got)
	}
	if got := FromNullUUID(uuid.NullUUID{}); got != nil {
		t.Errorf("Expected nil for invalid NullUUID, got %v", got)
	}

	id := uuid.New()
	back := FromNullUUID(ToNullUUID(&id))
	if back == nil || *back != id {
		t.Errorf("Expected %s, got %v", id, back)
	}
}

func TestFromSqlStringPtr(t *testing.T) {
	if got := FromSqlStringPtr(sql.NullString{}); got != nil {
		t.Errorf("Expected nil, got %q", *got)
	}
	val := sql.NullString{String: "coach-sam", Valid: true}
	got := FromSqlStringPtr(val)
	if got == nil || *got != "coach-sam" {
		t.Fatalf("Expected coach-sam, got %v", got)
	}
	*got = "changed"
	if val.String != "coach-sam" {
		t.Errorf("Expected source to be unchanged, got %q", val.String)
	}
}

func TestSqlTime(t *testing.T) {
	if got := ToSqlTime(nil); got.Valid {
		t.Errorf("Expected invalid NullTime for nil, got %+v", got)
	}
	if got := FromSqlTime(sql.NullTime{}); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}

	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	back := FromSqlTime(ToSqlTime(&now))
	if back == nil || !back.Equal(now) {
		t.Errorf("Expected %v, got %v", now, back)
	}
}
