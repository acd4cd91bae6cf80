package realtime

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/matchday/go/internal/fixtures/db"
	"github.com/mcdev12/matchday/go/internal/tracking/events"
)

type fakeOutbox struct {
	mu   sync.Mutex
	rows map[uuid.UUID]db.TrackingOutbox
	sent []uuid.UUID
}

func newFakeOutbox(rows ...db.TrackingOutbox) *fakeOutbox {
	f := &fakeOutbox{rows: make(map[uuid.UUID]db.TrackingOutbox)}
	for _, row := range rows {
		f.rows[row.ID] = row
	}
	return f
}

func (f *fakeOutbox) FetchOutboxByID(_ context.Context, id uuid.UUID) (db.TrackingOutbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return db.TrackingOutbox{}, sql.ErrNoRows
	}
	return row, nil
}

func (f *fakeOutbox) FetchUnsentOutbox(_ context.Context, limit int32) ([]db.TrackingOutbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []db.TrackingOutbox
	for _, row := range f.rows {
		if !row.SentAt.Valid && int32(len(rows)) < limit {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (f *fakeOutbox) MarkOutboxSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.rows[id]
	row.SentAt = sql.NullTime{Time: time.Now(), Valid: true}
	f.rows[id] = row
	f.sent = append(f.sent, id)
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	failures int
	got      []events.Envelope
}

func (s *recordingSink) Publish(_ context.Context, env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("nats unavailable")
	}
	s.got = append(s.got, env)
	return nil
}

func outboxRow(fixtureID uuid.UUID) db.TrackingOutbox {
	return db.TrackingOutbox{
		ID:        uuid.New(),
		FixtureID: fixtureID,
		EventType: string(events.EventTypeFixtureUpdated),
		Payload:   []byte(`{"fixture":{}}`),
		CreatedAt: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
	}
}

func testListenerConfig() ListenerConfig {
	cfg := DefaultListenerConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestOutboxListener_RelaysAndMarksSent(t *testing.T) {
	row := outboxRow(uuid.New())
	store := newFakeOutbox(row)
	sink := &recordingSink{failures: 2}
	l := newOutboxListener(store, sink, nil, testListenerConfig())

	if err := l.handleNotification(context.Background(), row.ID.String()); err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	if len(sink.got) != 1 {
		t.Fatalf("Expected 1 published envelope, got %d", len(sink.got))
	}
	env := sink.got[0]
	if env.EventID != row.ID || env.FixtureID != row.FixtureID || env.EventType != events.EventTypeFixtureUpdated {
		t.Errorf("Expected envelope built from row, got %+v", env)
	}
	if len(store.sent) != 1 || store.sent[0] != row.ID {
		t.Errorf("Expected row marked sent, got %v", store.sent)
	}

	// a duplicate notification for a sent row is skipped
	if err := l.handleNotification(context.Background(), row.ID.String()); err != nil {
		t.Fatalf("duplicate notification: %v", err)
	}
	if len(sink.got) != 1 {
		t.Errorf("Expected no republish, got %d envelopes", len(sink.got))
	}
}

func TestOutboxListener_GivesUpAfterRetries(t *testing.T) {
	row := outboxRow(uuid.New())
	store := newFakeOutbox(row)
	cfg := testListenerConfig()
	cfg.MaxRetries = 2
	sink := &recordingSink{failures: 10}
	l := newOutboxListener(store, sink, nil, cfg)

	if err := l.handleNotification(context.Background(), row.ID.String()); err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if sink.failures != 7 {
		t.Errorf("Expected 3 attempts, got %d", 10-sink.failures)
	}
	if len(store.sent) != 0 {
		t.Error("Expected row to stay unsent")
	}
}

func TestOutboxListener_InvalidNotification(t *testing.T) {
	l := newOutboxListener(newFakeOutbox(), &recordingSink{}, nil, testListenerConfig())
	if err := l.handleNotification(context.Background(), "not-a-uuid"); err == nil {
		t.Error("Expected error for malformed id")
	}
	if err := l.handleNotification(context.Background(), uuid.NewString()); err == nil {
		t.Error("Expected error for unknown row")
	}
}

func TestOutboxListener_SweepsUnsent(t *testing.T) {
	fixtureID := uuid.New()
	store := newFakeOutbox(outboxRow(fixtureID), outboxRow(fixtureID))
	sink := &recordingSink{}
	l := newOutboxListener(store, sink, nil, testListenerConfig())

	if err := l.processUnsent(context.Background()); err != nil {
		t.Fatalf("process unsent: %v", err)
	}
	if len(sink.got) != 2 || len(store.sent) != 2 {
		t.Errorf("Expected 2 relayed and marked, got %d/%d", len(sink.got), len(store.sent))
	}
	relayed, last := l.Stats()
	if relayed != 2 {
		t.Errorf("Expected stats to count 2 relayed, got %d", relayed)
	}
	if last.IsZero() {
		t.Error("Expected last relay time to be set")
	}
	if l.Running() {
		t.Error("Expected listener not running before Start")
	}
}

func TestPGFeed_FiltersFixtureWithoutMarking(t *testing.T) {
	mine := uuid.New()
	ours := outboxRow(mine)
	theirs := outboxRow(uuid.New())
	store := newFakeOutbox(ours, theirs)

	var handled []uuid.UUID
	handler := HandlerFunc(func(_ context.Context, env events.Envelope) error {
		handled = append(handled, env.EventID)
		return nil
	})
	cfg := testListenerConfig()
	cfg.MarkSent = false
	cfg.FixtureID = mine
	l := newOutboxListener(store, HandlerSink{Handler: handler}, nil, cfg)

	for _, id := range []uuid.UUID{ours.ID, theirs.ID} {
		if err := l.handleNotification(context.Background(), id.String()); err != nil {
			t.Fatalf("handle notification: %v", err)
		}
	}
	if len(handled) != 1 || handled[0] != ours.ID {
		t.Errorf("Expected only own fixture handled, got %v", handled)
	}
	if len(store.sent) != 0 {
		t.Errorf("Expected read-only feed to leave rows unsent, got %v", store.sent)
	}
}
