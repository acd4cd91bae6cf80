package fixtures

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/matchday/go/internal/fixtures/db"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/events"
	"github.com/mcdev12/matchday/go/internal/tracking/lock"
	"github.com/mcdev12/matchday/go/internal/tracking/playertimer"
	"github.com/mcdev12/matchday/go/internal/tracking/session"
)

var (
	_ lock.TrackingRPC         = (*App)(nil)
	_ session.FixtureSource    = (*App)(nil)
	_ session.MatchWriter      = (*App)(nil)
	_ playertimer.PeriodSource = (*App)(nil)
)

type appHarness struct {
	app       *App
	queries   *memQueries
	clock     *clockwork.FakeClock
	fixtureID uuid.UUID
}

func newAppHarness(t *testing.T) *appHarness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC))
	queries := newMemQueries()
	fixtureID := uuid.New()
	queries.addFixture(db.Fixture{
		ID:                fixtureID,
		TeamID:            uuid.New(),
		OpponentName:      "Rovers",
		Status:            string(models.FixtureStatusScheduled),
		KickoffAt:         clock.Now(),
		HalfLengthMinutes: 45,
	})
	repo := NewRepository(queries)
	inTx := func(ctx context.Context, fn func(*Repository) error) error { return fn(repo) }
	return &appHarness{
		app:       NewApp(repo, inTx, clock, time.Minute),
		queries:   queries,
		clock:     clock,
		fixtureID: fixtureID,
	}
}

func TestApp_ClaimContention(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()
	h.queries.trackers["coach-a"] = "Alex"

	alex := lock.Identity{UserID: "coach-a", InstanceID: "tab-1"}
	res, err := h.app.ClaimMatchTracking(ctx, h.fixtureID, alex)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.Success || res.TrackingStartedAt == nil {
		t.Fatalf("Expected successful claim with start time, got %+v", res)
	}

	h.clock.Advance(10 * time.Second)
	res, err = h.app.ClaimMatchTracking(ctx, h.fixtureID, lock.Identity{UserID: "coach-b", InstanceID: "tab-9"})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if res.Success {
		t.Fatal("Expected second tracker to be refused")
	}
	if res.HolderID != "coach-a" || res.HolderName != "Alex" || res.HolderInstance != "tab-1" {
		t.Errorf("Expected holder coach-a/Alex/tab-1, got %+v", res)
	}

	want := []string{string(events.EventTypeFixtureUpdated)}
	if got := h.queries.outboxTypes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected outbox %v, got %v", want, got)
	}
}

func TestApp_StaleClaimCanBeTakenOver(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()

	if res, _ := h.app.ClaimMatchTracking(ctx, h.fixtureID, lock.Identity{UserID: "coach-a"}); !res.Success {
		t.Fatalf("Expected first claim to succeed, got %+v", res)
	}
	h.clock.Advance(2 * time.Minute)

	res, err := h.app.ClaimMatchTracking(ctx, h.fixtureID, lock.Identity{UserID: "coach-b"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.Success {
		t.Fatalf("Expected stale claim to be taken over, got %+v", res)
	}
}

func TestApp_HeartbeatKeepsClaimAlive(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()
	alex := lock.Identity{UserID: "coach-a", InstanceID: "tab-1"}

	h.app.ClaimMatchTracking(ctx, h.fixtureID, alex)
	h.clock.Advance(45 * time.Second)
	if err := h.app.UpdateTrackingActivity(ctx, h.fixtureID, alex); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	h.clock.Advance(45 * time.Second)

	res, _ := h.app.ClaimMatchTracking(ctx, h.fixtureID, lock.Identity{UserID: "coach-b"})
	if res.Success {
		t.Error("Expected heartbeat to keep the claim")
	}

	err := h.app.UpdateTrackingActivity(ctx, h.fixtureID, lock.Identity{UserID: "coach-a", InstanceID: "tab-2"})
	if !errors.Is(err, ErrNotHolder) {
		t.Errorf("Expected ErrNotHolder for another instance, got %v", err)
	}
}

func TestApp_ReleaseOnlyByHolder(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()
	alex := lock.Identity{UserID: "coach-a", InstanceID: "tab-1"}
	h.app.ClaimMatchTracking(ctx, h.fixtureID, alex)

	if err := h.app.ReleaseMatchTracking(ctx, h.fixtureID, lock.Identity{UserID: "coach-b"}); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	fixture, _, _ := h.app.GetFixture(ctx, h.fixtureID)
	if fixture.ActiveTrackerID == nil {
		t.Fatal("Expected foreign release to leave the claim alone")
	}

	if err := h.app.ReleaseMatchTracking(ctx, h.fixtureID, alex); err != nil {
		t.Fatalf("release: %v", err)
	}
	fixture, _, _ = h.app.GetFixture(ctx, h.fixtureID)
	if fixture.ActiveTrackerID != nil || fixture.TrackingStartedAt != nil {
		t.Errorf("Expected claim cleared, got %+v", fixture)
	}

	var payload events.FixtureUpdatedPayload
	if err := h.queries.lastOutboxPayload(&payload); err != nil {
		t.Fatalf("decode outbox payload: %v", err)
	}
	if payload.Fixture.ActiveTrackerID != nil {
		t.Error("Expected released fixture in outbox payload")
	}
}

func TestApp_ClaimCompletedFixture(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()
	if err := h.app.SetFixtureStatus(ctx, h.fixtureID, models.FixtureStatusCompleted); err != nil {
		t.Fatalf("set status: %v", err)
	}

	res, err := h.app.ClaimMatchTracking(ctx, h.fixtureID, lock.Identity{UserID: "coach-a"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Success || res.HolderID != "" || res.Error == "" {
		t.Errorf("Expected refusal without holder, got %+v", res)
	}

	status, found, err := h.app.FixtureStatus(ctx, h.fixtureID)
	if err != nil || !found || status != models.FixtureStatusCompleted {
		t.Errorf("Expected completed fixture, got %q found=%v err=%v", status, found, err)
	}
	if _, found, _ := h.app.FixtureStatus(ctx, uuid.New()); found {
		t.Error("Expected unknown fixture to be reported missing")
	}
}

func TestApp_PeriodsCarryPlayers(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()
	starters := []uuid.UUID{uuid.New(), uuid.New()}
	h.queries.lineups[h.fixtureID] = starters
	bench := uuid.New()

	first, err := h.app.StartPeriod(ctx, h.fixtureID, 1, h.clock.Now())
	if err != nil {
		t.Fatalf("start first period: %v", err)
	}
	players, _ := h.app.ActivePlayers(ctx, h.fixtureID, first.PeriodID)
	if len(players) != 2 {
		t.Fatalf("Expected 2 starters on, got %d", len(players))
	}

	periodID := first.PeriodID
	if _, err := h.app.RecordSubstitution(ctx, models.Substitution{
		FixtureID:   h.fixtureID,
		PeriodID:    &periodID,
		PlayerOffID: starters[0],
		PlayerOnID:  bench,
		MatchMinute: 30,
	}); err != nil {
		t.Fatalf("substitution: %v", err)
	}
	if err := h.app.AddPausedSeconds(ctx, h.fixtureID, periodID, 90); err != nil {
		t.Fatalf("add paused: %v", err)
	}
	if err := h.app.EndPeriod(ctx, h.fixtureID, periodID, h.clock.Now()); err != nil {
		t.Fatalf("end period: %v", err)
	}

	second, err := h.app.StartPeriod(ctx, h.fixtureID, 2, h.clock.Now())
	if err != nil {
		t.Fatalf("start second period: %v", err)
	}
	players, _ = h.app.ActivePlayers(ctx, h.fixtureID, second.PeriodID)
	got := map[uuid.UUID]int{}
	for _, p := range players {
		got[p.PlayerID] = p.OnMinute
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 players carried over, got %v", got)
	}
	if _, ok := got[starters[0]]; ok {
		t.Error("Expected substituted player to stay off")
	}
	if minute, ok := got[bench]; !ok || minute != 0 {
		t.Errorf("Expected substitute to start the second period at 0, got %d (present=%v)", minute, ok)
	}

	timing, _ := h.app.PeriodTiming(ctx, h.fixtureID, periodID)
	if timing.PausedSeconds != 90 {
		t.Errorf("Expected 90 paused seconds, got %d", timing.PausedSeconds)
	}
}

func TestApp_SubstitutionMinutesAndUndo(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()
	starter := uuid.New()
	h.queries.lineups[h.fixtureID] = []uuid.UUID{starter}
	bench := uuid.New()

	h.app.StartPeriod(ctx, h.fixtureID, 1, h.clock.Now())
	second, _ := h.app.StartPeriod(ctx, h.fixtureID, 2, h.clock.Now())
	periodID := second.PeriodID

	sub, err := h.app.RecordSubstitution(ctx, models.Substitution{
		FixtureID:   h.fixtureID,
		PeriodID:    &periodID,
		PlayerOffID: starter,
		PlayerOnID:  bench,
		MatchMinute: 60,
	})
	if err != nil {
		t.Fatalf("substitution: %v", err)
	}
	players, _ := h.app.ActivePlayers(ctx, h.fixtureID, periodID)
	if len(players) != 1 || players[0].PlayerID != bench || players[0].OnMinute != 15 {
		t.Fatalf("Expected substitute on at period minute 15, got %+v", players)
	}

	if err := h.app.DeleteSubstitution(ctx, h.fixtureID, sub.ID); err != nil {
		t.Fatalf("delete substitution: %v", err)
	}
	players, _ = h.app.ActivePlayers(ctx, h.fixtureID, periodID)
	if len(players) != 1 || players[0].PlayerID != starter {
		t.Errorf("Expected starter back on, got %+v", players)
	}
}

func TestApp_DeleteSecondPeriodRestoresFirst(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()
	first, _ := h.app.StartPeriod(ctx, h.fixtureID, 1, h.clock.Now())
	second, _ := h.app.StartPeriod(ctx, h.fixtureID, 2, h.clock.Now())

	if err := h.app.DeletePeriod(ctx, h.fixtureID, second.PeriodID); err != nil {
		t.Fatalf("delete period: %v", err)
	}
	var payload events.PeriodChangedPayload
	if err := h.queries.lastOutboxPayload(&payload); err != nil {
		t.Fatalf("decode outbox payload: %v", err)
	}
	if !payload.IsCurrent || payload.Period.PeriodID != first.PeriodID {
		t.Errorf("Expected first period to become current, got %+v", payload)
	}
}

func TestApp_MatchEvents(t *testing.T) {
	h := newAppHarness(t)
	ctx := context.Background()
	scorer := uuid.New()

	saved, err := h.app.RecordMatchEvent(ctx, models.MatchEvent{
		FixtureID:   h.fixtureID,
		EventType:   models.MatchEventGoal,
		PlayerID:    &scorer,
		MatchMinute: 12,
		IsOurTeam:   true,
		Metadata:    []byte(`{"header":true}`),
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	if saved.ID == uuid.Nil || saved.PlayerID == nil || *saved.PlayerID != scorer {
		t.Errorf("Expected stored goal with scorer, got %+v", saved)
	}
	if string(saved.Metadata) != `{"header":true}` {
		t.Errorf("Expected metadata round trip, got %s", saved.Metadata)
	}

	if err := h.app.DeleteMatchEvent(ctx, h.fixtureID, saved.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	if err := h.app.DeleteMatchEvent(ctx, h.fixtureID, saved.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound on second delete, got %v", err)
	}
}

func TestPeriodMinute(t *testing.T) {
	tests := []struct {
		name        string
		matchMinute int
		period      int
		want        int
	}{
		{"first half", 30, 1, 30},
		{"second half", 60, 2, 15},
		{"second half kickoff", 45, 2, 0},
		{"clamped", 40, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodMinute(tt.matchMinute, tt.period, 45); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}
