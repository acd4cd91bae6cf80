package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/lock"
)

// fakeBackend stands in for the tracking backend: claim arbitration, fixtures, periods,
// match records and on-field players.
type fakeBackend struct {
	clock clockwork.Clock

	mu            sync.Mutex
	fixtures      map[uuid.UUID]models.Fixture
	holder        lock.Identity
	periods       map[uuid.UUID]models.PeriodTiming
	ended         map[uuid.UUID]bool
	starters      []uuid.UUID
	onField       map[uuid.UUID]bool
	events        map[uuid.UUID]models.MatchEvent
	subs          map[uuid.UUID]models.Substitution
	deleteErr     error
	releaseErr    error
	releases      int
	pausedCredits []int
	statusWrites  []models.FixtureStatus
}

func newFakeBackend(clock clockwork.Clock, fixture models.Fixture, starters ...uuid.UUID) *fakeBackend {
	onField := make(map[uuid.UUID]bool)
	for _, id := range starters {
		onField[id] = true
	}
	return &fakeBackend{
		clock:    clock,
		fixtures: map[uuid.UUID]models.Fixture{fixture.ID: fixture},
		periods:  make(map[uuid.UUID]models.PeriodTiming),
		ended:    make(map[uuid.UUID]bool),
		starters: starters,
		onField:  onField,
		events:   make(map[uuid.UUID]models.MatchEvent),
		subs:     make(map[uuid.UUID]models.Substitution),
	}
}

func (b *fakeBackend) ClaimMatchTracking(_ context.Context, _ uuid.UUID, who lock.Identity) (lock.ClaimResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.holder.UserID != "" && b.holder.UserID != who.UserID {
		return lock.ClaimResult{Success: false, Error: "Match is already being tracked", HolderID: b.holder.UserID}, nil
	}
	b.holder = who
	now := b.clock.Now()
	return lock.ClaimResult{Success: true, TrackingStartedAt: &now}, nil
}

func (b *fakeBackend) ReleaseMatchTracking(_ context.Context, _ uuid.UUID, who lock.Identity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releases++
	if b.releaseErr != nil {
		return b.releaseErr
	}
	if b.holder == who {
		b.holder = lock.Identity{}
	}
	return nil
}

func (b *fakeBackend) UpdateTrackingActivity(context.Context, uuid.UUID, lock.Identity) error {
	return nil
}

func (b *fakeBackend) GetFixture(_ context.Context, id uuid.UUID) (models.Fixture, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.fixtures[id]
	return f, ok, nil
}

func (b *fakeBackend) FixtureStatus(_ context.Context, id uuid.UUID) (models.FixtureStatus, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.fixtures[id]
	return f.Status, ok, nil
}

func (b *fakeBackend) setStatus(id uuid.UUID, status models.FixtureStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f := b.fixtures[id]
	f.Status = status
	b.fixtures[id] = f
}

func (b *fakeBackend) PeriodTiming(_ context.Context, _, periodID uuid.UUID) (models.PeriodTiming, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.periods[periodID], nil
}

func (b *fakeBackend) ActivePlayers(_ context.Context, _, _ uuid.UUID) ([]models.OnFieldPlayer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var players []models.OnFieldPlayer
	for id, active := range b.onField {
		if active {
			players = append(players, models.OnFieldPlayer{PlayerID: id})
		}
	}
	return players, nil
}

func (b *fakeBackend) StartPeriod(_ context.Context, fixtureID uuid.UUID, number int, startedAt time.Time) (models.PeriodTiming, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	period := models.PeriodTiming{
		PeriodID:      uuid.New(),
		FixtureID:     fixtureID,
		PeriodNumber:  number,
		ActualStartAt: &startedAt,
	}
	b.periods[period.PeriodID] = period
	return period, nil
}

func (b *fakeBackend) EndPeriod(_ context.Context, _, periodID uuid.UUID, _ time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended[periodID] = true
	return nil
}

func (b *fakeBackend) ReopenPeriod(_ context.Context, _, periodID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended[periodID] = false
	return nil
}

func (b *fakeBackend) DeletePeriod(_ context.Context, _, periodID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.periods, periodID)
	return nil
}

func (b *fakeBackend) AddPausedSeconds(_ context.Context, _, periodID uuid.UUID, seconds int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.periods[periodID]
	p.PausedSeconds += seconds
	b.periods[periodID] = p
	b.pausedCredits = append(b.pausedCredits, seconds)
	return nil
}

func (b *fakeBackend) SetFixtureStatus(_ context.Context, fixtureID uuid.UUID, status models.FixtureStatus) error {
	b.setStatus(fixtureID, status)
	b.mu.Lock()
	b.statusWrites = append(b.statusWrites, status)
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) RecordMatchEvent(_ context.Context, event models.MatchEvent) (models.MatchEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.ID] = event
	return event, nil
}

func (b *fakeBackend) DeleteMatchEvent(_ context.Context, _, eventID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.events[eventID]; !ok {
		return errors.New("event not found")
	}
	delete(b.events, eventID)
	return nil
}

func (b *fakeBackend) RecordSubstitution(_ context.Context, sub models.Substitution) (models.Substitution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub.ID] = sub
	b.onField[sub.PlayerOffID] = false
	b.onField[sub.PlayerOnID] = true
	return sub, nil
}

func (b *fakeBackend) DeleteSubstitution(_ context.Context, _, subID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[subID]
	if !ok {
		return errors.New("substitution not found")
	}
	delete(b.subs, subID)
	b.onField[sub.PlayerOffID] = true
	b.onField[sub.PlayerOnID] = false
	return nil
}

func (b *fakeBackend) eventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *fakeBackend) currentHolder() lock.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holder
}

// handoffWriter hands the claim to another device while a period write is in flight.
type handoffWriter struct {
	*fakeBackend
	session *Session
	to      string
}

func (w *handoffWriter) StartPeriod(ctx context.Context, fixtureID uuid.UUID, number int, startedAt time.Time) (models.PeriodTiming, error) {
	period, err := w.fakeBackend.StartPeriod(ctx, fixtureID, number, startedAt)
	if err != nil {
		return period, err
	}
	w.mu.Lock()
	fixture := w.fixtures[fixtureID]
	w.mu.Unlock()
	fixture.ActiveTrackerID = &w.to
	w.session.Lock().HandleFixtureChange(ctx, fixture)
	return period, nil
}
