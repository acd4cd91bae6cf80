package fixtures

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/matchday/go/internal/fixtures/db"
)

type statusKey struct {
	periodID uuid.UUID
	playerID uuid.UUID
}

// memQueries is an in-memory Querier following the SQL in package db.
type memQueries struct {
	mu       sync.Mutex
	fixtures map[uuid.UUID]db.Fixture
	trackers map[string]string
	lineups  map[uuid.UUID][]uuid.UUID
	periods  map[uuid.UUID]db.MatchPeriod
	statuses map[statusKey]db.PlayerMatchStatus
	events   map[uuid.UUID]db.MatchEvent
	subs     map[uuid.UUID]db.Substitution
	outbox   []db.InsertOutboxEventParams
}

func newMemQueries() *memQueries {
	return &memQueries{
		fixtures: make(map[uuid.UUID]db.Fixture),
		trackers: make(map[string]string),
		lineups:  make(map[uuid.UUID][]uuid.UUID),
		periods:  make(map[uuid.UUID]db.MatchPeriod),
		statuses: make(map[statusKey]db.PlayerMatchStatus),
		events:   make(map[uuid.UUID]db.MatchEvent),
		subs:     make(map[uuid.UUID]db.Substitution),
	}
}

func (m *memQueries) addFixture(f db.Fixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixtures[f.ID] = f
}

func (m *memQueries) outboxTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, len(m.outbox))
	for i, e := range m.outbox {
		types[i] = e.EventType
	}
	return types
}

func (m *memQueries) lastOutboxPayload(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Unmarshal(m.outbox[len(m.outbox)-1].Payload, v)
}

func (m *memQueries) GetFixture(_ context.Context, id uuid.UUID) (db.Fixture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixtures[id]
	if !ok {
		return db.Fixture{}, sql.ErrNoRows
	}
	return f, nil
}

func (m *memQueries) ClaimFixtureTracking(_ context.Context, arg db.ClaimFixtureTrackingParams) (db.Fixture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixtures[arg.ID]
	if !ok || f.Status == "completed" || f.Status == "cancelled" {
		return db.Fixture{}, sql.ErrNoRows
	}
	free := !f.ActiveTrackerID.Valid ||
		f.ActiveTrackerID.String == arg.TrackerID ||
		(f.LastTrackingActivity.Valid && f.LastTrackingActivity.Time.Before(arg.StaleBefore))
	if !free {
		return db.Fixture{}, sql.ErrNoRows
	}
	if !f.ActiveTrackerID.Valid || f.ActiveTrackerID.String != arg.TrackerID || !f.TrackingStartedAt.Valid {
		f.TrackingStartedAt = sql.NullTime{Time: arg.Now, Valid: true}
	}
	f.ActiveTrackerID = sql.NullString{String: arg.TrackerID, Valid: true}
	f.ActiveTrackerInstance = sql.NullString{String: arg.InstanceID, Valid: true}
	f.LastTrackingActivity = sql.NullTime{Time: arg.Now, Valid: true}
	f.UpdatedAt = arg.Now
	m.fixtures[f.ID] = f
	return f, nil
}

func (m *memQueries) holds(f db.Fixture, trackerID, instanceID string) bool {
	return f.ActiveTrackerID.Valid && f.ActiveTrackerID.String == trackerID &&
		(!f.ActiveTrackerInstance.Valid || f.ActiveTrackerInstance.String == instanceID)
}

func (m *memQueries) ReleaseFixtureTracking(_ context.Context, arg db.ReleaseFixtureTrackingParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixtures[arg.ID]
	if !ok || !m.holds(f, arg.TrackerID, arg.InstanceID) {
		return 0, nil
	}
	f.ActiveTrackerID = sql.NullString{}
	f.ActiveTrackerInstance = sql.NullString{}
	f.TrackingStartedAt = sql.NullTime{}
	f.LastTrackingActivity = sql.NullTime{}
	f.UpdatedAt = arg.Now
	m.fixtures[f.ID] = f
	return 1, nil
}

func (m *memQueries) TouchTrackingActivity(_ context.Context, arg db.TouchTrackingActivityParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixtures[arg.ID]
	if !ok || !m.holds(f, arg.TrackerID, arg.InstanceID) {
		return 0, nil
	}
	f.LastTrackingActivity = sql.NullTime{Time: arg.Now, Valid: true}
	m.fixtures[f.ID] = f
	return 1, nil
}

func (m *memQueries) SetFixtureStatus(_ context.Context, arg db.SetFixtureStatusParams) (db.Fixture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fixtures[arg.ID]
	if !ok {
		return db.Fixture{}, sql.ErrNoRows
	}
	f.Status = arg.Status
	f.UpdatedAt = arg.Now
	m.fixtures[f.ID] = f
	return f, nil
}

func (m *memQueries) GetTrackerName(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.trackers[id]
	if !ok {
		return "", sql.ErrNoRows
	}
	return name, nil
}

func (m *memQueries) InsertPeriod(_ context.Context, arg db.InsertPeriodParams) (db.MatchPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.periods {
		if p.FixtureID == arg.FixtureID && p.PeriodNumber == arg.PeriodNumber {
			p.ActualStartAt = sql.NullTime{Time: arg.ActualStartAt, Valid: true}
			p.EndedAt = sql.NullTime{}
			p.PausedSeconds = 0
			m.periods[id] = p
			return p, nil
		}
	}
	p := db.MatchPeriod{
		ID:            arg.ID,
		FixtureID:     arg.FixtureID,
		PeriodNumber:  arg.PeriodNumber,
		ActualStartAt: sql.NullTime{Time: arg.ActualStartAt, Valid: true},
	}
	m.periods[p.ID] = p
	return p, nil
}

func (m *memQueries) GetPeriod(_ context.Context, id, fixtureID uuid.UUID) (db.MatchPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.periods[id]
	if !ok || p.FixtureID != fixtureID {
		return db.MatchPeriod{}, sql.ErrNoRows
	}
	return p, nil
}

func (m *memQueries) GetPeriodByNumber(_ context.Context, fixtureID uuid.UUID, number int32) (db.MatchPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.periods {
		if p.FixtureID == fixtureID && p.PeriodNumber == number {
			return p, nil
		}
	}
	return db.MatchPeriod{}, sql.ErrNoRows
}

func (m *memQueries) updatePeriod(id, fixtureID uuid.UUID, fn func(*db.MatchPeriod)) (db.MatchPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.periods[id]
	if !ok || p.FixtureID != fixtureID {
		return db.MatchPeriod{}, sql.ErrNoRows
	}
	fn(&p)
	m.periods[id] = p
	return p, nil
}

func (m *memQueries) SetPeriodEnded(_ context.Context, id, fixtureID uuid.UUID, endedAt sql.NullTime) (db.MatchPeriod, error) {
	return m.updatePeriod(id, fixtureID, func(p *db.MatchPeriod) { p.EndedAt = endedAt })
}

func (m *memQueries) AddPausedSeconds(_ context.Context, id, fixtureID uuid.UUID, seconds int32) (db.MatchPeriod, error) {
	return m.updatePeriod(id, fixtureID, func(p *db.MatchPeriod) { p.PausedSeconds += seconds })
}

func (m *memQueries) DeletePeriod(_ context.Context, id, fixtureID uuid.UUID) (db.MatchPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.periods[id]
	if !ok || p.FixtureID != fixtureID {
		return db.MatchPeriod{}, sql.ErrNoRows
	}
	delete(m.periods, id)
	for key := range m.statuses {
		if key.periodID == id {
			delete(m.statuses, key)
		}
	}
	return p, nil
}

func (m *memQueries) CopyLineupToPeriod(_ context.Context, fixtureID, periodID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, playerID := range m.lineups[fixtureID] {
		key := statusKey{periodID, playerID}
		if _, ok := m.statuses[key]; !ok {
			m.statuses[key] = db.PlayerMatchStatus{FixtureID: fixtureID, PeriodID: periodID, PlayerID: playerID, IsActive: true}
		}
	}
	return nil
}

func (m *memQueries) CopyActivePlayers(_ context.Context, fixtureID, fromPeriodID, toPeriodID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, st := range m.statuses {
		if key.periodID != fromPeriodID || !st.IsActive {
			continue
		}
		to := statusKey{toPeriodID, key.playerID}
		if _, ok := m.statuses[to]; !ok {
			m.statuses[to] = db.PlayerMatchStatus{FixtureID: fixtureID, PeriodID: toPeriodID, PlayerID: key.playerID, IsActive: true}
		}
	}
	return nil
}

func (m *memQueries) ListActivePlayers(_ context.Context, fixtureID, periodID uuid.UUID) ([]db.ListActivePlayersRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []db.ListActivePlayersRow
	for key, st := range m.statuses {
		if key.periodID == periodID && st.FixtureID == fixtureID && st.IsActive {
			rows = append(rows, db.ListActivePlayersRow{PlayerID: key.playerID, OnMinute: st.OnMinute})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PlayerID.String() < rows[j].PlayerID.String() })
	return rows, nil
}

func (m *memQueries) UpsertPlayerStatus(_ context.Context, arg db.UpsertPlayerStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[statusKey{arg.PeriodID, arg.PlayerID}] = db.PlayerMatchStatus{
		FixtureID: arg.FixtureID,
		PeriodID:  arg.PeriodID,
		PlayerID:  arg.PlayerID,
		IsActive:  arg.IsActive,
		OnMinute:  arg.OnMinute,
	}
	return nil
}

func (m *memQueries) SetPlayerActive(_ context.Context, arg db.SetPlayerActiveParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := statusKey{arg.PeriodID, arg.PlayerID}
	st, ok := m.statuses[key]
	if !ok {
		return 0, nil
	}
	st.IsActive = arg.IsActive
	m.statuses[key] = st
	return 1, nil
}

func (m *memQueries) InsertMatchEvent(_ context.Context, arg db.InsertMatchEventParams) (db.MatchEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := db.MatchEvent{
		ID:          arg.ID,
		FixtureID:   arg.FixtureID,
		PeriodID:    arg.PeriodID,
		EventType:   arg.EventType,
		PlayerID:    arg.PlayerID,
		AssistID:    arg.AssistID,
		MatchMinute: arg.MatchMinute,
		IsOurTeam:   arg.IsOurTeam,
		Metadata:    arg.Metadata,
		CreatedAt:   arg.CreatedAt.(time.Time),
	}
	m.events[e.ID] = e
	return e, nil
}

func (m *memQueries) DeleteMatchEvent(_ context.Context, id, fixtureID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok || e.FixtureID != fixtureID {
		return 0, nil
	}
	delete(m.events, id)
	return 1, nil
}

func (m *memQueries) InsertSubstitution(_ context.Context, arg db.InsertSubstitutionParams) (db.Substitution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := db.Substitution{
		ID:          arg.ID,
		FixtureID:   arg.FixtureID,
		PeriodID:    arg.PeriodID,
		PlayerOffID: arg.PlayerOffID,
		PlayerOnID:  arg.PlayerOnID,
		MatchMinute: arg.MatchMinute,
		CreatedAt:   arg.CreatedAt.(time.Time),
	}
	m.subs[s.ID] = s
	return s, nil
}

func (m *memQueries) DeleteSubstitution(_ context.Context, id, fixtureID uuid.UUID) (db.Substitution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.FixtureID != fixtureID {
		return db.Substitution{}, sql.ErrNoRows
	}
	delete(m.subs, id)
	return s, nil
}

func (m *memQueries) InsertOutboxEvent(_ context.Context, arg db.InsertOutboxEventParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, arg)
	return nil
}
