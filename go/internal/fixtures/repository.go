package fixtures

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/matchday/go/internal/fixtures/db"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/sqlutil"
	"github.com/mcdev12/matchday/go/internal/tracking/events"
)

var (
	ErrFixtureNotFound = errors.New("fixture not found")
	ErrPeriodNotFound  = errors.New("period not found")
	ErrRecordNotFound  = errors.New("record not found")
)

type Querier interface {
	GetFixture(ctx context.Context, id uuid.UUID) (db.Fixture, error)
	ClaimFixtureTracking(ctx context.Context, arg db.ClaimFixtureTrackingParams) (db.Fixture, error)
	ReleaseFixtureTracking(ctx context.Context, arg db.ReleaseFixtureTrackingParams) (int64, error)
	TouchTrackingActivity(ctx context.Context, arg db.TouchTrackingActivityParams) (int64, error)
	SetFixtureStatus(ctx context.Context, arg db.SetFixtureStatusParams) (db.Fixture, error)
	GetTrackerName(ctx context.Context, id string) (string, error)
	InsertPeriod(ctx context.Context, arg db.InsertPeriodParams) (db.MatchPeriod, error)
	GetPeriod(ctx context.Context, id, fixtureID uuid.UUID) (db.MatchPeriod, error)
	GetPeriodByNumber(ctx context.Context, fixtureID uuid.UUID, number int32) (db.MatchPeriod, error)
	SetPeriodEnded(ctx context.Context, id, fixtureID uuid.UUID, endedAt sql.NullTime) (db.MatchPeriod, error)
	AddPausedSeconds(ctx context.Context, id, fixtureID uuid.UUID, seconds int32) (db.MatchPeriod, error)
	DeletePeriod(ctx context.Context, id, fixtureID uuid.UUID) (db.MatchPeriod, error)
	CopyLineupToPeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error
	CopyActivePlayers(ctx context.Context, fixtureID, fromPeriodID, toPeriodID uuid.UUID) error
	ListActivePlayers(ctx context.Context, fixtureID, periodID uuid.UUID) ([]db.ListActivePlayersRow, error)
	UpsertPlayerStatus(ctx context.Context, arg db.UpsertPlayerStatusParams) error
	SetPlayerActive(ctx context.Context, arg db.SetPlayerActiveParams) (int64, error)
	InsertMatchEvent(ctx context.Context, arg db.InsertMatchEventParams) (db.MatchEvent, error)
	DeleteMatchEvent(ctx context.Context, id, fixtureID uuid.UUID) (int64, error)
	InsertSubstitution(ctx context.Context, arg db.InsertSubstitutionParams) (db.Substitution, error)
	DeleteSubstitution(ctx context.Context, id, fixtureID uuid.UUID) (db.Substitution, error)
	InsertOutboxEvent(ctx context.Context, arg db.InsertOutboxEventParams) error
}

type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{
		queries: querier,
	}
}

// TxFunc runs fn with a repository bound to one transaction.
type TxFunc func(ctx context.Context, fn func(*Repository) error) error

// InTx returns a TxFunc that opens a transaction on database for every call.
func InTx(database *sql.DB) TxFunc {
	return func(ctx context.Context, fn func(*Repository) error) error {
		return sqlutil.Run(ctx, database, func(tx *sql.Tx) *db.Queries {
			return db.New(tx)
		}, func(q *db.Queries) error {
			return fn(NewRepository(q))
		})
	}
}

func (r *Repository) GetFixture(ctx context.Context, id uuid.UUID) (*models.Fixture, error) {
	fixture, err := r.queries.GetFixture(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFixtureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fixture: %w", err)
	}
	return dbFixtureToModel(fixture), nil
}

// ClaimTracking takes the claim for trackerID. ok is false when another live tracker holds it
// or the fixture can no longer be tracked.
func (r *Repository) ClaimTracking(ctx context.Context, id uuid.UUID, trackerID, instanceID string, now, staleBefore time.Time) (*models.Fixture, bool, error) {
	fixture, err := r.queries.ClaimFixtureTracking(ctx, db.ClaimFixtureTrackingParams{
		ID:          id,
		TrackerID:   trackerID,
		InstanceID:  instanceID,
		Now:         now,
		StaleBefore: staleBefore,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim fixture tracking: %w", err)
	}
	return dbFixtureToModel(fixture), true, nil
}

// ReleaseTracking clears the claim if trackerID holds it and reports whether it did.
func (r *Repository) ReleaseTracking(ctx context.Context, id uuid.UUID, trackerID, instanceID string, now time.Time) (bool, error) {
	n, err := r.queries.ReleaseFixtureTracking(ctx, db.ReleaseFixtureTrackingParams{
		ID:         id,
		TrackerID:  trackerID,
		InstanceID: instanceID,
		Now:        now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to release fixture tracking: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) TouchTracking(ctx context.Context, id uuid.UUID, trackerID, instanceID string, now time.Time) (bool, error) {
	n, err := r.queries.TouchTrackingActivity(ctx, db.TouchTrackingActivityParams{
		ID:         id,
		TrackerID:  trackerID,
		InstanceID: instanceID,
		Now:        now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to update tracking activity: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) SetFixtureStatus(ctx context.Context, id uuid.UUID, status models.FixtureStatus, now time.Time) (*models.Fixture, error) {
	fixture, err := r.queries.SetFixtureStatus(ctx, db.SetFixtureStatusParams{ID: id, Status: string(status), Now: now})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFixtureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set fixture status: %w", err)
	}
	return dbFixtureToModel(fixture), nil
}

// TrackerName returns the display name of a tracker, falling back to its id.
func (r *Repository) TrackerName(ctx context.Context, trackerID string) string {
	name, err := r.queries.GetTrackerName(ctx, trackerID)
	if err != nil || name == "" {
		return trackerID
	}
	return name
}

func (r *Repository) InsertPeriod(ctx context.Context, fixtureID uuid.UUID, number int, startedAt time.Time) (*models.PeriodTiming, error) {
	period, err := r.queries.InsertPeriod(ctx, db.InsertPeriodParams{
		ID:            uuid.New(),
		FixtureID:     fixtureID,
		PeriodNumber:  int32(number),
		ActualStartAt: startedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert period: %w", err)
	}
	return dbPeriodToModel(period), nil
}

func (r *Repository) GetPeriod(ctx context.Context, fixtureID, periodID uuid.UUID) (*models.PeriodTiming, error) {
	period, err := r.queries.GetPeriod(ctx, periodID, fixtureID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	return dbPeriodToModel(period), nil
}

func (r *Repository) GetPeriodByNumber(ctx context.Context, fixtureID uuid.UUID, number int) (*models.PeriodTiming, error) {
	period, err := r.queries.GetPeriodByNumber(ctx, fixtureID, int32(number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get period %d: %w", number, err)
	}
	return dbPeriodToModel(period), nil
}

// SetPeriodEnded stamps endedAt on a period; nil reopens it.
func (r *Repository) SetPeriodEnded(ctx context.Context, fixtureID, periodID uuid.UUID, endedAt *time.Time) (*models.PeriodTiming, error) {
	period, err := r.queries.SetPeriodEnded(ctx, periodID, fixtureID, sqlutil.ToSqlTime(endedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update period end: %w", err)
	}
	return dbPeriodToModel(period), nil
}

func (r *Repository) AddPausedSeconds(ctx context.Context, fixtureID, periodID uuid.UUID, seconds int) (*models.PeriodTiming, error) {
	period, err := r.queries.AddPausedSeconds(ctx, periodID, fixtureID, int32(seconds))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add paused seconds: %w", err)
	}
	return dbPeriodToModel(period), nil
}

func (r *Repository) DeletePeriod(ctx context.Context, fixtureID, periodID uuid.UUID) (*models.PeriodTiming, error) {
	period, err := r.queries.DeletePeriod(ctx, periodID, fixtureID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete period: %w", err)
	}
	return dbPeriodToModel(period), nil
}

func (r *Repository) CopyLineupToPeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error {
	if err := r.queries.CopyLineupToPeriod(ctx, fixtureID, periodID); err != nil {
		return fmt.Errorf("failed to copy lineup: %w", err)
	}
	return nil
}

func (r *Repository) CopyActivePlayers(ctx context.Context, fixtureID, fromPeriodID, toPeriodID uuid.UUID) error {
	if err := r.queries.CopyActivePlayers(ctx, fixtureID, fromPeriodID, toPeriodID); err != nil {
		return fmt.Errorf("failed to carry players into period: %w", err)
	}
	return nil
}

func (r *Repository) ListActivePlayers(ctx context.Context, fixtureID, periodID uuid.UUID) ([]models.OnFieldPlayer, error) {
	rows, err := r.queries.ListActivePlayers(ctx, fixtureID, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active players: %w", err)
	}
	players := make([]models.OnFieldPlayer, len(rows))
	for i, row := range rows {
		players[i] = models.OnFieldPlayer{PlayerID: row.PlayerID, OnMinute: int(row.OnMinute)}
	}
	return players, nil
}

// PutPlayerOn marks a player active in a period from onMinute.
func (r *Repository) PutPlayerOn(ctx context.Context, fixtureID, periodID, playerID uuid.UUID, onMinute int) error {
	err := r.queries.UpsertPlayerStatus(ctx, db.UpsertPlayerStatusParams{
		FixtureID: fixtureID,
		PeriodID:  periodID,
		PlayerID:  playerID,
		IsActive:  true,
		OnMinute:  int32(onMinute),
	})
	if err != nil {
		return fmt.Errorf("failed to put player on: %w", err)
	}
	return nil
}

// SetPlayerActive flips a player's active flag, keeping the minute they came on.
func (r *Repository) SetPlayerActive(ctx context.Context, fixtureID, periodID, playerID uuid.UUID, active bool) error {
	_, err := r.queries.SetPlayerActive(ctx, db.SetPlayerActiveParams{
		FixtureID: fixtureID,
		PeriodID:  periodID,
		PlayerID:  playerID,
		IsActive:  active,
	})
	if err != nil {
		return fmt.Errorf("failed to update player status: %w", err)
	}
	return nil
}

func (r *Repository) InsertMatchEvent(ctx context.Context, event models.MatchEvent) (*models.MatchEvent, error) {
	saved, err := r.queries.InsertMatchEvent(ctx, db.InsertMatchEventParams{
		ID:          event.ID,
		FixtureID:   event.FixtureID,
		PeriodID:    sqlutil.ToNullUUID(event.PeriodID),
		EventType:   string(event.EventType),
		PlayerID:    sqlutil.ToNullUUID(event.PlayerID),
		AssistID:    sqlutil.ToNullUUID(event.AssistID),
		MatchMinute: int32(event.MatchMinute),
		IsOurTeam:   event.IsOurTeam,
		Metadata:    pqtype.NullRawMessage{RawMessage: event.Metadata, Valid: len(event.Metadata) > 0},
		CreatedAt:   event.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert match event: %w", err)
	}
	return dbMatchEventToModel(saved), nil
}

func (r *Repository) DeleteMatchEvent(ctx context.Context, fixtureID, eventID uuid.UUID) error {
	n, err := r.queries.DeleteMatchEvent(ctx, eventID, fixtureID)
	if err != nil {
		return fmt.Errorf("failed to delete match event: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *Repository) InsertSubstitution(ctx context.Context, sub models.Substitution) (*models.Substitution, error) {
	saved, err := r.queries.InsertSubstitution(ctx, db.InsertSubstitutionParams{
		ID:          sub.ID,
		FixtureID:   sub.FixtureID,
		PeriodID:    sqlutil.ToNullUUID(sub.PeriodID),
		PlayerOffID: sub.PlayerOffID,
		PlayerOnID:  sub.PlayerOnID,
		MatchMinute: int32(sub.MatchMinute),
		CreatedAt:   sub.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert substitution: %w", err)
	}
	return dbSubstitutionToModel(saved), nil
}

func (r *Repository) DeleteSubstitution(ctx context.Context, fixtureID, substitutionID uuid.UUID) (*models.Substitution, error) {
	deleted, err := r.queries.DeleteSubstitution(ctx, substitutionID, fixtureID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete substitution: %w", err)
	}
	return dbSubstitutionToModel(deleted), nil
}

// Enqueue writes a change notification to the outbox in the caller's transaction.
func (r *Repository) Enqueue(ctx context.Context, eventType events.EventType, fixtureID uuid.UUID, now time.Time, payload any) error {
	env, err := events.NewEnvelope(eventType, fixtureID, now, payload)
	if err != nil {
		return err
	}
	err = r.queries.InsertOutboxEvent(ctx, db.InsertOutboxEventParams{
		ID:        env.EventID,
		FixtureID: fixtureID,
		EventType: string(eventType),
		Payload:   env.Payload,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

func dbFixtureToModel(f db.Fixture) *models.Fixture {
	return &models.Fixture{
		ID:                    f.ID,
		TeamID:                f.TeamID,
		OpponentName:          f.OpponentName,
		Status:                models.FixtureStatus(f.Status),
		KickoffAt:             f.KickoffAt,
		HalfLengthMinutes:     int(f.HalfLengthMinutes),
		ActiveTrackerID:       sqlutil.FromSqlStringPtr(f.ActiveTrackerID),
		ActiveTrackerInstance: sqlutil.FromSqlStringPtr(f.ActiveTrackerInstance),
		TrackingStartedAt:     sqlutil.FromSqlTime(f.TrackingStartedAt),
		CreatedAt:             f.CreatedAt,
		UpdatedAt:             f.UpdatedAt,
	}
}

func dbPeriodToModel(p db.MatchPeriod) *models.PeriodTiming {
	return &models.PeriodTiming{
		PeriodID:      p.ID,
		FixtureID:     p.FixtureID,
		PeriodNumber:  int(p.PeriodNumber),
		ActualStartAt: sqlutil.FromSqlTime(p.ActualStartAt),
		PausedSeconds: int(p.PausedSeconds),
	}
}

func dbMatchEventToModel(e db.MatchEvent) *models.MatchEvent {
	event := &models.MatchEvent{
		ID:          e.ID,
		FixtureID:   e.FixtureID,
		PeriodID:    sqlutil.FromNullUUID(e.PeriodID),
		EventType:   models.MatchEventType(e.EventType),
		PlayerID:    sqlutil.FromNullUUID(e.PlayerID),
		AssistID:    sqlutil.FromNullUUID(e.AssistID),
		MatchMinute: int(e.MatchMinute),
		IsOurTeam:   e.IsOurTeam,
		CreatedAt:   e.CreatedAt,
	}
	if e.Metadata.Valid {
		event.Metadata = e.Metadata.RawMessage
	}
	return event
}

func dbSubstitutionToModel(s db.Substitution) *models.Substitution {
	return &models.Substitution{
		ID:          s.ID,
		FixtureID:   s.FixtureID,
		PeriodID:    sqlutil.FromNullUUID(s.PeriodID),
		PlayerOffID: s.PlayerOffID,
		PlayerOnID:  s.PlayerOnID,
		MatchMinute: int(s.MatchMinute),
		CreatedAt:   s.CreatedAt,
	}
}
