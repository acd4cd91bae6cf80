package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const insertMatchEvent = `-- name: InsertMatchEvent :one
INSERT INTO match_events (id, fixture_id, period_id, event_type, player_id, assist_id, match_minute, is_our_team, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, fixture_id, period_id, event_type, player_id, assist_id, match_minute, is_our_team, metadata, created_at
`

type InsertMatchEventParams struct {
	ID          uuid.UUID             `json:"id"`
	FixtureID   uuid.UUID             `json:"fixture_id"`
	PeriodID    uuid.NullUUID         `json:"period_id"`
	EventType   string                `json:"event_type"`
	PlayerID    uuid.NullUUID         `json:"player_id"`
	AssistID    uuid.NullUUID         `json:"assist_id"`
	MatchMinute int32                 `json:"match_minute"`
	IsOurTeam   bool                  `json:"is_our_team"`
	Metadata    pqtype.NullRawMessage `json:"metadata"`
	CreatedAt   interface{}           `json:"created_at"`
}

func (q *Queries) InsertMatchEvent(ctx context.Context, arg InsertMatchEventParams) (MatchEvent, error) {
	row := q.db.QueryRowContext(ctx, insertMatchEvent,
		arg.ID,
		arg.FixtureID,
		arg.PeriodID,
		arg.EventType,
		arg.PlayerID,
		arg.AssistID,
		arg.MatchMinute,
		arg.IsOurTeam,
		arg.Metadata,
		arg.CreatedAt,
	)
	var i MatchEvent
	err := row.Scan(
		&i.ID,
		&i.FixtureID,
		&i.PeriodID,
		&i.EventType,
		&i.PlayerID,
		&i.AssistID,
		&i.MatchMinute,
		&i.IsOurTeam,
		&i.Metadata,
		&i.CreatedAt,
	)
	return i, err
}

const deleteMatchEvent = `-- name: DeleteMatchEvent :execrows
DELETE FROM match_events WHERE id = $1 AND fixture_id = $2
`

func (q *Queries) DeleteMatchEvent(ctx context.Context, id, fixtureID uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteMatchEvent, id, fixtureID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const insertSubstitution = `-- name: InsertSubstitution :one
INSERT INTO substitutions (id, fixture_id, period_id, player_off_id, player_on_id, match_minute, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, fixture_id, period_id, player_off_id, player_on_id, match_minute, created_at
`

type InsertSubstitutionParams struct {
	ID          uuid.UUID     `json:"id"`
	FixtureID   uuid.UUID     `json:"fixture_id"`
	PeriodID    uuid.NullUUID `json:"period_id"`
	PlayerOffID uuid.UUID     `json:"player_off_id"`
	PlayerOnID  uuid.UUID     `json:"player_on_id"`
	MatchMinute int32         `json:"match_minute"`
	CreatedAt   interface{}   `json:"created_at"`
}

func (q *Queries) InsertSubstitution(ctx context.Context, arg InsertSubstitutionParams) (Substitution, error) {
	row := q.db.QueryRowContext(ctx, insertSubstitution,
		arg.ID,
		arg.FixtureID,
		arg.PeriodID,
		arg.PlayerOffID,
		arg.PlayerOnID,
		arg.MatchMinute,
		arg.CreatedAt,
	)
	return scanSubstitution(row)
}

const deleteSubstitution = `-- name: DeleteSubstitution :one
DELETE FROM substitutions WHERE id = $1 AND fixture_id = $2
RETURNING id, fixture_id, period_id, player_off_id, player_on_id, match_minute, created_at
`

func (q *Queries) DeleteSubstitution(ctx context.Context, id, fixtureID uuid.UUID) (Substitution, error) {
	return scanSubstitution(q.db.QueryRowContext(ctx, deleteSubstitution, id, fixtureID))
}

func scanSubstitution(row rowScanner) (Substitution, error) {
	var i Substitution
	err := row.Scan(
		&i.ID,
		&i.FixtureID,
		&i.PeriodID,
		&i.PlayerOffID,
		&i.PlayerOnID,
		&i.MatchMinute,
		&i.CreatedAt,
	)
	return i, err
}
