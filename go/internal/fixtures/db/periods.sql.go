package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const periodColumns = `id, fixture_id, period_number, actual_start_at, ended_at, paused_seconds`

func scanPeriod(row rowScanner) (MatchPeriod, error) {
	var i MatchPeriod
	err := row.Scan(
		&i.ID,
		&i.FixtureID,
		&i.PeriodNumber,
		&i.ActualStartAt,
		&i.EndedAt,
		&i.PausedSeconds,
	)
	return i, err
}

const insertPeriod = `-- name: InsertPeriod :one
INSERT INTO match_periods (id, fixture_id, period_number, actual_start_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (fixture_id, period_number) DO UPDATE
SET actual_start_at = EXCLUDED.actual_start_at, ended_at = NULL, paused_seconds = 0
RETURNING ` + periodColumns

type InsertPeriodParams struct {
	ID            uuid.UUID `json:"id"`
	FixtureID     uuid.UUID `json:"fixture_id"`
	PeriodNumber  int32     `json:"period_number"`
	ActualStartAt time.Time `json:"actual_start_at"`
}

func (q *Queries) InsertPeriod(ctx context.Context, arg InsertPeriodParams) (MatchPeriod, error) {
	return scanPeriod(q.db.QueryRowContext(ctx, insertPeriod, arg.ID, arg.FixtureID, arg.PeriodNumber, arg.ActualStartAt))
}

const getPeriod = `-- name: GetPeriod :one
SELECT ` + periodColumns + ` FROM match_periods WHERE id = $1 AND fixture_id = $2
`

func (q *Queries) GetPeriod(ctx context.Context, id, fixtureID uuid.UUID) (MatchPeriod, error) {
	return scanPeriod(q.db.QueryRowContext(ctx, getPeriod, id, fixtureID))
}

const getPeriodByNumber = `-- name: GetPeriodByNumber :one
SELECT ` + periodColumns + ` FROM match_periods WHERE fixture_id = $1 AND period_number = $2
`

func (q *Queries) GetPeriodByNumber(ctx context.Context, fixtureID uuid.UUID, number int32) (MatchPeriod, error) {
	return scanPeriod(q.db.QueryRowContext(ctx, getPeriodByNumber, fixtureID, number))
}

const setPeriodEnded = `-- name: SetPeriodEnded :one
UPDATE match_periods SET ended_at = $3 WHERE id = $1 AND fixture_id = $2
RETURNING ` + periodColumns

func (q *Queries) SetPeriodEnded(ctx context.Context, id, fixtureID uuid.UUID, endedAt sql.NullTime) (MatchPeriod, error) {
	return scanPeriod(q.db.QueryRowContext(ctx, setPeriodEnded, id, fixtureID, endedAt))
}

const addPausedSeconds = `-- name: AddPausedSeconds :one
UPDATE match_periods SET paused_seconds = paused_seconds + $3 WHERE id = $1 AND fixture_id = $2
RETURNING ` + periodColumns

func (q *Queries) AddPausedSeconds(ctx context.Context, id, fixtureID uuid.UUID, seconds int32) (MatchPeriod, error) {
	return scanPeriod(q.db.QueryRowContext(ctx, addPausedSeconds, id, fixtureID, seconds))
}

const deletePeriod = `-- name: DeletePeriod :one
DELETE FROM match_periods WHERE id = $1 AND fixture_id = $2
RETURNING ` + periodColumns

func (q *Queries) DeletePeriod(ctx context.Context, id, fixtureID uuid.UUID) (MatchPeriod, error) {
	return scanPeriod(q.db.QueryRowContext(ctx, deletePeriod, id, fixtureID))
}

const copyLineupToPeriod = `-- name: CopyLineupToPeriod :exec
INSERT INTO player_match_status (fixture_id, period_id, player_id, is_active, on_minute)
SELECT fixture_id, $2, player_id, TRUE, 0 FROM fixture_lineups WHERE fixture_id = $1
ON CONFLICT DO NOTHING
`

func (q *Queries) CopyLineupToPeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, copyLineupToPeriod, fixtureID, periodID)
	return err
}

const copyActivePlayers = `-- name: CopyActivePlayers :exec
INSERT INTO player_match_status (fixture_id, period_id, player_id, is_active, on_minute)
SELECT fixture_id, $3, player_id, TRUE, 0 FROM player_match_status
WHERE fixture_id = $1 AND period_id = $2 AND is_active
ON CONFLICT DO NOTHING
`

func (q *Queries) CopyActivePlayers(ctx context.Context, fixtureID, fromPeriodID, toPeriodID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, copyActivePlayers, fixtureID, fromPeriodID, toPeriodID)
	return err
}

const listActivePlayers = `-- name: ListActivePlayers :many
SELECT player_id, on_minute FROM player_match_status
WHERE fixture_id = $1 AND period_id = $2 AND is_active
ORDER BY player_id
`

type ListActivePlayersRow struct {
	PlayerID uuid.UUID `json:"player_id"`
	OnMinute int32     `json:"on_minute"`
}

func (q *Queries) ListActivePlayers(ctx context.Context, fixtureID, periodID uuid.UUID) ([]ListActivePlayersRow, error) {
	rows, err := q.db.QueryContext(ctx, listActivePlayers, fixtureID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListActivePlayersRow
	for rows.Next() {
		var i ListActivePlayersRow
		if err := rows.Scan(&i.PlayerID, &i.OnMinute); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertPlayerStatus = `-- name: UpsertPlayerStatus :exec
INSERT INTO player_match_status (fixture_id, period_id, player_id, is_active, on_minute)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (fixture_id, period_id, player_id) DO UPDATE
SET is_active = EXCLUDED.is_active, on_minute = EXCLUDED.on_minute
`

type UpsertPlayerStatusParams struct {
	FixtureID uuid.UUID `json:"fixture_id"`
	PeriodID  uuid.UUID `json:"period_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	IsActive  bool      `json:"is_active"`
	OnMinute  int32     `json:"on_minute"`
}

func (q *Queries) UpsertPlayerStatus(ctx context.Context, arg UpsertPlayerStatusParams) error {
	_, err := q.db.ExecContext(ctx, upsertPlayerStatus, arg.FixtureID, arg.PeriodID, arg.PlayerID, arg.IsActive, arg.OnMinute)
	return err
}

const setPlayerActive = `-- name: SetPlayerActive :execrows
UPDATE player_match_status SET is_active = $4
WHERE fixture_id = $1 AND period_id = $2 AND player_id = $3
`

type SetPlayerActiveParams struct {
	FixtureID uuid.UUID `json:"fixture_id"`
	PeriodID  uuid.UUID `json:"period_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	IsActive  bool      `json:"is_active"`
}

func (q *Queries) SetPlayerActive(ctx context.Context, arg SetPlayerActiveParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setPlayerActive, arg.FixtureID, arg.PeriodID, arg.PlayerID, arg.IsActive)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
