package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const fixtureColumns = `id, team_id, opponent_name, status, kickoff_at, half_length_minutes,
    active_tracker_id, active_tracker_instance, tracking_started_at, last_tracking_activity,
    created_at, updated_at`

func scanFixture(row rowScanner) (Fixture, error) {
	var i Fixture
	err := row.Scan(
		&i.ID,
		&i.TeamID,
		&i.OpponentName,
		&i.Status,
		&i.KickoffAt,
		&i.HalfLengthMinutes,
		&i.ActiveTrackerID,
		&i.ActiveTrackerInstance,
		&i.TrackingStartedAt,
		&i.LastTrackingActivity,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getFixture = `-- name: GetFixture :one
SELECT ` + fixtureColumns + ` FROM fixtures WHERE id = $1
`

func (q *Queries) GetFixture(ctx context.Context, id uuid.UUID) (Fixture, error) {
	return scanFixture(q.db.QueryRowContext(ctx, getFixture, id))
}

const claimFixtureTracking = `-- name: ClaimFixtureTracking :one
UPDATE fixtures
SET active_tracker_id       = $2,
    active_tracker_instance = $3,
    tracking_started_at     = CASE WHEN active_tracker_id = $2 THEN COALESCE(tracking_started_at, $4) ELSE $4 END,
    last_tracking_activity  = $4,
    updated_at              = $4
WHERE id = $1
  AND status NOT IN ('completed', 'cancelled')
  AND (active_tracker_id IS NULL OR active_tracker_id = $2 OR last_tracking_activity < $5)
RETURNING ` + fixtureColumns

type ClaimFixtureTrackingParams struct {
	ID          uuid.UUID `json:"id"`
	TrackerID   string    `json:"tracker_id"`
	InstanceID  string    `json:"instance_id"`
	Now         time.Time `json:"now"`
	StaleBefore time.Time `json:"stale_before"`
}

func (q *Queries) ClaimFixtureTracking(ctx context.Context, arg ClaimFixtureTrackingParams) (Fixture, error) {
	return scanFixture(q.db.QueryRowContext(ctx, claimFixtureTracking,
		arg.ID,
		arg.TrackerID,
		arg.InstanceID,
		arg.Now,
		arg.StaleBefore,
	))
}

const releaseFixtureTracking = `-- name: ReleaseFixtureTracking :execrows
UPDATE fixtures
SET active_tracker_id       = NULL,
    active_tracker_instance = NULL,
    tracking_started_at     = NULL,
    last_tracking_activity  = NULL,
    updated_at              = $4
WHERE id = $1
  AND active_tracker_id = $2
  AND (active_tracker_instance IS NULL OR active_tracker_instance = $3)
`

type ReleaseFixtureTrackingParams struct {
	ID         uuid.UUID `json:"id"`
	TrackerID  string    `json:"tracker_id"`
	InstanceID string    `json:"instance_id"`
	Now        time.Time `json:"now"`
}

func (q *Queries) ReleaseFixtureTracking(ctx context.Context, arg ReleaseFixtureTrackingParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, releaseFixtureTracking, arg.ID, arg.TrackerID, arg.InstanceID, arg.Now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const touchTrackingActivity = `-- name: TouchTrackingActivity :execrows
UPDATE fixtures
SET last_tracking_activity = $4
WHERE id = $1
  AND active_tracker_id = $2
  AND (active_tracker_instance IS NULL OR active_tracker_instance = $3)
`

type TouchTrackingActivityParams struct {
	ID         uuid.UUID `json:"id"`
	TrackerID  string    `json:"tracker_id"`
	InstanceID string    `json:"instance_id"`
	Now        time.Time `json:"now"`
}

func (q *Queries) TouchTrackingActivity(ctx context.Context, arg TouchTrackingActivityParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, touchTrackingActivity, arg.ID, arg.TrackerID, arg.InstanceID, arg.Now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setFixtureStatus = `-- name: SetFixtureStatus :one
UPDATE fixtures
SET status     = $2,
    updated_at = $3
WHERE id = $1
RETURNING ` + fixtureColumns

type SetFixtureStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Now    time.Time `json:"now"`
}

func (q *Queries) SetFixtureStatus(ctx context.Context, arg SetFixtureStatusParams) (Fixture, error) {
	return scanFixture(q.db.QueryRowContext(ctx, setFixtureStatus, arg.ID, arg.Status, arg.Now))
}

const getTrackerName = `-- name: GetTrackerName :one
SELECT display_name FROM trackers WHERE id = $1
`

func (q *Queries) GetTrackerName(ctx context.Context, id string) (string, error) {
	row := q.db.QueryRowContext(ctx, getTrackerName, id)
	var displayName string
	err := row.Scan(&displayName)
	return displayName, err
}

const insertLineupPlayer = `-- name: InsertLineupPlayer :exec
INSERT INTO fixture_lineups (fixture_id, player_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

func (q *Queries) InsertLineupPlayer(ctx context.Context, fixtureID, playerID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, insertLineupPlayer, fixtureID, playerID)
	return err
}
