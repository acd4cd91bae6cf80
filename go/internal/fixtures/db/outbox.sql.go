package db

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

const insertOutboxEvent = `-- name: InsertOutboxEvent :exec
INSERT INTO tracking_outbox (id, fixture_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)
`

type InsertOutboxEventParams struct {
	ID        uuid.UUID       `json:"id"`
	FixtureID uuid.UUID       `json:"fixture_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt interface{}     `json:"created_at"`
}

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent,
		arg.ID,
		arg.FixtureID,
		arg.EventType,
		arg.Payload,
		arg.CreatedAt,
	)
	return err
}

const fetchOutboxByID = `-- name: FetchOutboxByID :one
SELECT id, fixture_id, event_type, payload, created_at, sent_at FROM tracking_outbox WHERE id = $1
`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (TrackingOutbox, error) {
	row := q.db.QueryRowContext(ctx, fetchOutboxByID, id)
	var i TrackingOutbox
	err := row.Scan(
		&i.ID,
		&i.FixtureID,
		&i.EventType,
		&i.Payload,
		&i.CreatedAt,
		&i.SentAt,
	)
	return i, err
}

const fetchUnsentOutbox = `-- name: FetchUnsentOutbox :many
SELECT id, fixture_id, event_type, payload, created_at, sent_at FROM tracking_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]TrackingOutbox, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TrackingOutbox
	for rows.Next() {
		var i TrackingOutbox
		if err := rows.Scan(
			&i.ID,
			&i.FixtureID,
			&i.EventType,
			&i.Payload,
			&i.CreatedAt,
			&i.SentAt,
		); err != nil {
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

const markOutboxSent = `-- name: MarkOutboxSent :exec
UPDATE tracking_outbox SET sent_at = NOW() WHERE id = $1
`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}

const countUnsentOutbox = `-- name: CountUnsentOutbox :one
SELECT COUNT(*) FROM tracking_outbox WHERE sent_at IS NULL
`

func (q *Queries) CountUnsentOutbox(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUnsentOutbox)
	var count int64
	err := row.Scan(&count)
	return count, err
}
