package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/matchday/go/internal/dbconfig"
)

// Seed mirrors the JSON layout of the fixtures snapshot.
type Seed struct {
	Trackers []Tracker `json:"trackers"`
	Fixtures []Fixture `json:"fixtures"`
}

type Tracker struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type Fixture struct {
	ID                string   `json:"id"`
	TeamID            string   `json:"team_id"`
	OpponentName      string   `json:"opponent_name"`
	KickoffAt         string   `json:"kickoff_at"`
	HalfLengthMinutes int      `json:"half_length_minutes"`
	Lineup            []string `json:"lineup"`
}

func main() {
	path := "go/internal/assets/fixtures.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert trackers one by one, fixtures with their lineup in one transaction each
	var trackers, inserted, skipped, errs int
	for _, t := range seed.Trackers {
		if _, err := pool.Exec(ctx, `
            INSERT INTO trackers (id, display_name) VALUES ($1, $2)
            ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
        `, t.ID, t.DisplayName); err != nil {
			fmt.Fprintf(os.Stderr, "error upserting tracker %s: %v\n", t.ID, err)
			errs++
			continue
		}
		trackers++
	}

	for _, f := range seed.Fixtures {
		ok, err := seedFixture(ctx, pool, f)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "error inserting fixture %s: %v\n", f.ID, err)
			errs++
		case ok:
			inserted++
		default:
			skipped++
		}
	}

	// 4) Print summary
	fmt.Printf(
		"Fixtures seed complete: %d trackers, %d fixtures total, %d inserted, %d skipped, %d errors\n",
		trackers, len(seed.Fixtures), inserted, skipped, errs,
	)
}

func seedFixture(ctx context.Context, pool *pgxpool.Pool, f Fixture) (bool, error) {
	halfLength := f.HalfLengthMinutes
	if halfLength <= 0 {
		halfLength = 45
	}

	var inserted bool
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx, `
            INSERT INTO fixtures (id, team_id, opponent_name, kickoff_at, half_length_minutes)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (id) DO NOTHING
        `, f.ID, f.TeamID, f.OpponentName, f.KickoffAt, halfLength)
		if err != nil {
			return err
		}
		inserted = cmdTag.RowsAffected() == 1

		batch := &pgx.Batch{}
		for _, playerID := range f.Lineup {
			batch.Queue(`
                INSERT INTO fixture_lineups (fixture_id, player_id) VALUES ($1, $2)
                ON CONFLICT DO NOTHING
            `, f.ID, playerID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return inserted, err
}
