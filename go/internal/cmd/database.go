package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/dbconfig"
	"github.com/mcdev12/matchday/go/internal/fixtures"
)

func setupDatabase(dbConfig dbconfig.Config) (*sql.DB, error) {
	database, err := dbConfig.Open()
	if err != nil {
		return nil, err
	}

	if err := fixtures.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Info().
		Str("user", dbConfig.User).
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("connected to database")
	return database, nil
}
