package main

import (
	"database/sql"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/matchday/go/internal/config"
	"github.com/mcdev12/matchday/go/internal/fixtures"
	fixturesdb "github.com/mcdev12/matchday/go/internal/fixtures/db"
	"github.com/mcdev12/matchday/go/internal/rpc"
)

type Services struct {
	Queries  *fixturesdb.Queries
	Fixtures *fixtures.App
	Tracking *rpc.Service
}

func setupServices(database *sql.DB, cfg *config.Config) *Services {
	// Database layer → Repository layer → App layer → Service layer
	queries := fixturesdb.New(database)
	repo := fixtures.NewRepository(queries)
	app := fixtures.NewApp(repo, fixtures.InTx(database), clockwork.NewRealClock(), cfg.Tracking.StaleClaimAfter)
	service := rpc.NewService(app)

	return &Services{
		Queries:  queries,
		Fixtures: app,
		Tracking: service,
	}
}
