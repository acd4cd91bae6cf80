// Command trackingd serves the tracking RPC surface over Postgres and relays fixture changes
// from the outbox to NATS JetStream.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/matchday/go/internal/config"
	"github.com/mcdev12/matchday/go/internal/dbconfig"
)

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg.Logging)

	dbCfg := dbconfig.NewConfigFromEnv()
	database, err := setupDatabase(dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup database")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services := setupServices(database, cfg)
	relay, err := setupRelay(ctx, services, cfg, dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup outbox relay")
	}
	defer relay.Close()

	health := relay.Health(database, services.Queries, 2*cfg.Realtime.RelayInterval)
	server := setupServer(services, health, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("trackingd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("trackingd stopped with error")
		return
	}
	log.Info().Msg("trackingd stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
