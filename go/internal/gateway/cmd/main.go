// Command tracker runs one device's live tracking session for a fixture and serves it to UI
// clients over WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/matchday/go/internal/config"
	"github.com/mcdev12/matchday/go/internal/dbconfig"
	fixturesdb "github.com/mcdev12/matchday/go/internal/fixtures/db"
	"github.com/mcdev12/matchday/go/internal/gateway"
	"github.com/mcdev12/matchday/go/internal/realtime"
	"github.com/mcdev12/matchday/go/internal/rpc"
	"github.com/mcdev12/matchday/go/internal/scheduler"
	"github.com/mcdev12/matchday/go/internal/tracking/lock"
	"github.com/mcdev12/matchday/go/internal/tracking/notify"
	"github.com/mcdev12/matchday/go/internal/tracking/session"
	"github.com/mcdev12/matchday/go/internal/tracking/snapshot"
)

// feed delivers fixture changes to the session.
type feed interface {
	Start(ctx context.Context) error
	Stop() error
}

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg.Logging)
	if err := cfg.ValidateHost(); err != nil {
		log.Fatal().Err(err).Msg("invalid tracker configuration")
	}

	fixtureID := cfg.Host.FixtureID
	identity := lock.NewIdentity(cfg.Host.UserID)
	clock := clockwork.NewRealClock()

	log.Info().
		Str("fixture_id", fixtureID.String()).
		Str("user_id", identity.UserID).
		Str("instance_id", identity.InstanceID).
		Str("backend_url", cfg.Backend.URL).
		Str("realtime", string(cfg.Realtime.Mode)).
		Msg("starting tracker")

	store, err := snapshot.OpenSQLiteStore(cfg.Snapshot.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot store")
	}
	defer store.Close()

	backend := rpc.NewClient(&http.Client{Timeout: cfg.Backend.Timeout}, cfg.Backend.URL)
	gw := gateway.NewService(gateway.DefaultConfig(), clock)

	sess := session.New(fixtureID, identity, session.Deps{
		Clock:    clock,
		Store:    store,
		RPC:      backend,
		Periods:  backend,
		Fixtures: backend,
		Writer:   backend,
		Notifier: notify.Multi{notify.LogNotifier{}, gw.Notifier()},
	}, session.Config{
		UndoWindow: cfg.Tracking.UndoWindow,
		Lock: lock.Config{
			HeartbeatInterval:    cfg.Tracking.HeartbeatInterval,
			MaxHeartbeatFailures: cfg.Tracking.MaxHeartbeatFailures,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Open(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to open tracking session")
	}
	gw.Attach(sess)

	sched, err := setupScheduler(clock, sess, backend, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup scheduler")
	}

	changes, err := setupFeed(ctx, sess, identity, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup realtime feed")
	}

	server := setupServer(gw, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gw.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return changes.Start(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
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
	sched.Start()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("tracker stopped with error")
	}

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop scheduler")
	}
	if err := changes.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop realtime feed")
	}
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess.Close(closeCtx)
	log.Info().Msg("tracker stopped")
}

func setupScheduler(clock clockwork.Clock, sess *session.Session, lookup snapshot.FixtureLookup, cfg *config.Config) (*scheduler.Service, error) {
	sched, err := scheduler.New(clock)
	if err != nil {
		return nil, err
	}
	_, err = sched.AddIntervalJob("snapshot-orphan-sweep", cfg.Snapshot.OrphanSweepInterval, 2*time.Minute, false, func(ctx context.Context) {
		removed, err := sess.Snapshots().CleanupOrphans(ctx, lookup)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("orphan snapshot sweep failed")
			return
		}
		if removed > 0 {
			log.Ctx(ctx).Info().Int("removed", removed).Msg("removed orphaned snapshots")
		}
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

func setupFeed(ctx context.Context, sess *session.Session, identity lock.Identity, cfg *config.Config) (feed, error) {
	switch cfg.Realtime.Mode {
	case config.RealtimePostgres:
		dbCfg := dbconfig.NewConfigFromEnv()
		database, err := dbCfg.Open()
		if err != nil {
			return nil, err
		}
		// the listener keeps its own connection; queries go through the pool
		return realtime.NewPGFeed(fixturesdb.New(database), sess, dbCfg.DSN(), sess.FixtureID())
	case config.RealtimeJetStream:
		feedCfg := realtime.DefaultFeedConfig(sess.FixtureID(), identity.InstanceID)
		feedCfg.URL = cfg.Realtime.NatsURL
		feedCfg.StreamName = cfg.Realtime.Stream
		return realtime.NewJetStreamFeed(ctx, sess, feedCfg)
	default:
		return nil, fmt.Errorf("unknown realtime mode %q", cfg.Realtime.Mode)
	}
}

func setupServer(gw *gateway.Service, cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:     c.Handler(mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
