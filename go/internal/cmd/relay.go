package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/config"
	"github.com/mcdev12/matchday/go/internal/realtime"
	"github.com/mcdev12/matchday/go/internal/tracking/events"
)

// outboxRelay drains the tracking outbox. In jetstream mode rows are published to NATS; in
// postgres mode hosts read rows themselves and the relay only marks them sent.
type outboxRelay struct {
	listener  *realtime.OutboxListener
	publisher *realtime.JetStreamPublisher
}

func setupRelay(ctx context.Context, services *Services, cfg *config.Config, databaseURL string) (*outboxRelay, error) {
	relay := &outboxRelay{}

	var sink realtime.Sink
	switch cfg.Realtime.Mode {
	case config.RealtimeJetStream:
		jsCfg := realtime.DefaultJetStreamConfig()
		jsCfg.URL = cfg.Realtime.NatsURL
		jsCfg.StreamName = cfg.Realtime.Stream
		publisher, err := realtime.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		relay.publisher = publisher
		sink = publisher
	default:
		sink = realtime.HandlerSink{Handler: realtime.HandlerFunc(logEnvelope)}
	}

	listenerCfg := realtime.DefaultListenerConfig()
	listenerCfg.DatabaseURL = databaseURL
	listenerCfg.FallbackInterval = cfg.Realtime.RelayInterval
	listener, err := realtime.NewOutboxListener(services.Queries, sink, clockwork.NewRealClock(), listenerCfg)
	if err != nil {
		relay.Close()
		return nil, err
	}
	relay.listener = listener
	return relay, nil
}

// Health reports on the relay, its database and (in jetstream mode) NATS.
func (r *outboxRelay) Health(database *sql.DB, pending realtime.PendingCounter, threshold time.Duration) *realtime.HealthChecker {
	var nats realtime.Connectivity
	if r.publisher != nil {
		nats = r.publisher
	}
	return realtime.NewHealthChecker(r.listener, database, pending, nats, clockwork.NewRealClock(), threshold)
}

func (r *outboxRelay) Run(ctx context.Context) error {
	return r.listener.Start(ctx)
}

func (r *outboxRelay) Close() {
	if r.listener != nil {
		if err := r.listener.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop outbox listener")
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close JetStream publisher")
		}
	}
}

func logEnvelope(_ context.Context, env events.Envelope) error {
	log.Debug().
		Str("event_id", env.EventID.String()).
		Str("event_type", string(env.EventType)).
		Str("fixture_id", env.FixtureID.String()).
		Msg("outbox event relayed")
	return nil
}
