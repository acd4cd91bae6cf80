package realtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/fixtures/db"
	"github.com/mcdev12/matchday/go/internal/tracking/events"
)

// NotifyChannel is the Postgres channel the outbox trigger notifies on.
const NotifyChannel = "tracking_outbox_events"

// OutboxStore reads and acknowledges outbox rows.
type OutboxStore interface {
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (db.TrackingOutbox, error)
	FetchUnsentOutbox(ctx context.Context, limit int32) ([]db.TrackingOutbox, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
}

type ListenerConfig struct {
	DatabaseURL   string
	NotifyChannel string
	// FallbackInterval sweeps unsent rows missed by NOTIFY. Zero disables the sweep.
	FallbackInterval time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32
	// MarkSent acknowledges rows once relayed. Only the relay owns the outbox; read-only
	// listeners leave it untouched.
	MarkSent bool
	// FixtureID limits delivery to one fixture when set.
	FixtureID uuid.UUID
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    NotifyChannel,
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
		MarkSent:         true,
	}
}

// OutboxListener turns outbox NOTIFY pings into envelopes for a sink.
type OutboxListener struct {
	store    OutboxStore
	sink     Sink
	listener *pq.Listener
	clock    clockwork.Clock
	cfg      ListenerConfig

	stopOnce sync.Once
	stopErr  error

	running     atomic.Bool
	relayed     atomic.Uint64
	lastRelayed atomic.Int64
}

func NewOutboxListener(store OutboxStore, sink Sink, clock clockwork.Clock, cfg ListenerConfig) (*OutboxListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}
	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for notifications")

	ol := newOutboxListener(store, sink, clock, cfg)
	ol.listener = l
	return ol, nil
}

func newOutboxListener(store OutboxStore, sink Sink, clock clockwork.Clock, cfg ListenerConfig) *OutboxListener {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &OutboxListener{
		store: store,
		sink:  sink,
		clock: clock,
		cfg:   cfg,
	}
}

// NewPGFeed delivers one fixture's changes from Postgres NOTIFY straight to a handler,
// without touching the relay's sent markers.
func NewPGFeed(store OutboxStore, handler Handler, databaseURL string, fixtureID uuid.UUID) (*OutboxListener, error) {
	cfg := DefaultListenerConfig()
	cfg.DatabaseURL = databaseURL
	cfg.FallbackInterval = 0
	cfg.MarkSent = false
	cfg.FixtureID = fixtureID
	cfg.MaxRetries = 0
	return NewOutboxListener(store, HandlerSink{Handler: handler}, nil, cfg)
}

func (l *OutboxListener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Bool("mark_sent", l.cfg.MarkSent).
		Msg("outbox listener started")
	l.running.Store(true)
	defer l.running.Store(false)

	pingTicker := l.clock.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	var fallback <-chan time.Time
	if l.cfg.FallbackInterval > 0 {
		fallbackTicker := l.clock.NewTicker(l.cfg.FallbackInterval)
		defer fallbackTicker.Stop()
		fallback = fallbackTicker.Chan()
		if err := l.processUnsent(ctx); err != nil {
			log.Error().Err(err).Msg("failed to process unsent events")
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// connection was re-established; rows may have been missed
				if l.cfg.FallbackInterval > 0 {
					if err := l.processUnsent(ctx); err != nil {
						log.Error().Err(err).Msg("failed to process unsent events")
					}
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallback:
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.Chan():
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stop closes the Postgres listener. Later calls are no-ops.
func (l *OutboxListener) Stop() error {
	if l.listener == nil {
		return nil
	}
	l.stopOnce.Do(func() { l.stopErr = l.listener.Close() })
	return l.stopErr
}

// handleNotification relays the outbox row whose id arrived as the notification payload.
func (l *OutboxListener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	row, err := l.store.FetchOutboxByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	if row.SentAt.Valid && l.cfg.MarkSent {
		return nil
	}
	return l.relay(ctx, row)
}

func (l *OutboxListener) processUnsent(ctx context.Context) error {
	unsent, err := l.store.FetchUnsentOutbox(ctx, l.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	for _, row := range unsent {
		if err := l.relay(ctx, row); err != nil {
			log.Error().Err(err).Str("event_id", row.ID.String()).Msg("failed to relay event")
		}
	}
	return nil
}

func (l *OutboxListener) relay(ctx context.Context, row db.TrackingOutbox) error {
	if l.cfg.FixtureID != uuid.Nil && row.FixtureID != l.cfg.FixtureID {
		return nil
	}
	env := rowToEnvelope(row)
	if err := l.publishWithRetry(ctx, env); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if l.cfg.MarkSent {
		if err := l.store.MarkOutboxSent(ctx, row.ID); err != nil {
			return fmt.Errorf("failed to mark outbox event as sent: %w", err)
		}
	}
	l.relayed.Add(1)
	l.lastRelayed.Store(l.clock.Now().UnixNano())
	if !l.cfg.MarkSent {
		return nil
	}
	log.Debug().Str("event_id", row.ID.String()).Msg("relayed and marked event as sent")
	return nil
}

func (l *OutboxListener) publishWithRetry(ctx context.Context, env events.Envelope) error {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.clock.After(l.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := l.sink.Publish(ctx, env); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", env.EventID.String()).
				Msg("failed to publish, retrying")
			continue
		}
		if attempt > 0 {
			log.Info().Int("attempt", attempt+1).Str("event_id", env.EventID.String()).Msg("publish succeeded after retry")
		}
		return nil
	}
	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}

// Stats returns how many events were relayed and when the last one went out.
func (l *OutboxListener) Stats() (uint64, time.Time) {
	var last time.Time
	if ns := l.lastRelayed.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return l.relayed.Load(), last
}

// Running reports whether Start is processing notifications.
func (l *OutboxListener) Running() bool {
	return l.running.Load()
}

func rowToEnvelope(row db.TrackingOutbox) events.Envelope {
	return events.Envelope{
		EventID:   row.ID,
		EventType: events.EventType(row.EventType),
		FixtureID: row.FixtureID,
		Timestamp: row.CreatedAt,
		Payload:   row.Payload,
	}
}
