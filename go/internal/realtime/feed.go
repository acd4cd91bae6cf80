package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/tracking/events"
)

type FeedConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	FixtureID     uuid.UUID
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	// InactiveThreshold removes the consumer after the tracker host goes away.
	InactiveThreshold time.Duration
	MaxReconnects     int
	ReconnectWait     time.Duration
}

func DefaultFeedConfig(fixtureID uuid.UUID, instanceID string) FeedConfig {
	return FeedConfig{
		URL:               nats.DefaultURL,
		StreamName:        "TRACKING_EVENTS",
		ConsumerName:      "tracker-" + instanceID,
		FixtureID:         fixtureID,
		MaxDeliver:        5,
		AckWait:           30 * time.Second,
		MaxAckPending:     100,
		InactiveThreshold: time.Hour,
		MaxReconnects:     -1,
		ReconnectWait:     2 * time.Second,
	}
}

// SubjectFilter returns the subject wildcard covering every change on one fixture.
func SubjectFilter(fixtureID uuid.UUID) string {
	return fmt.Sprintf("%s.%s.>", events.SubjectPrefix, fixtureID)
}

// JetStreamFeed delivers a fixture's change notifications from JetStream to a handler.
type JetStreamFeed struct {
	handler  Handler
	nc       *nats.Conn
	consumer jetstream.Consumer
	config   FeedConfig
}

func NewJetStreamFeed(ctx context.Context, handler Handler, cfg FeedConfig) (*JetStreamFeed, error) {
	nc, err := connectNATS(cfg.URL, cfg.MaxReconnects, cfg.ReconnectWait)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	f := &JetStreamFeed{handler: handler, nc: nc, config: cfg}
	if err := f.ensureConsumer(ctx, js); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return f, nil
}

func (f *JetStreamFeed) ensureConsumer(ctx context.Context, js jetstream.JetStream) error {
	stream, err := js.Stream(ctx, f.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          f.config.ConsumerName,
		Durable:       f.config.ConsumerName,
		Description:   "Tracker host realtime feed",
		FilterSubject: SubjectFilter(f.config.FixtureID),
		// the newest message per subject brings a fresh host up to date
		DeliverPolicy:     jetstream.DeliverLastPerSubjectPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		MaxDeliver:        f.config.MaxDeliver,
		AckWait:           f.config.AckWait,
		MaxAckPending:     f.config.MaxAckPending,
		InactiveThreshold: f.config.InactiveThreshold,
		ReplayPolicy:      jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	log.Info().
		Str("consumer", f.config.ConsumerName).
		Str("filter", SubjectFilter(f.config.FixtureID)).
		Msg("JetStream consumer ready")

	f.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled.
func (f *JetStreamFeed) Start(ctx context.Context) error {
	log.Info().Str("consumer", f.config.ConsumerName).Msg("starting realtime feed")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := f.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("realtime feed shutting down")
			return nil
		case msg := <-messageCh:
			if err := dispatch(ctx, f.handler, msg.Data()); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (f *JetStreamFeed) Stop() error {
	if f.nc != nil {
		f.nc.Close()
	}
	return nil
}

func dispatch(ctx context.Context, handler Handler, data []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if env.EventID == uuid.Nil || env.FixtureID == uuid.Nil {
		return fmt.Errorf("envelope missing ids")
	}

	log.Debug().
		Str("event_id", env.EventID.String()).
		Str("fixture_id", env.FixtureID.String()).
		Str("event_type", string(env.EventType)).
		Msg("processing realtime event")

	return handler.HandleEvent(ctx, env)
}
