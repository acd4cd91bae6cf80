// Package realtime moves tracking change notifications between Postgres, NATS JetStream and
// live sessions.
package realtime

import (
	"context"

	"github.com/mcdev12/matchday/go/internal/tracking/events"
)

// Handler consumes change notifications.
type Handler interface {
	HandleEvent(ctx context.Context, env events.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env events.Envelope) error

func (f HandlerFunc) HandleEvent(ctx context.Context, env events.Envelope) error {
	return f(ctx, env)
}

// Sink receives envelopes relayed out of the outbox.
type Sink interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// HandlerSink delivers relayed envelopes straight to a handler.
type HandlerSink struct {
	Handler Handler
}

func (s HandlerSink) Publish(ctx context.Context, env events.Envelope) error {
	return s.Handler.HandleEvent(ctx, env)
}
