package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// maxPendingEvents is the backlog above which the relay reports a warning.
const maxPendingEvents = 1000

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastEventTime     time.Time `json:"last_event_time"`
	EventsRelayed     uint64    `json:"events_relayed"`
	PendingEvents     int64     `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

// RelayStats is what the health check reads from the relay.
type RelayStats interface {
	Stats() (uint64, time.Time)
	Running() bool
}

// PendingCounter counts outbox rows not yet relayed.
type PendingCounter interface {
	CountUnsentOutbox(ctx context.Context) (int64, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Connectivity reports whether a downstream connection is up.
type Connectivity interface {
	Connected() bool
}

// HealthChecker reports on the outbox relay of the tracking backend.
type HealthChecker struct {
	relay   RelayStats
	db      Pinger
	pending PendingCounter
	// nats is nil when the relay does not publish to JetStream.
	nats      Connectivity
	clock     clockwork.Clock
	threshold time.Duration
}

// NewHealthChecker builds a checker. threshold is how long a backlog may go without a relayed
// event before the relay is considered stuck.
func NewHealthChecker(relay RelayStats, db Pinger, pending PendingCounter, nats Connectivity, clock clockwork.Clock, threshold time.Duration) *HealthChecker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthChecker{
		relay:     relay,
		db:        db,
		pending:   pending,
		nats:      nats,
		clock:     clock,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	status.EventsRelayed, status.LastEventTime = h.relay.Stats()

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.nats != nil {
		status.NATSConnected = h.nats.Connected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.ListenerActive = h.relay.Running()
	if !status.ListenerActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "listener not active")
	}

	if status.DatabaseConnected {
		pending, err := h.pending.CountUnsentOutbox(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > maxPendingEvents {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		since := h.clock.Since(status.LastEventTime)
		if since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events relayed for %s", since.Round(time.Second)))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}

// MetricsHandler serves the relay status in the Prometheus text exposition format.
func (h *HealthChecker) MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if _, err := w.Write([]byte(FormatMetrics(h.Check(ctx)))); err != nil {
			log.Error().Err(err).Msg("failed to write metrics")
		}
	})
}

// FormatMetrics renders status as Prometheus gauges and counters.
func FormatMetrics(status HealthStatus) string {
	var lastEvent int64
	if !status.LastEventTime.IsZero() {
		lastEvent = status.LastEventTime.Unix()
	}

	return fmt.Sprintf(`# HELP tracking_outbox_healthy Whether the outbox relay is healthy
# TYPE tracking_outbox_healthy gauge
tracking_outbox_healthy %d
# HELP tracking_outbox_events_relayed_total Total number of events relayed
# TYPE tracking_outbox_events_relayed_total counter
tracking_outbox_events_relayed_total %d
# HELP tracking_outbox_pending_events Current number of unsent events
# TYPE tracking_outbox_pending_events gauge
tracking_outbox_pending_events %d
# HELP tracking_outbox_database_connected Whether the database is connected
# TYPE tracking_outbox_database_connected gauge
tracking_outbox_database_connected %d
# HELP tracking_outbox_nats_connected Whether NATS is connected
# TYPE tracking_outbox_nats_connected gauge
tracking_outbox_nats_connected %d
# HELP tracking_outbox_listener_active Whether the listener is active
# TYPE tracking_outbox_listener_active gauge
tracking_outbox_listener_active %d
# HELP tracking_outbox_last_event_timestamp Unix timestamp of the last relayed event
# TYPE tracking_outbox_last_event_timestamp gauge
tracking_outbox_last_event_timestamp %d
`,
		boolGauge(status.Healthy),
		status.EventsRelayed,
		status.PendingEvents,
		boolGauge(status.DatabaseConnected),
		boolGauge(status.NATSConnected),
		boolGauge(status.ListenerActive),
		lastEvent,
	)
}

func boolGauge(v bool) int {
	if v {
		return 1
	}
	return 0
}
