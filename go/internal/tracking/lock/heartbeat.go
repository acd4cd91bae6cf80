package lock

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/tracking/notify"
)

// SendHeartbeat refreshes the claim while this tracker holds it. Failures are logged and
// retried on the next interval; they never release the claim locally.
func (c *Coordinator) SendHeartbeat(ctx context.Context) {
	if !c.IsActiveTracker() {
		return
	}
	err := c.rpc.UpdateTrackingActivity(ctx, c.fixtureID, c.identity)

	c.mu.Lock()
	if err == nil {
		c.heartbeatFailures = 0
		c.heartbeatWarned = false
		c.mu.Unlock()
		log.Debug().Str("fixture_id", c.fixtureID.String()).Msg("tracking heartbeat sent")
		return
	}
	c.heartbeatFailures++
	failures := c.heartbeatFailures
	warn := c.cfg.MaxHeartbeatFailures > 0 && failures >= c.cfg.MaxHeartbeatFailures && !c.heartbeatWarned
	if warn {
		c.heartbeatWarned = true
	}
	c.mu.Unlock()

	log.Warn().Err(err).
		Str("fixture_id", c.fixtureID.String()).
		Int("consecutive_failures", failures).
		Msg("tracking heartbeat failed")
	if warn {
		c.notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Connection problem",
			Description: "Unable to reach the server. Your tracking claim may expire.",
		})
	}
}

// HeartbeatFailures returns the number of consecutive failed heartbeats.
func (c *Coordinator) HeartbeatFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heartbeatFailures
}

func (c *Coordinator) startHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.heartbeatCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.heartbeatCancel = cancel
	c.heartbeatFailures = 0
	c.heartbeatWarned = false

	ticker := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				c.SendHeartbeat(ctx)
			}
		}
	}()
	log.Debug().Str("fixture_id", c.fixtureID.String()).Dur("interval", c.cfg.HeartbeatInterval).Msg("tracking heartbeat started")
}

func (c *Coordinator) stopHeartbeat() {
	c.mu.Lock()
	cancel := c.heartbeatCancel
	c.heartbeatCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		log.Debug().Str("fixture_id", c.fixtureID.String()).Msg("tracking heartbeat stopped")
	}
}

// HeartbeatActive reports whether the heartbeat loop is running.
func (c *Coordinator) HeartbeatActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heartbeatCancel != nil
}
