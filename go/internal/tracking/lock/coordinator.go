// Package lock coordinates the single-writer tracking claim on a fixture.
//
// The backend arbitrates who holds the claim. Claim and release responses are applied as
// optimistic predictions; fixture notifications from the realtime feed are authoritative and
// always override them.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/notify"
	"github.com/mcdev12/matchday/go/internal/tracking/optimistic"
)

var (
	ErrCompleted = errors.New("match is completed")
	ErrNotHolder = errors.New("another device is tracking this match")
)

// DefaultHeartbeatInterval is how often a holder refreshes its claim.
const DefaultHeartbeatInterval = 30 * time.Second

// Identity is who this tracker is. InstanceID is unique per running session so two sessions
// of the same user are told apart.
type Identity struct {
	UserID     string
	InstanceID string
}

// NewIdentity returns an identity for userID with a fresh instance id.
func NewIdentity(userID string) Identity {
	return Identity{UserID: userID, InstanceID: uuid.NewString()}
}

// ClaimResult is the backend's answer to a claim request.
type ClaimResult struct {
	Success           bool       `json:"success"`
	Error             string     `json:"error,omitempty"`
	HolderID          string     `json:"holder_id,omitempty"`
	HolderName        string     `json:"holder_name,omitempty"`
	HolderInstance    string     `json:"holder_instance,omitempty"`
	TrackingStartedAt *time.Time `json:"tracking_started_at,omitempty"`
}

// TrackingRPC is the backend surface that arbitrates the claim.
type TrackingRPC interface {
	ClaimMatchTracking(ctx context.Context, fixtureID uuid.UUID, who Identity) (ClaimResult, error)
	ReleaseMatchTracking(ctx context.Context, fixtureID uuid.UUID, who Identity) error
	UpdateTrackingActivity(ctx context.Context, fixtureID uuid.UUID, who Identity) error
}

// SnapshotClearer drops the local snapshot of a fixture.
type SnapshotClearer interface {
	Clear(ctx context.Context, fixtureID uuid.UUID) error
}

// Holder is the tracker currently holding the claim. The zero value means unclaimed.
type Holder struct {
	UserID     string
	InstanceID string
	StartedAt  *time.Time
}

// Status is the coordinator's view of the claim.
type Status int

const (
	StatusUnclaimed Status = iota
	StatusSelf
	StatusOther
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusUnclaimed:
		return "unclaimed"
	case StatusSelf:
		return "self"
	case StatusOther:
		return "other"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Config tunes heartbeat behaviour.
type Config struct {
	HeartbeatInterval time.Duration
	// MaxHeartbeatFailures is the number of consecutive heartbeat failures after which one
	// warning is shown. Zero never warns.
	MaxHeartbeatFailures int
}

// Coordinator tracks the claim on one fixture for one identity.
type Coordinator struct {
	fixtureID uuid.UUID
	identity  Identity
	rpc       TrackingRPC
	notifier  notify.Notifier
	snapshots SnapshotClearer
	clock     clockwork.Clock
	cfg       Config

	holder *optimistic.Value[Holder]

	mu                sync.Mutex
	completed         bool
	heartbeatCancel   context.CancelFunc
	heartbeatFailures int
	heartbeatWarned   bool
	wg                sync.WaitGroup
}

// NewCoordinator creates a coordinator that starts out unclaimed.
func NewCoordinator(fixtureID uuid.UUID, identity Identity, rpc TrackingRPC, notifier notify.Notifier, snapshots SnapshotClearer, clock clockwork.Clock, cfg Config) *Coordinator {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Coordinator{
		fixtureID: fixtureID,
		identity:  identity,
		rpc:       rpc,
		notifier:  notifier,
		snapshots: snapshots,
		clock:     clock,
		cfg:       cfg,
		holder:    optimistic.New(Holder{}),
	}
}

// Identity returns the local identity.
func (c *Coordinator) Identity() Identity {
	return c.identity
}

// Claim asks the backend for the tracking claim and reports whether this tracker now holds it.
// Failures are reported through the notifier, never returned.
func (c *Coordinator) Claim(ctx context.Context) bool {
	logger := log.With().Str("fixture_id", c.fixtureID.String()).Str("tracker_id", c.identity.UserID).Logger()

	if c.isCompleted() {
		logger.Info().Msg("claim refused for completed match")
		c.notifier.Notify(notify.Notification{
			Level:       notify.LevelInfo,
			Title:       "Match completed",
			Description: "This match has already finished.",
		})
		return false
	}

	tok := c.holder.Begin()
	res, err := c.rpc.ClaimMatchTracking(ctx, c.fixtureID, c.identity)
	if err != nil {
		c.holder.Abandon(tok)
		logger.Error().Err(err).Msg("failed to claim match tracking")
		c.notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Error",
			Description: "Failed to start tracking. Please try again.",
		})
		return false
	}

	if !res.Success {
		if res.HolderID == "" {
			c.holder.Abandon(tok)
			logger.Warn().Str("reason", res.Error).Msg("claim rejected")
			c.notifier.Notify(notify.Notification{
				Level:       notify.LevelError,
				Title:       "Cannot track match",
				Description: res.Error,
			})
			return false
		}
		c.holder.Predict(tok, Holder{UserID: res.HolderID, InstanceID: res.HolderInstance, StartedAt: res.TrackingStartedAt})
		logger.Info().Str("holder_id", res.HolderID).Msg("match already tracked by another device")
		c.notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Match is being tracked",
			Description: c.contentionMessage(res),
		})
		return false
	}

	startedAt := res.TrackingStartedAt
	if startedAt == nil {
		now := c.clock.Now()
		startedAt = &now
	}
	if !c.holder.Predict(tok, Holder{UserID: c.identity.UserID, InstanceID: c.identity.InstanceID, StartedAt: startedAt}) {
		logger.Debug().Msg("claim response superseded by realtime update")
	}

	// the feed may have moved the claim while the request was in flight
	if !c.IsActiveTracker() {
		return false
	}
	c.startHeartbeat()
	logger.Info().Msg("match tracking claimed")
	c.notifier.Notify(notify.Notification{
		Level:       notify.LevelSuccess,
		Title:       "Tracking started",
		Description: "You are now tracking this match.",
	})
	return true
}

// Release gives up the claim. Local holder state is cleared whatever the backend answers.
func (c *Coordinator) Release(ctx context.Context) {
	if c.release(ctx) {
		c.notifier.Notify(notify.Notification{
			Level:       notify.LevelInfo,
			Title:       "Tracking stopped",
			Description: "Another device can now track this match.",
		})
	}
}

// Close stops heartbeating and releases the claim if this tracker holds it. Errors are logged.
func (c *Coordinator) Close(ctx context.Context) {
	if c.IsActiveTracker() {
		c.release(ctx)
	}
	c.stopHeartbeat()
	c.wg.Wait()
}

func (c *Coordinator) release(ctx context.Context) bool {
	c.stopHeartbeat()

	tok := c.holder.Begin()
	err := c.rpc.ReleaseMatchTracking(ctx, c.fixtureID, c.identity)
	if err != nil {
		log.Warn().Err(err).Str("fixture_id", c.fixtureID.String()).Msg("failed to release match tracking")
	}
	if !c.holder.Predict(tok, Holder{}) && c.IsActiveTracker() {
		c.holder.Predict(c.holder.Begin(), Holder{})
	}
	log.Info().Str("fixture_id", c.fixtureID.String()).Msg("match tracking released")
	return err == nil
}

// HandleFixtureChange applies an authoritative fixture update from the realtime feed.
func (c *Coordinator) HandleFixtureChange(ctx context.Context, fixture models.Fixture) {
	if fixture.ID != c.fixtureID {
		return
	}
	logger := log.With().Str("fixture_id", c.fixtureID.String()).Logger()

	wasSelf := c.IsActiveTracker()
	next := Holder{StartedAt: fixture.TrackingStartedAt}
	if fixture.ActiveTrackerID != nil {
		next.UserID = *fixture.ActiveTrackerID
	}
	if fixture.ActiveTrackerInstance != nil {
		next.InstanceID = *fixture.ActiveTrackerInstance
	}
	c.holder.Confirm(next)

	if fixture.Status == models.FixtureStatusCompleted {
		c.complete(ctx)
		return
	}

	isSelf := c.isSelf(next)
	switch {
	case wasSelf && !isSelf:
		c.stopHeartbeat()
		logger.Warn().Str("holder_id", next.UserID).Msg("tracking control lost")
		c.notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Tracking control lost",
			Description: "Another device is now tracking this match.",
		})
	case !wasSelf && isSelf && !c.isCompleted():
		c.startHeartbeat()
	}
}

func (c *Coordinator) complete(ctx context.Context) {
	c.mu.Lock()
	already := c.completed
	c.completed = true
	c.mu.Unlock()

	c.stopHeartbeat()
	if already {
		return
	}
	log.Info().Str("fixture_id", c.fixtureID.String()).Msg("match completed upstream")
	if c.snapshots != nil {
		if err := c.snapshots.Clear(ctx, c.fixtureID); err != nil {
			log.Warn().Err(err).Str("fixture_id", c.fixtureID.String()).Msg("failed to clear snapshot for completed match")
		}
	}
}

// MarkCompleted moves the coordinator to its terminal state after a local match end.
func (c *Coordinator) MarkCompleted(ctx context.Context) {
	c.complete(ctx)
}

// IsActiveTracker reports whether this tracker holds the claim.
func (c *Coordinator) IsActiveTracker() bool {
	if c.isCompleted() {
		return false
	}
	holder, _ := c.holder.Get()
	return c.isSelf(holder)
}

// RequireHolder returns nil when this tracker may write match updates.
func (c *Coordinator) RequireHolder() error {
	if c.isCompleted() {
		return ErrCompleted
	}
	if !c.IsActiveTracker() {
		return ErrNotHolder
	}
	return nil
}

// Status returns the coordinator's view of the claim.
func (c *Coordinator) Status() Status {
	if c.isCompleted() {
		return StatusCompleted
	}
	holder, _ := c.holder.Get()
	switch {
	case holder.UserID == "":
		return StatusUnclaimed
	case c.isSelf(holder):
		return StatusSelf
	default:
		return StatusOther
	}
}

// Holder returns the believed holder and whether that belief is confirmed by the feed.
func (c *Coordinator) Holder() (Holder, optimistic.State) {
	return c.holder.Get()
}

// Lock returns the claim as a model.
func (c *Coordinator) Lock() models.TrackingLock {
	holder, _ := c.holder.Get()
	lock := models.TrackingLock{
		FixtureID:         c.fixtureID,
		TrackingStartedAt: holder.StartedAt,
		IsActiveTracker:   c.IsActiveTracker(),
	}
	if holder.UserID != "" {
		id := holder.UserID
		lock.ActiveTrackerID = &id
	}
	return lock
}

func (c *Coordinator) isSelf(h Holder) bool {
	if h.UserID == "" || h.UserID != c.identity.UserID {
		return false
	}
	return h.InstanceID == "" || h.InstanceID == c.identity.InstanceID
}

func (c *Coordinator) isCompleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

func (c *Coordinator) contentionMessage(res ClaimResult) string {
	name := res.HolderName
	if name == "" {
		name = "Another user"
	}
	if res.TrackingStartedAt == nil {
		return fmt.Sprintf("%s is currently tracking this match.", name)
	}
	minutes := int(c.clock.Since(*res.TrackingStartedAt) / time.Minute)
	if minutes < 1 {
		return fmt.Sprintf("%s started tracking this match less than a minute ago.", name)
	}
	return fmt.Sprintf("%s has been tracking this match for %d minutes.", name, minutes)
}
