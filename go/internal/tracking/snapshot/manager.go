package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/models"
)

const (
	// KeyPrefix namespaces match snapshots inside the device store.
	KeyPrefix = "match_state_"
	// MaxAge bounds how old a snapshot may be and still be resumed.
	MaxAge = 12 * time.Hour
	// OrphanSweepInterval is how often snapshots are checked against upstream fixtures.
	OrphanSweepInterval = 30 * time.Minute
)

// Snapshot is the persisted copy of an in-progress match.
type Snapshot struct {
	FixtureID  uuid.UUID         `json:"fixtureId"`
	Fixture    json.RawMessage   `json:"fixture,omitempty"`
	MatchState json.RawMessage   `json:"matchState,omitempty"`
	GameState  models.GameState  `json:"gameState"`
	StartTimes models.StartTimes `json:"startTimes"`
	Timestamp  time.Time         `json:"timestamp"`
}

// FixtureLookup reports the authoritative status of a fixture. found is false when the
// fixture no longer exists upstream.
type FixtureLookup interface {
	FixtureStatus(ctx context.Context, fixtureID uuid.UUID) (status models.FixtureStatus, found bool, err error)
}

// Manager reads and writes snapshots and enforces the recovery window.
type Manager struct {
	store Store
	clock clockwork.Clock
}

// NewManager creates a snapshot manager over store.
func NewManager(store Store, clock clockwork.Clock) *Manager {
	return &Manager{store: store, clock: clock}
}

// Key returns the store key for a fixture.
func Key(fixtureID uuid.UUID) string {
	return KeyPrefix + fixtureID.String()
}

// trimKey returns the fixture id portion of a snapshot key.
func trimKey(key string) string {
	return strings.TrimPrefix(key, KeyPrefix)
}

// Eligible reports whether snap may be resumed at now.
func Eligible(snap Snapshot, now time.Time) bool {
	if snap.GameState.MatchPhase == models.PhaseCompleted {
		return false
	}
	return now.Sub(snap.Timestamp) < MaxAge
}

// Save stamps snap with the current time and overwrites any previous snapshot for the fixture.
func (m *Manager) Save(ctx context.Context, snap Snapshot) error {
	snap.Timestamp = m.clock.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := m.store.Set(ctx, Key(snap.FixtureID), data); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Recover returns the snapshot for fixtureID when it is eligible for recovery. A missing,
// corrupt, stale or completed snapshot yields nil; the last three are deleted.
func (m *Manager) Recover(ctx context.Context, fixtureID uuid.UUID) (*Snapshot, error) {
	key := Key(fixtureID)
	snap, ok, err := m.load(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	if !Eligible(*snap, m.clock.Now()) {
		log.Info().
			Str("fixture_id", fixtureID.String()).
			Str("phase", string(snap.GameState.MatchPhase)).
			Time("saved_at", snap.Timestamp).
			Msg("discarding ineligible match snapshot")
		m.deleteQuietly(ctx, key)
		return nil, nil
	}
	return snap, nil
}

// Clear removes the snapshot for fixtureID.
func (m *Manager) Clear(ctx context.Context, fixtureID uuid.UUID) error {
	if err := m.store.Delete(ctx, Key(fixtureID)); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}

// ClearExpired deletes every snapshot that is no longer eligible for recovery and returns
// how many were removed.
func (m *Manager) ClearExpired(ctx context.Context) (int, error) {
	keys, err := m.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}

	now := m.clock.Now()
	removed := 0
	for _, key := range keys {
		snap, ok, err := m.load(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to read snapshot during sweep")
			continue
		}
		if !ok {
			continue
		}
		if !Eligible(*snap, now) {
			m.deleteQuietly(ctx, key)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("cleared expired match snapshots")
	}
	return removed, nil
}

// CleanupOrphans deletes snapshots whose fixture no longer exists upstream. Lookup failures
// leave the snapshot in place for the next sweep.
func (m *Manager) CleanupOrphans(ctx context.Context, lookup FixtureLookup) (int, error) {
	keys, err := m.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		fixtureID, err := uuid.Parse(trimKey(key))
		if err != nil {
			m.deleteQuietly(ctx, key)
			removed++
			continue
		}
		_, found, err := lookup.FixtureStatus(ctx, fixtureID)
		if err != nil {
			log.Warn().Err(err).Str("fixture_id", fixtureID.String()).Msg("fixture lookup failed during orphan sweep")
			continue
		}
		if !found {
			m.deleteQuietly(ctx, key)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("cleared orphaned match snapshots")
	}
	return removed, nil
}

// load reads and decodes key. ok is false when the key is absent or held garbage.
func (m *Manager) load(ctx context.Context, key string) (*Snapshot, bool, error) {
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dropping corrupt match snapshot")
		m.deleteQuietly(ctx, key)
		return nil, false, nil
	}
	return &snap, true, nil
}

func (m *Manager) deleteQuietly(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to delete snapshot")
	}
}
