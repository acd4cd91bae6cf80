package fixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/events"
	"github.com/mcdev12/matchday/go/internal/tracking/lock"
)

// DefaultStaleClaimAfter is how long a claim survives without a heartbeat before another
// tracker may take it over.
const DefaultStaleClaimAfter = 2 * time.Minute

var (
	ErrNotHolder = errors.New("tracker does not hold the claim")
	ErrInvalid   = errors.New("validation failed")
)

// App is the authoritative side of match tracking: it arbitrates claims, stores periods,
// events and substitutions, and queues a change notification for every write.
type App struct {
	repo       *Repository
	inTx       TxFunc
	clock      clockwork.Clock
	staleAfter time.Duration
}

// NewApp creates a new fixtures App. repo serves reads; inTx scopes writes.
func NewApp(repo *Repository, inTx TxFunc, clock clockwork.Clock, staleAfter time.Duration) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleClaimAfter
	}
	return &App{
		repo:       repo,
		inTx:       inTx,
		clock:      clock,
		staleAfter: staleAfter,
	}
}

// ClaimMatchTracking gives the claim to who unless a live tracker already holds it.
func (a *App) ClaimMatchTracking(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) (lock.ClaimResult, error) {
	if who.UserID == "" {
		return lock.ClaimResult{}, fmt.Errorf("%w: tracker id is required", ErrInvalid)
	}
	now := a.clock.Now()
	var result lock.ClaimResult
	err := a.inTx(ctx, func(repo *Repository) error {
		fixture, ok, err := repo.ClaimTracking(ctx, fixtureID, who.UserID, who.InstanceID, now, now.Add(-a.staleAfter))
		if err != nil {
			return err
		}
		if ok {
			result = lock.ClaimResult{
				Success:           true,
				HolderID:          who.UserID,
				HolderInstance:    who.InstanceID,
				TrackingStartedAt: fixture.TrackingStartedAt,
			}
			return repo.Enqueue(ctx, events.EventTypeFixtureUpdated, fixtureID, now, events.FixtureUpdatedPayload{Fixture: *fixture})
		}

		current, err := repo.GetFixture(ctx, fixtureID)
		if errors.Is(err, ErrFixtureNotFound) {
			result = lock.ClaimResult{Error: "Match not found."}
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case current.Status == models.FixtureStatusCompleted:
			result = lock.ClaimResult{Error: "This match has already finished."}
		case current.Status == models.FixtureStatusCancelled:
			result = lock.ClaimResult{Error: "This match was cancelled."}
		case current.ActiveTrackerID == nil:
			// released between the claim attempt and this read
			result = lock.ClaimResult{Error: "Tracking is changing hands. Please try again."}
		default:
			result = lock.ClaimResult{
				HolderID:          *current.ActiveTrackerID,
				HolderName:        repo.TrackerName(ctx, *current.ActiveTrackerID),
				TrackingStartedAt: current.TrackingStartedAt,
			}
			if current.ActiveTrackerInstance != nil {
				result.HolderInstance = *current.ActiveTrackerInstance
			}
		}
		return nil
	})
	if err != nil {
		return lock.ClaimResult{}, err
	}

	log.Info().
		Str("fixture_id", fixtureID.String()).
		Str("tracker_id", who.UserID).
		Bool("success", result.Success).
		Str("holder_id", result.HolderID).
		Msg("claim arbitrated")
	return result, nil
}

// ReleaseMatchTracking clears the claim if who holds it. Releasing a claim held by someone
// else is a no-op.
func (a *App) ReleaseMatchTracking(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) error {
	now := a.clock.Now()
	return a.inTx(ctx, func(repo *Repository) error {
		released, err := repo.ReleaseTracking(ctx, fixtureID, who.UserID, who.InstanceID, now)
		if err != nil || !released {
			return err
		}
		return a.enqueueFixture(ctx, repo, fixtureID, now)
	})
}

// UpdateTrackingActivity refreshes the holder's heartbeat.
func (a *App) UpdateTrackingActivity(ctx context.Context, fixtureID uuid.UUID, who lock.Identity) error {
	touched, err := a.repo.TouchTracking(ctx, fixtureID, who.UserID, who.InstanceID, a.clock.Now())
	if err != nil {
		return err
	}
	if !touched {
		return ErrNotHolder
	}
	return nil
}

// GetFixture returns the fixture and whether it exists.
func (a *App) GetFixture(ctx context.Context, fixtureID uuid.UUID) (models.Fixture, bool, error) {
	fixture, err := a.repo.GetFixture(ctx, fixtureID)
	if errors.Is(err, ErrFixtureNotFound) {
		return models.Fixture{}, false, nil
	}
	if err != nil {
		return models.Fixture{}, false, err
	}
	return *fixture, true, nil
}

// FixtureStatus returns the fixture's status and whether it exists.
func (a *App) FixtureStatus(ctx context.Context, fixtureID uuid.UUID) (models.FixtureStatus, bool, error) {
	fixture, found, err := a.GetFixture(ctx, fixtureID)
	if err != nil || !found {
		return "", found, err
	}
	return fixture.Status, true, nil
}

func (a *App) PeriodTiming(ctx context.Context, fixtureID, periodID uuid.UUID) (models.PeriodTiming, error) {
	period, err := a.repo.GetPeriod(ctx, fixtureID, periodID)
	if err != nil {
		return models.PeriodTiming{}, err
	}
	return *period, nil
}

func (a *App) ActivePlayers(ctx context.Context, fixtureID, periodID uuid.UUID) ([]models.OnFieldPlayer, error) {
	return a.repo.ListActivePlayers(ctx, fixtureID, periodID)
}

// StartPeriod opens a period. The first period fields the lineup; later periods carry over the
// players who finished the previous one.
func (a *App) StartPeriod(ctx context.Context, fixtureID uuid.UUID, periodNumber int, startedAt time.Time) (models.PeriodTiming, error) {
	if periodNumber < 1 || periodNumber > 2 {
		return models.PeriodTiming{}, fmt.Errorf("%w: period number %d out of range", ErrInvalid, periodNumber)
	}
	var period *models.PeriodTiming
	err := a.inTx(ctx, func(repo *Repository) error {
		var err error
		period, err = repo.InsertPeriod(ctx, fixtureID, periodNumber, startedAt)
		if err != nil {
			return err
		}
		if periodNumber == 1 {
			err = repo.CopyLineupToPeriod(ctx, fixtureID, period.PeriodID)
		} else {
			var previous *models.PeriodTiming
			previous, err = repo.GetPeriodByNumber(ctx, fixtureID, periodNumber-1)
			if err != nil {
				return err
			}
			err = repo.CopyActivePlayers(ctx, fixtureID, previous.PeriodID, period.PeriodID)
		}
		if err != nil {
			return err
		}
		return repo.Enqueue(ctx, events.EventTypePeriodChanged, fixtureID, a.clock.Now(), events.PeriodChangedPayload{Period: *period, IsCurrent: true})
	})
	if err != nil {
		return models.PeriodTiming{}, err
	}
	log.Info().Str("fixture_id", fixtureID.String()).Int("period", periodNumber).Msg("period started")
	return *period, nil
}

func (a *App) EndPeriod(ctx context.Context, fixtureID, periodID uuid.UUID, endedAt time.Time) error {
	return a.updatePeriod(ctx, fixtureID, func(repo *Repository) (*models.PeriodTiming, error) {
		return repo.SetPeriodEnded(ctx, fixtureID, periodID, &endedAt)
	})
}

func (a *App) ReopenPeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error {
	return a.updatePeriod(ctx, fixtureID, func(repo *Repository) (*models.PeriodTiming, error) {
		return repo.SetPeriodEnded(ctx, fixtureID, periodID, nil)
	})
}

func (a *App) AddPausedSeconds(ctx context.Context, fixtureID, periodID uuid.UUID, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: paused seconds must not be negative", ErrInvalid)
	}
	return a.updatePeriod(ctx, fixtureID, func(repo *Repository) (*models.PeriodTiming, error) {
		return repo.AddPausedSeconds(ctx, fixtureID, periodID, seconds)
	})
}

// DeletePeriod removes a period. When an earlier period remains it becomes current again.
func (a *App) DeletePeriod(ctx context.Context, fixtureID, periodID uuid.UUID) error {
	return a.inTx(ctx, func(repo *Repository) error {
		deleted, err := repo.DeletePeriod(ctx, fixtureID, periodID)
		if err != nil {
			return err
		}
		if deleted.PeriodNumber <= 1 {
			return nil
		}
		previous, err := repo.GetPeriodByNumber(ctx, fixtureID, deleted.PeriodNumber-1)
		if errors.Is(err, ErrPeriodNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return repo.Enqueue(ctx, events.EventTypePeriodChanged, fixtureID, a.clock.Now(), events.PeriodChangedPayload{Period: *previous, IsCurrent: true})
	})
}

func (a *App) SetFixtureStatus(ctx context.Context, fixtureID uuid.UUID, status models.FixtureStatus) error {
	switch status {
	case models.FixtureStatusScheduled, models.FixtureStatusInProgress, models.FixtureStatusCompleted, models.FixtureStatusCancelled:
	default:
		return fmt.Errorf("%w: unknown fixture status %q", ErrInvalid, status)
	}
	now := a.clock.Now()
	return a.inTx(ctx, func(repo *Repository) error {
		fixture, err := repo.SetFixtureStatus(ctx, fixtureID, status, now)
		if err != nil {
			return err
		}
		return repo.Enqueue(ctx, events.EventTypeFixtureUpdated, fixtureID, now, events.FixtureUpdatedPayload{Fixture: *fixture})
	})
}

func (a *App) RecordMatchEvent(ctx context.Context, event models.MatchEvent) (models.MatchEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = a.clock.Now()
	}
	var saved *models.MatchEvent
	err := a.inTx(ctx, func(repo *Repository) error {
		var err error
		saved, err = repo.InsertMatchEvent(ctx, event)
		if err != nil {
			return err
		}
		return a.enqueueRecord(ctx, repo, event.FixtureID, saved.ID, "event", "insert")
	})
	if err != nil {
		return models.MatchEvent{}, err
	}
	return *saved, nil
}

func (a *App) DeleteMatchEvent(ctx context.Context, fixtureID, eventID uuid.UUID) error {
	return a.inTx(ctx, func(repo *Repository) error {
		if err := repo.DeleteMatchEvent(ctx, fixtureID, eventID); err != nil {
			return err
		}
		return a.enqueueRecord(ctx, repo, fixtureID, eventID, "event", "delete")
	})
}

// RecordSubstitution stores a substitution and swaps the players' status in its period.
func (a *App) RecordSubstitution(ctx context.Context, sub models.Substitution) (models.Substitution, error) {
	if sub.PeriodID == nil {
		return models.Substitution{}, fmt.Errorf("%w: substitution needs a period", ErrInvalid)
	}
	if sub.PlayerOffID == sub.PlayerOnID {
		return models.Substitution{}, fmt.Errorf("%w: player cannot replace themselves", ErrInvalid)
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = a.clock.Now()
	}

	var saved *models.Substitution
	err := a.inTx(ctx, func(repo *Repository) error {
		fixture, err := repo.GetFixture(ctx, sub.FixtureID)
		if err != nil {
			return err
		}
		period, err := repo.GetPeriod(ctx, sub.FixtureID, *sub.PeriodID)
		if err != nil {
			return err
		}
		saved, err = repo.InsertSubstitution(ctx, sub)
		if err != nil {
			return err
		}
		onMinute := PeriodMinute(sub.MatchMinute, period.PeriodNumber, fixture.HalfLengthMinutes)
		if err := repo.SetPlayerActive(ctx, sub.FixtureID, period.PeriodID, sub.PlayerOffID, false); err != nil {
			return err
		}
		if err := repo.PutPlayerOn(ctx, sub.FixtureID, period.PeriodID, sub.PlayerOnID, onMinute); err != nil {
			return err
		}
		now := a.clock.Now()
		if err := a.enqueuePlayer(ctx, repo, sub.FixtureID, period.PeriodID, sub.PlayerOffID, false, 0, now); err != nil {
			return err
		}
		if err := a.enqueuePlayer(ctx, repo, sub.FixtureID, period.PeriodID, sub.PlayerOnID, true, onMinute, now); err != nil {
			return err
		}
		return a.enqueueRecord(ctx, repo, sub.FixtureID, saved.ID, "substitution", "insert")
	})
	if err != nil {
		return models.Substitution{}, err
	}
	return *saved, nil
}

// DeleteSubstitution removes a substitution and puts the replaced player back on.
func (a *App) DeleteSubstitution(ctx context.Context, fixtureID, substitutionID uuid.UUID) error {
	return a.inTx(ctx, func(repo *Repository) error {
		deleted, err := repo.DeleteSubstitution(ctx, fixtureID, substitutionID)
		if err != nil {
			return err
		}
		now := a.clock.Now()
		if deleted.PeriodID != nil {
			periodID := *deleted.PeriodID
			if err := repo.SetPlayerActive(ctx, fixtureID, periodID, deleted.PlayerOnID, false); err != nil {
				return err
			}
			if err := repo.SetPlayerActive(ctx, fixtureID, periodID, deleted.PlayerOffID, true); err != nil {
				return err
			}
			if err := a.enqueuePlayer(ctx, repo, fixtureID, periodID, deleted.PlayerOnID, false, 0, now); err != nil {
				return err
			}
			if err := a.enqueuePlayer(ctx, repo, fixtureID, periodID, deleted.PlayerOffID, true, 0, now); err != nil {
				return err
			}
		}
		return a.enqueueRecord(ctx, repo, fixtureID, substitutionID, "substitution", "delete")
	})
}

// PeriodMinute converts a match minute into the minute of its period.
func PeriodMinute(matchMinute, periodNumber, halfLengthMinutes int) int {
	minute := matchMinute - (periodNumber-1)*halfLengthMinutes
	if minute < 0 {
		return 0
	}
	return minute
}

func (a *App) updatePeriod(ctx context.Context, fixtureID uuid.UUID, update func(*Repository) (*models.PeriodTiming, error)) error {
	return a.inTx(ctx, func(repo *Repository) error {
		period, err := update(repo)
		if err != nil {
			return err
		}
		return repo.Enqueue(ctx, events.EventTypePeriodChanged, fixtureID, a.clock.Now(), events.PeriodChangedPayload{Period: *period})
	})
}

func (a *App) enqueueFixture(ctx context.Context, repo *Repository, fixtureID uuid.UUID, now time.Time) error {
	fixture, err := repo.GetFixture(ctx, fixtureID)
	if err != nil {
		return err
	}
	return repo.Enqueue(ctx, events.EventTypeFixtureUpdated, fixtureID, now, events.FixtureUpdatedPayload{Fixture: *fixture})
}

func (a *App) enqueuePlayer(ctx context.Context, repo *Repository, fixtureID, periodID, playerID uuid.UUID, active bool, onMinute int, now time.Time) error {
	return repo.Enqueue(ctx, events.EventTypePlayerStatusChanged, fixtureID, now, events.PlayerStatusChangedPayload{
		PeriodID: periodID,
		PlayerID: playerID,
		IsActive: active,
		OnMinute: onMinute,
	})
}

func (a *App) enqueueRecord(ctx context.Context, repo *Repository, fixtureID, recordID uuid.UUID, kind, operation string) error {
	return repo.Enqueue(ctx, events.EventTypeMatchEventChanged, fixtureID, a.clock.Now(), events.MatchEventChangedPayload{
		RecordID:  recordID,
		Kind:      kind,
		Operation: operation,
	})
}
