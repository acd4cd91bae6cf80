package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/lock"
	"github.com/mcdev12/matchday/go/internal/tracking/notify"
	"github.com/mcdev12/matchday/go/internal/tracking/undo"
)

// EventInput describes a match event to record.
type EventInput struct {
	Type      models.MatchEventType
	PlayerID  *uuid.UUID
	AssistID  *uuid.UUID
	IsOurTeam bool
}

// clockState is everything a period undo needs to put back.
type clockState struct {
	game       models.GameState
	startTimes models.StartTimes
	match      MatchState
}

func (s *Session) captureClock() clockState {
	return clockState{
		game:       s.engine.State(),
		startTimes: s.engine.StartTimes(),
		match:      s.MatchState(),
	}
}

// restoreClock puts the clock and match state back to prev and reloads player timers.
func (s *Session) restoreClock(ctx context.Context, prev clockState) error {
	s.updateMatchState(func(m *MatchState) { *m = prev.match })
	if err := s.engine.Restore(prev.game, prev.startTimes); err != nil {
		return fmt.Errorf("failed to restore clock: %w", err)
	}
	if err := s.players.SetPeriod(ctx, prev.match.CurrentPeriodID); err != nil {
		log.Warn().Err(err).Str("fixture_id", s.fixtureID.String()).Msg("failed to reload player times")
	}
	return nil
}

// requireHolder gates every write on holding the tracking claim.
func (s *Session) requireHolder() error {
	err := s.lock.RequireHolder()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lock.ErrCompleted):
		s.deps.Notifier.Notify(notify.Notification{
			Level:       notify.LevelInfo,
			Title:       "Match completed",
			Description: "This match has already finished.",
		})
	default:
		s.deps.Notifier.Notify(notify.Notification{
			Level:       notify.LevelWarning,
			Title:       "Not tracking",
			Description: "Start tracking this match before making changes.",
		})
	}
	return err
}

// claimLost re-checks the claim after a backend write. The realtime feed can hand the claim
// to another device while the write is in flight; the rest of the command must not run then.
func (s *Session) claimLost(op string) error {
	err := s.lock.RequireHolder()
	if err != nil {
		log.Warn().Err(err).Str("fixture_id", s.fixtureID.String()).Str("op", op).Msg("tracking claim lost mid-command, aborting")
	}
	return err
}

func (s *Session) syncFailed(op string, err error) {
	log.Error().Err(err).Str("fixture_id", s.fixtureID.String()).Str("op", op).Msg("failed to sync match update")
	s.deps.Notifier.Notify(notify.Notification{
		Level:       notify.LevelError,
		Title:       "Sync failed",
		Description: "The match clock changed locally but the server was not updated.",
	})
}

// StartMatch kicks off the first half.
func (s *Session) StartMatch(ctx context.Context) error {
	if err := s.requireHolder(); err != nil {
		return err
	}
	prev := s.captureClock()
	if err := s.engine.StartMatch(); err != nil {
		return err
	}

	now := s.deps.Clock.Now()
	period, err := s.deps.Writer.StartPeriod(ctx, s.fixtureID, 1, now)
	if err != nil {
		s.syncFailed("start_period", err)
	} else {
		s.updateMatchState(func(m *MatchState) {
			m.FirstPeriodID = period.PeriodID
			m.CurrentPeriodID = period.PeriodID
		})
		s.loadPlayers(ctx, period.PeriodID)
	}
	if err := s.claimLost("start_period"); err != nil {
		s.saveSnapshot(ctx)
		return err
	}
	if err := s.deps.Writer.SetFixtureStatus(ctx, s.fixtureID, models.FixtureStatusInProgress); err != nil {
		s.syncFailed("set_status", err)
	}
	s.saveSnapshot(ctx)
	if err := s.claimLost("set_status"); err != nil {
		return err
	}

	s.undo.Push(undo.KindPeriod, "Match started", func(ctx context.Context) error {
		if period.PeriodID != uuid.Nil {
			if err := s.deps.Writer.DeletePeriod(ctx, s.fixtureID, period.PeriodID); err != nil {
				return err
			}
		}
		if err := s.deps.Writer.SetFixtureStatus(ctx, s.fixtureID, models.FixtureStatusScheduled); err != nil {
			return err
		}
		return s.restoreClock(ctx, prev)
	})
	return nil
}

// ToggleTimer pauses or resumes the clock. Resuming credits the pause to the current period.
func (s *Session) ToggleTimer(ctx context.Context) error {
	if err := s.requireHolder(); err != nil {
		return err
	}
	if err := s.engine.ToggleTimer(); err != nil {
		return err
	}

	now := s.deps.Clock.Now()
	if !s.engine.IsRunning() {
		s.updateMatchState(func(m *MatchState) { m.PausedAt = &now })
		s.saveSnapshot(ctx)
		return nil
	}

	var paused int
	periodID := uuid.Nil
	s.updateMatchState(func(m *MatchState) {
		if m.PausedAt != nil {
			paused = int(now.Sub(*m.PausedAt) / time.Second)
		}
		m.PausedAt = nil
		periodID = m.CurrentPeriodID
	})
	s.saveSnapshot(ctx)

	if paused > 0 && periodID != uuid.Nil {
		if err := s.deps.Writer.AddPausedSeconds(ctx, s.fixtureID, periodID, paused); err != nil {
			s.syncFailed("add_paused_seconds", err)
			return nil
		}
		if err := s.players.Load(ctx); err != nil {
			log.Warn().Err(err).Str("fixture_id", s.fixtureID.String()).Msg("failed to reload player times")
		}
	}
	return nil
}

// EndFirstHalf moves to half-time.
func (s *Session) EndFirstHalf(ctx context.Context) error {
	if err := s.requireHolder(); err != nil {
		return err
	}
	prev := s.captureClock()
	if err := s.engine.EndFirstHalf(); err != nil {
		return err
	}

	periodID := prev.match.FirstPeriodID
	if periodID != uuid.Nil {
		if err := s.deps.Writer.EndPeriod(ctx, s.fixtureID, periodID, s.deps.Clock.Now()); err != nil {
			s.syncFailed("end_period", err)
		}
	}
	s.updateMatchState(func(m *MatchState) { m.PausedAt = nil })
	s.saveSnapshot(ctx)
	if err := s.claimLost("end_period"); err != nil {
		return err
	}

	s.undo.Push(undo.KindPeriod, "First half ended", func(ctx context.Context) error {
		if periodID != uuid.Nil {
			if err := s.deps.Writer.ReopenPeriod(ctx, s.fixtureID, periodID); err != nil {
				return err
			}
		}
		return s.restoreClock(ctx, prev)
	})
	return nil
}

// StartSecondHalf kicks off the second half from zero.
func (s *Session) StartSecondHalf(ctx context.Context) error {
	if err := s.requireHolder(); err != nil {
		return err
	}
	prev := s.captureClock()
	if err := s.engine.StartSecondHalf(); err != nil {
		return err
	}

	period, err := s.deps.Writer.StartPeriod(ctx, s.fixtureID, 2, s.deps.Clock.Now())
	if err != nil {
		s.syncFailed("start_period", err)
	} else {
		s.updateMatchState(func(m *MatchState) {
			m.SecondPeriodID = period.PeriodID
			m.CurrentPeriodID = period.PeriodID
		})
		s.loadPlayers(ctx, period.PeriodID)
	}
	s.saveSnapshot(ctx)
	if err := s.claimLost("start_period"); err != nil {
		return err
	}

	s.undo.Push(undo.KindPeriod, "Second half started", func(ctx context.Context) error {
		if period.PeriodID != uuid.Nil {
			if err := s.deps.Writer.DeletePeriod(ctx, s.fixtureID, period.PeriodID); err != nil {
				return err
			}
		}
		return s.restoreClock(ctx, prev)
	})
	return nil
}

// EndMatch finishes the match. Completion is final, so pending undo actions are dropped and
// the snapshot is removed.
func (s *Session) EndMatch(ctx context.Context) error {
	if err := s.requireHolder(); err != nil {
		return err
	}
	periodID := s.MatchState().SecondPeriodID
	if err := s.engine.EndMatch(); err != nil {
		return err
	}

	if periodID != uuid.Nil {
		if err := s.deps.Writer.EndPeriod(ctx, s.fixtureID, periodID, s.deps.Clock.Now()); err != nil {
			s.syncFailed("end_period", err)
		}
	}
	if err := s.claimLost("end_period"); err != nil {
		return err
	}
	if err := s.deps.Writer.SetFixtureStatus(ctx, s.fixtureID, models.FixtureStatusCompleted); err != nil {
		s.syncFailed("set_status", err)
	}

	s.undo.Clear()
	s.clearSnapshot(ctx)
	s.lock.MarkCompleted(ctx)
	s.deps.Notifier.Notify(notify.Notification{
		Level:       notify.LevelSuccess,
		Title:       "Match ended",
		Description: "Final whistle recorded.",
	})
	return nil
}

// RecordEvent writes a match event at the current match minute and makes it undoable.
func (s *Session) RecordEvent(ctx context.Context, in EventInput) (models.MatchEvent, error) {
	if err := s.requireHolder(); err != nil {
		return models.MatchEvent{}, err
	}

	event := models.MatchEvent{
		ID:          uuid.New(),
		FixtureID:   s.fixtureID,
		EventType:   in.Type,
		PlayerID:    in.PlayerID,
		AssistID:    in.AssistID,
		MatchMinute: s.matchMinute(),
		IsOurTeam:   in.IsOurTeam,
		CreatedAt:   s.deps.Clock.Now(),
	}
	if periodID := s.currentPeriod(); periodID != uuid.Nil {
		event.PeriodID = &periodID
	}

	saved, err := s.deps.Writer.RecordMatchEvent(ctx, event)
	if err != nil {
		log.Error().Err(err).Str("fixture_id", s.fixtureID.String()).Str("event_type", string(in.Type)).Msg("failed to record match event")
		s.deps.Notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Error",
			Description: fmt.Sprintf("Failed to record %s.", describeEvent(in.Type)),
		})
		return models.MatchEvent{}, err
	}

	s.adjustScore(saved, 1)
	s.saveSnapshot(ctx)
	if err := s.claimLost("record_event"); err != nil {
		return saved, err
	}
	s.undo.Push(undo.KindEvent, eventTitle(saved.EventType), func(ctx context.Context) error {
		if err := s.deps.Writer.DeleteMatchEvent(ctx, s.fixtureID, saved.ID); err != nil {
			return err
		}
		s.adjustScore(saved, -1)
		s.saveSnapshot(ctx)
		return nil
	})
	return saved, nil
}

// RecordGoal records a goal for or against the team.
func (s *Session) RecordGoal(ctx context.Context, scorer, assist *uuid.UUID, isOurTeam bool) (models.MatchEvent, error) {
	return s.RecordEvent(ctx, EventInput{
		Type:      models.MatchEventGoal,
		PlayerID:  scorer,
		AssistID:  assist,
		IsOurTeam: isOurTeam,
	})
}

// RecordSubstitution swaps two players at the current match minute and makes it undoable.
func (s *Session) RecordSubstitution(ctx context.Context, playerOff, playerOn uuid.UUID) (models.Substitution, error) {
	if err := s.requireHolder(); err != nil {
		return models.Substitution{}, err
	}

	sub := models.Substitution{
		ID:          uuid.New(),
		FixtureID:   s.fixtureID,
		PlayerOffID: playerOff,
		PlayerOnID:  playerOn,
		MatchMinute: s.matchMinute(),
		CreatedAt:   s.deps.Clock.Now(),
	}
	if periodID := s.currentPeriod(); periodID != uuid.Nil {
		sub.PeriodID = &periodID
	}

	saved, err := s.deps.Writer.RecordSubstitution(ctx, sub)
	if err != nil {
		log.Error().Err(err).Str("fixture_id", s.fixtureID.String()).Msg("failed to record substitution")
		s.deps.Notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Error",
			Description: "Failed to record substitution.",
		})
		return models.Substitution{}, err
	}
	s.reloadPlayers(ctx)
	if err := s.claimLost("record_substitution"); err != nil {
		return saved, err
	}

	s.undo.Push(undo.KindSubstitution, "Substitution made", func(ctx context.Context) error {
		if err := s.deps.Writer.DeleteSubstitution(ctx, s.fixtureID, saved.ID); err != nil {
			return err
		}
		s.reloadPlayers(ctx)
		return nil
	})
	return saved, nil
}

// Claim asks for the tracking claim.
func (s *Session) Claim(ctx context.Context) bool {
	return s.lock.Claim(ctx)
}

// Release gives up the tracking claim.
func (s *Session) Release(ctx context.Context) {
	s.lock.Release(ctx)
}

// PerformUndo rolls back the most recent undoable action.
func (s *Session) PerformUndo(ctx context.Context) bool {
	if err := s.requireHolder(); err != nil {
		return false
	}
	return s.undo.Perform(ctx)
}

// matchMinute is the minute of the match, counting the second half after the first.
func (s *Session) matchMinute() int {
	minute := s.engine.CurrentMinute()
	if s.engine.State().CurrentHalf == models.HalfSecond {
		s.mu.Lock()
		half := s.fixture.HalfLengthMinutes
		s.mu.Unlock()
		minute += half
	}
	return minute
}

func (s *Session) adjustScore(event models.MatchEvent, delta int) {
	var ours bool
	switch event.EventType {
	case models.MatchEventGoal:
		ours = event.IsOurTeam
	case models.MatchEventOwnGoal:
		ours = !event.IsOurTeam
	default:
		return
	}
	s.updateMatchState(func(m *MatchState) {
		if ours {
			m.OurScore = max(0, m.OurScore+delta)
		} else {
			m.TheirScore = max(0, m.TheirScore+delta)
		}
	})
}

func (s *Session) loadPlayers(ctx context.Context, periodID uuid.UUID) {
	if err := s.players.SetPeriod(ctx, periodID); err != nil {
		log.Warn().Err(err).Str("fixture_id", s.fixtureID.String()).Msg("failed to load player times")
	}
}

func (s *Session) reloadPlayers(ctx context.Context) {
	if err := s.players.Load(ctx); err != nil {
		log.Warn().Err(err).Str("fixture_id", s.fixtureID.String()).Msg("failed to reload player times")
	}
}

func (s *Session) saveSnapshot(ctx context.Context) {
	if s.engine.Phase() == models.PhaseCompleted {
		return
	}
	if err := s.persist(ctx); err != nil {
		log.Warn().Err(err).Str("fixture_id", s.fixtureID.String()).Msg("failed to save match snapshot")
	}
}

func eventTitle(t models.MatchEventType) string {
	switch t {
	case models.MatchEventGoal:
		return "Goal recorded"
	case models.MatchEventOwnGoal:
		return "Own goal recorded"
	case models.MatchEventYellowCard:
		return "Yellow card recorded"
	case models.MatchEventRedCard:
		return "Red card recorded"
	default:
		return "Event recorded"
	}
}

func describeEvent(t models.MatchEventType) string {
	switch t {
	case models.MatchEventGoal:
		return "goal"
	case models.MatchEventOwnGoal:
		return "own goal"
	case models.MatchEventYellowCard:
		return "yellow card"
	case models.MatchEventRedCard:
		return "red card"
	default:
		return "event"
	}
}
