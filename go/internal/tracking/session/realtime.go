package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/events"
)

// HandleEvent applies a change notification from the realtime feed. Envelopes for other
// fixtures are ignored.
func (s *Session) HandleEvent(ctx context.Context, env events.Envelope) error {
	if env.FixtureID != s.fixtureID {
		return nil
	}
	payload, err := events.ParsePayload(env)
	if err != nil {
		return fmt.Errorf("parse %s payload: %w", env.EventType, err)
	}

	logger := log.With().
		Str("fixture_id", s.fixtureID.String()).
		Str("event_id", env.EventID.String()).
		Str("event_type", string(env.EventType)).
		Logger()

	switch p := payload.(type) {
	case events.FixtureUpdatedPayload:
		s.mu.Lock()
		s.fixture = p.Fixture
		s.mu.Unlock()
		s.lock.HandleFixtureChange(ctx, p.Fixture)
		if p.Fixture.Status == models.FixtureStatusCompleted {
			s.undo.Clear()
		}

	case events.PeriodChangedPayload:
		current := s.currentPeriod()
		switch {
		case p.IsCurrent && p.Period.PeriodID != current:
			s.updateMatchState(func(m *MatchState) {
				m.CurrentPeriodID = p.Period.PeriodID
				switch p.Period.PeriodNumber {
				case 1:
					m.FirstPeriodID = p.Period.PeriodID
				case 2:
					m.SecondPeriodID = p.Period.PeriodID
				}
			})
			if err := s.players.SetPeriod(ctx, p.Period.PeriodID); err != nil {
				return fmt.Errorf("reload player times: %w", err)
			}
		case p.Period.PeriodID == current:
			if err := s.players.Load(ctx); err != nil {
				return fmt.Errorf("reload player times: %w", err)
			}
		}

	case events.PlayerStatusChangedPayload:
		if p.PeriodID != s.currentPeriod() {
			return nil
		}
		if err := s.players.Load(ctx); err != nil {
			return fmt.Errorf("reload player times: %w", err)
		}

	case events.MatchEventChangedPayload:
		logger.Debug().Str("kind", p.Kind).Str("operation", p.Operation).Msg("match record changed")
		return nil
	}

	logger.Debug().Msg("realtime event applied")
	return nil
}
