package session

import (
	"github.com/google/uuid"

	"github.com/mcdev12/matchday/go/internal/models"
)

// UndoView describes the action currently offered for undo.
type UndoView struct {
	ID               uuid.UUID `json:"id"`
	Kind             string    `json:"kind"`
	Description      string    `json:"description"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Undoing          bool      `json:"undoing"`
}

// View is a point-in-time rendering of the session for UI clients.
type View struct {
	FixtureID     uuid.UUID            `json:"fixture_id"`
	GameState     models.GameState     `json:"game_state"`
	CurrentTime   int                  `json:"current_time"`
	CurrentMinute int                  `json:"current_minute"`
	Lock          models.TrackingLock  `json:"lock"`
	LockStatus    string               `json:"lock_status"`
	Undo          *UndoView            `json:"undo,omitempty"`
	Players       []models.PlayerTimer `json:"players"`
	OurScore      int                  `json:"our_score"`
	TheirScore    int                  `json:"their_score"`
}

// View renders the session.
func (s *Session) View() View {
	match := s.MatchState()
	v := View{
		FixtureID:     s.fixtureID,
		GameState:     s.engine.State(),
		CurrentTime:   s.engine.CurrentTime(),
		CurrentMinute: s.engine.CurrentMinute(),
		Lock:          s.lock.Lock(),
		LockStatus:    s.lock.Status().String(),
		Players:       s.players.Timers(),
		OurScore:      match.OurScore,
		TheirScore:    match.TheirScore,
	}
	if action, ok := s.undo.Current(); ok {
		v.Undo = &UndoView{
			ID:               action.ID,
			Kind:             string(action.Kind),
			Description:      action.Description,
			RemainingSeconds: s.undo.RemainingSeconds(),
			Undoing:          s.undo.IsUndoing(),
		}
	}
	return v
}
