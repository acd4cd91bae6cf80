package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/mcdev12/matchday/go/internal/tracking/session"
)

// Controller is the session surface the UI drives.
type Controller interface {
	StartMatch(ctx context.Context) error
	ToggleTimer(ctx context.Context) error
	EndFirstHalf(ctx context.Context) error
	StartSecondHalf(ctx context.Context) error
	EndMatch(ctx context.Context) error
	Claim(ctx context.Context) bool
	Release(ctx context.Context)
	PerformUndo(ctx context.Context) bool
	RecordGoal(ctx context.Context, scorer, assist *uuid.UUID, isOurTeam bool) (models.MatchEvent, error)
	RecordSubstitution(ctx context.Context, playerOff, playerOn uuid.UUID) (models.Substitution, error)
	View() session.View
}

// Dispatch runs cmd against the controller. Errors are reported in the result, never returned.
func Dispatch(ctx context.Context, c Controller, cmd Command) CommandResult {
	result := CommandResult{CommandID: cmd.ID, Type: cmd.Type}
	var err error

	switch cmd.Type {
	case CommandStartMatch:
		err = c.StartMatch(ctx)
	case CommandToggleTimer:
		err = c.ToggleTimer(ctx)
	case CommandEndFirstHalf:
		err = c.EndFirstHalf(ctx)
	case CommandStartSecondHalf:
		err = c.StartSecondHalf(ctx)
	case CommandEndMatch:
		err = c.EndMatch(ctx)
	case CommandClaim:
		result.Result = c.Claim(ctx)
	case CommandRelease:
		c.Release(ctx)
	case CommandUndo:
		result.Result = c.PerformUndo(ctx)
	case CommandRecordGoal:
		var data RecordGoalData
		if err = decode(cmd.Data, &data); err == nil {
			result.Result, err = c.RecordGoal(ctx, data.ScorerID, data.AssistID, data.IsOurTeam)
		}
	case CommandRecordSubstitution:
		var data RecordSubstitutionData
		if err = decode(cmd.Data, &data); err == nil {
			if data.PlayerOffID == uuid.Nil || data.PlayerOnID == uuid.Nil {
				err = fmt.Errorf("player_off_id and player_on_id are required")
			} else {
				result.Result, err = c.RecordSubstitution(ctx, data.PlayerOffID, data.PlayerOnID)
			}
		}
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}

	if err != nil {
		result.Error = err.Error()
		result.Result = nil
		return result
	}
	result.OK = true
	return result
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("command data is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid command data: %w", err)
	}
	return nil
}
