package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType names a message pushed to UI clients.
type MessageType string

const (
	MessageTypeNotification  MessageType = "notification"
	MessageTypeState         MessageType = "state"
	MessageTypeCommandResult MessageType = "command_result"
)

// Message is the envelope for everything the host pushes over the socket.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// CommandType names a UI command.
type CommandType string

const (
	CommandStartMatch         CommandType = "start_match"
	CommandToggleTimer        CommandType = "toggle_timer"
	CommandEndFirstHalf       CommandType = "end_first_half"
	CommandStartSecondHalf    CommandType = "start_second_half"
	CommandEndMatch           CommandType = "end_match"
	CommandClaim              CommandType = "claim"
	CommandRelease            CommandType = "release"
	CommandUndo               CommandType = "undo"
	CommandRecordGoal         CommandType = "record_goal"
	CommandRecordSubstitution CommandType = "record_substitution"
)

// Command is a request sent by a UI client.
type Command struct {
	ID   string          `json:"id"`
	Type CommandType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type RecordGoalData struct {
	ScorerID  *uuid.UUID `json:"scorer_id,omitempty"`
	AssistID  *uuid.UUID `json:"assist_id,omitempty"`
	IsOurTeam bool       `json:"is_our_team"`
}

type RecordSubstitutionData struct {
	PlayerOffID uuid.UUID `json:"player_off_id"`
	PlayerOnID  uuid.UUID `json:"player_on_id"`
}

// CommandResult answers one command on the connection that sent it.
type CommandResult struct {
	CommandID string      `json:"command_id"`
	Type      CommandType `json:"type"`
	OK        bool        `json:"ok"`
	Error     string      `json:"error,omitempty"`
	Result    any         `json:"result,omitempty"`
}

func newMessage(msgType MessageType, at time.Time, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Timestamp: at, Data: raw}, nil
}
