package gateway

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchday/go/internal/tracking/notify"
)

// NotificationData is the wire form of a toast.
type NotificationData struct {
	Level       notify.Level `json:"level"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	DurationMs  int64        `json:"duration_ms,omitempty"`
}

// Notifier pushes session notifications to every UI client.
type Notifier struct {
	cm    *ConnectionManager
	clock clockwork.Clock
}

func NewNotifier(cm *ConnectionManager, clock clockwork.Clock) *Notifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Notifier{cm: cm, clock: clock}
}

func (n *Notifier) Notify(note notify.Notification) {
	msg, err := newMessage(MessageTypeNotification, n.clock.Now(), NotificationData{
		Level:       note.Level,
		Title:       note.Title,
		Description: note.Description,
		DurationMs:  note.Duration.Milliseconds(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode notification")
		return
	}
	n.cm.Broadcast(msg)
}
