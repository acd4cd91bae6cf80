// Package notify defines the fire-and-forget notification surface of a tracking session.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a single toast shown to the user.
type Notification struct {
	Level       Level         `json:"level"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the global logger.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	log.Info().
		Str("level", string(n.Level)).
		Str("title", n.Title).
		Str("description", n.Description).
		Msg("notification")
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.all))
	copy(out, r.all)
	return out
}

// Count returns how many recorded notifications have the given title.
func (r *Recorder) Count(title string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.all {
		if item.Title == title {
			n++
		}
	}
	return n
}

// Len returns the number of recorded notifications.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.all)
}
