package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service serves the tracker host UI: a command socket, a state push and a state snapshot.
type Service struct {
	cm            *ConnectionManager
	controller    Controller
	clock         clockwork.Clock
	stateInterval time.Duration
}

type Config struct {
	ConnectionConfig ConnectionConfig
	// StateInterval is how often the session view is pushed.
	StateInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		StateInterval:    time.Second,
	}
}

// NewService creates the UI service. The controller may be attached later with Attach when
// the session needs the service's notifier first.
func NewService(config Config, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.StateInterval <= 0 {
		config.StateInterval = time.Second
	}
	s := &Service{clock: clock, stateInterval: config.StateInterval}
	s.cm = NewConnectionManager(config.ConnectionConfig, s.handleCommand)
	return s
}

// Attach sets the session the UI drives.
func (s *Service) Attach(controller Controller) {
	s.controller = controller
}

// Notifier returns a notifier that pushes to this service's clients.
func (s *Service) Notifier() *Notifier {
	return NewNotifier(s.cm, s.clock)
}

// Start runs broadcasting and the periodic state push until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	go s.cm.Start(ctx)

	ticker := s.clock.NewTicker(s.stateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.pushState()
		}
	}
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/tracking", s.handleConnection)
	mux.HandleFunc("/ws/stats", s.handleStats)
	mux.HandleFunc("/api/state", s.handleState)
	log.Info().Msg("tracking gateway routes registered")
}

// Stats returns connection statistics.
func (s *Service) Stats() map[string]interface{} {
	return map[string]interface{}{
		"service":           "tracking_gateway",
		"total_connections": s.cm.Count(),
		"session_attached":  s.controller != nil,
	}
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write stats")
	}
}

func (s *Service) handleCommand(ctx context.Context, cmd Command) CommandResult {
	if s.controller == nil {
		return CommandResult{CommandID: cmd.ID, Type: cmd.Type, Error: "session is not ready"}
	}
	result := Dispatch(ctx, s.controller, cmd)
	// clients see the effect without waiting for the next tick
	s.pushState()
	return result
}

func (s *Service) pushState() {
	if s.controller == nil || s.cm.Count() == 0 {
		return
	}
	msg, err := newMessage(MessageTypeState, s.clock.Now(), s.controller.View())
	if err != nil {
		log.Error().Err(err).Msg("failed to encode session view")
		return
	}
	s.cm.Broadcast(msg)
}

func (s *Service) handleConnection(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}
	if err := s.cm.UpgradeConnection(w, r, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to upgrade WebSocket connection")
		return
	}
	s.pushState()
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controller == nil {
		http.Error(w, "session is not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.controller.View()); err != nil {
		log.Error().Err(err).Msg("failed to write session view")
	}
}
