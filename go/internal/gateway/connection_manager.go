package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// CommandFunc handles a command received on a connection.
type CommandFunc func(ctx context.Context, cmd Command) CommandResult

// ConnectionManager manages the UI sockets of one tracker host.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	onCommand   CommandFunc
	broadcastCh chan *Message
	// ctx scopes commands; it outlives the upgrade request
	ctx context.Context
}

// Connection is one UI client.
type Connection struct {
	ID      string
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	closeOnce   sync.Once
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, onCommand CommandFunc) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		onCommand:   onCommand,
		broadcastCh: make(chan *Message, 256),
		ctx:         context.Background(),
	}
}

// Start fans broadcast messages out until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.mu.Lock()
	cm.ctx = ctx
	cm.mu.Unlock()
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			cm.closeAll()
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a UI socket.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, 64),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}
	ctx := cm.register(connection)

	go connection.writePump()
	go connection.readPump(ctx)

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Msg("WebSocket connection established")
	return nil
}

// Broadcast queues msg for every connection. A full queue drops the message.
func (cm *ConnectionManager) Broadcast(msg *Message) {
	select {
	case cm.broadcastCh <- msg:
	default:
		log.Warn().Str("type", string(msg.Type)).Msg("broadcast channel full, dropping message")
	}
}

// Count returns the number of open connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

func (cm *ConnectionManager) register(conn *Connection) context.Context {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn] = true
	return cm.ctx
}

func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, ok := cm.connections[conn]; !ok {
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)
	log.Info().Str("connection_id", conn.ID).Str("user_id", conn.UserID).Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	for _, conn := range conns {
		cm.unregister(conn)
	}
}

func (cm *ConnectionManager) handleBroadcast(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if !conn.enqueue(data) {
			log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, closing connection")
			cm.unregister(conn)
		}
	}
}

// enqueue reports false when the connection cannot keep up.
func (c *Connection) enqueue(data []byte) (ok bool) {
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if !c.Manager.connections[c] {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { c.Conn.Close() })
}

func (c *Connection) writePump() {
	cfg := c.Manager.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump(ctx context.Context) {
	cfg := c.Manager.config
	defer func() {
		c.Manager.unregister(c)
		c.close()
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		c.handleClientMessage(ctx, message)
	}
}

func (c *Connection) handleClientMessage(ctx context.Context, message []byte) {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.reply(CommandResult{Error: "invalid command"})
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("user_id", c.UserID).
		Str("command", string(cmd.Type)).
		Msg("received client command")

	if c.Manager.onCommand == nil {
		c.reply(CommandResult{CommandID: cmd.ID, Type: cmd.Type, Error: "commands are not accepted"})
		return
	}
	c.reply(c.Manager.onCommand(ctx, cmd))
}

func (c *Connection) reply(result CommandResult) {
	msg, err := newMessage(MessageTypeCommandResult, time.Now(), result)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode command result")
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode command result")
		return
	}
	if !c.enqueue(data) {
		log.Warn().Str("connection_id", c.ID).Msg("dropping command result for slow connection")
	}
}
