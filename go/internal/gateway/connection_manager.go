package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/slapboard/go/internal/reaction"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// ErrSendBufferFull is returned when a viewer is not reading fast enough
var ErrSendBufferFull = errors.New("connection send buffer full")

// ErrConnectionClosed is returned when sending to a closed connection
var ErrConnectionClosed = errors.New("connection closed")

// ConnectionManager manages viewer WebSocket connections. Every connection owns its
// own reaction board; counts and store status are broadcast to all of them.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig
	boards BoardConfig

	// Event broadcasting
	broadcastCh chan *ServerMessage
}

// Connection represents a WebSocket connection to a viewer
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager
	Board   *reaction.Board

	// Connection metadata
	ConnectedAt time.Time

	sendMu sync.Mutex
	closed bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BoardConfig is what each connection's reaction board is built from
type BoardConfig struct {
	Roster   *tally.Roster
	Store    reaction.Incrementer
	Reaction reaction.Config
	Metrics  reaction.MetricsCollector
	// AssetURL resolves image and sound references for viewers
	AssetURL func(ref string) string
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, boards BoardConfig) *ConnectionManager {
	if boards.AssetURL == nil {
		boards.AssetURL = func(ref string) string { return ref }
	}
	if boards.Metrics == nil {
		boards.Metrics = reaction.NoOpMetricsCollector{}
	}

	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		boards:      boards,
		broadcastCh: make(chan *ServerMessage, 1000), // Buffer for high throughput
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and builds the viewer's board.
// welcome is sent before any other message.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, welcome func(*Connection) (*ServerMessage, error)) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	board, err := reaction.NewBoard(cm.boards.Roster, cm.boards.Store, cm.boards.Reaction,
		reaction.WithID(connection.ID[:8]),
		reaction.WithSoundPlayer(connection),
		reaction.WithObserver(connection.observe),
		reaction.WithMetrics(cm.boards.Metrics),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create board: %w", err)
	}
	connection.Board = board

	if welcome != nil {
		msg, err := welcome(connection)
		if err != nil {
			log.Error().Err(err).Str("connection_id", connection.ID).Msg("failed to build welcome message")
		} else if err := connection.SendMessage(msg); err != nil {
			log.Warn().Err(err).Str("connection_id", connection.ID).Msg("failed to queue welcome message")
		}
	}

	// Register the connection
	cm.registerConnection(connection)

	// Start connection handlers
	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and stops its board
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	delete(cm.connections, conn)
	cm.mu.Unlock()

	if !exists {
		return
	}

	conn.closeSend()
	// waits for in-flight increments, so keep it off the caller's goroutine
	go conn.Board.Close()

	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", time.Since(conn.ConnectedAt)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// Broadcast sends a message to every connection
func (cm *ConnectionManager) Broadcast(message *ServerMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().Str("type", string(message.Type)).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message *ServerMessage) {
	// Create a snapshot of connections to avoid holding lock during broadcast
	cm.mu.RLock()
	targetConnections := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	// Marshal the message once
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	for _, conn := range targetConnections {
		if err := conn.trySend(data); err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				continue
			}
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("type", string(message.Type)).
		Int("connections", len(targetConnections)).
		Msg("message broadcasted")
}

// ConnectionCount returns the number of open connections
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	reacting := 0
	for conn := range cm.connections {
		for _, v := range conn.Board.Views() {
			if v.State == reaction.Reacting {
				reacting++
			}
		}
	}

	return map[string]interface{}{
		"total_connections": len(cm.connections),
		"active_reactions":  reacting,
	}
}

// SendMessage queues a message for this connection only
func (c *Connection) SendMessage(message *ServerMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.trySend(data)
}

// Play implements reaction.SoundPlayer by asking the viewer to play the sound.
// A viewer that cannot take the message counts as a failed playback.
func (c *Connection) Play(ctx context.Context, team tally.TeamID, sound string) error {
	msg, err := NewServerMessage(MessageTypePlaySound, PlaySoundPayload{
		Team:     team,
		SoundURL: c.Manager.boards.AssetURL(sound),
	})
	if err != nil {
		return err
	}
	return c.SendMessage(msg)
}

// observe forwards board transitions to this viewer
func (c *Connection) observe(ev reaction.Event) {
	msg, err := NewServerMessage(MessageTypeReaction, c.reactionPayload(ev.Type, ev.View))
	if err != nil {
		log.Error().Err(err).Msg("failed to build reaction message")
		return
	}
	if err := c.SendMessage(msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("reaction update not delivered")
	}
}

func (c *Connection) reactionPayload(event reaction.EventType, v reaction.View) ReactionPayload {
	p := ReactionPayload{
		Event:   event,
		Team:    v.Team,
		State:   v.State,
		Impact:  v.Impact,
		Visible: v.Visible,
	}
	if v.Selection != "" {
		p.ImageURL = c.Manager.boards.AssetURL(v.Selection)
	}
	return p
}

func (c *Connection) trySend(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the viewer
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError(fmt.Sprintf("invalid message: %v", err))
		return
	}

	switch msg.Type {
	case ClientMessageClick:
		accepted, err := c.Board.Click(msg.Team)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		log.Debug().
			Str("connection_id", c.ID).
			Str("team", string(msg.Team)).
			Bool("accepted", accepted).
			Msg("click")
	default:
		c.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (c *Connection) sendError(text string) {
	msg, err := NewServerMessage(MessageTypeError, ErrorPayload{Message: text})
	if err != nil {
		return
	}
	if err := c.SendMessage(msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("error message not delivered")
	}
}
