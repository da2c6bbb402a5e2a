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
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bunker/go/internal/bunker/events"
)

// ActionHandler consumes inbound actions and connection loss.
type ActionHandler interface {
	HandleAction(handle string, action events.Action)
	Disconnect(handle string)
}

// ConnectionManager manages WebSocket connections. Each connection ID is the
// handle rooms address notifications to.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock
	handler  ActionHandler

	outbound chan outboundMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	closeOnce   sync.Once
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
	QueueSize       int
	CheckOrigin     func(r *http.Request) bool
}

// outboundMessage is one encoded notification and its recipients.
type outboundMessage struct {
	handles []string
	data    []byte
	event   *events.RoomEvent
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		QueueSize:       1000,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:   config,
		clock:    clock,
		outbound: make(chan outboundMessage, config.QueueSize),
	}
}

// Start delivers queued notifications until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.outbound:
			cm.deliver(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
	}
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and reports whether it was still
// registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if current, ok := cm.connections[conn.ID]; !ok || current != conn {
		return false
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection unregistered")
	return true
}

// Broadcast queues payload for every listed handle of a room.
func (cm *ConnectionManager) Broadcast(roomCode string, handles []string, payload events.Payload) {
	if len(handles) == 0 {
		return
	}
	cm.enqueue(roomCode, handles, payload)
}

// Send queues payload for a single handle.
func (cm *ConnectionManager) Send(roomCode string, handle string, payload events.Payload) {
	cm.enqueue(roomCode, []string{handle}, payload)
}

func (cm *ConnectionManager) enqueue(roomCode string, handles []string, payload events.Payload) {
	event, err := events.NewRoomEvent(roomCode, payload, cm.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room_code", roomCode).Msg("failed to build room event")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room_code", roomCode).Msg("failed to marshal room event")
		return
	}

	select {
	case cm.outbound <- outboundMessage{handles: handles, data: data, event: event}:
	default:
		log.Warn().
			Str("room_code", roomCode).
			Str("event_type", string(event.Type)).
			Msg("outbound queue full, dropping message")
	}
}

func (cm *ConnectionManager) deliver(message outboundMessage) {
	cm.mu.RLock()
	targets := make([]*Connection, 0, len(message.handles))
	for _, h := range message.handles {
		if conn, ok := cm.connections[h]; ok {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if !conn.trySend(message.data) {
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			conn.close()
		}
	}

	log.Debug().
		Str("event_type", string(message.event.Type)).
		Str("room_code", message.event.RoomCode).
		Int("connections", len(targets)).
		Msg("event delivered")
}

// trySend queues data without blocking. It reports false when the buffer is
// full; a closed connection silently drops the message.
func (c *Connection) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = true
		}
	}()
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// close tears the connection down once and tells the handler it is gone.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		if h := c.Manager.handler; h != nil {
			h.Disconnect(c.ID)
		}
	})
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
}

// ConnectionStats describes the live connections.
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
	QueuedMessages   int `json:"queued_messages"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return ConnectionStats{
		TotalConnections: len(cm.connections),
		QueuedMessages:   len(cm.outbound),
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
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
				log.Debug().
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
	defer c.close()

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
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes one inbound frame and hands it on.
func (c *Connection) handleClientMessage(message []byte) {
	action, err := events.ParseAction(message)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Msg("invalid client message")
		c.Manager.Send("", c.ID, events.ErrorPayload{Message: "invalid message"})
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("action", string(action.ActionType())).
		Msg("received client action")

	if h := c.Manager.handler; h != nil {
		h.HandleAction(c.ID, action)
	}
}
