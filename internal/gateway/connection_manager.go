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
	"github.com/tandemlabs/tandem/internal/events"
)

// ConnectionManager owns the WebSocket connections of all connected actors,
// pooled per pairing
type ConnectionManager struct {
	pairingConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection represents one actor's channel
type Connection struct {
	ID        string
	ActorID   uuid.UUID
	PairingID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents an event to fan out to a pairing's connections
type BroadcastMessage struct {
	PairingID uuid.UUID
	Event     *events.Event
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		pairingConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, actorID, pairingID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		ActorID:     actorID,
		PairingID:   pairingID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("actor_id", actorID.String()).
		Str("pairing_id", pairingID.String()).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.pairingConnections[conn.PairingID] == nil {
		cm.pairingConnections[conn.PairingID] = make(map[*Connection]bool)
	}
	cm.pairingConnections[conn.PairingID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("pairing_id", conn.PairingID.String()).
		Int("total_connections", len(cm.pairingConnections[conn.PairingID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.pairingConnections[conn.PairingID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)

			if len(connections) == 0 {
				delete(cm.pairingConnections, conn.PairingID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("actor_id", conn.ActorID.String()).
				Str("pairing_id", conn.PairingID.String()).
				Msg("connection unregistered")
		}
	}
}

// Broadcast sends an event to the pairing's connected actors; an event with
// a target actor reaches only that actor's connections
func (cm *ConnectionManager) Broadcast(pairingID uuid.UUID, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{PairingID: pairingID, Event: event}:
	default:
		log.Warn().Str("pairing_id", pairingID.String()).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends happen under the read lock: unregisterConnection closes
	// conn.Send under the write lock, so a connection still in the map here
	// cannot have its channel closed mid-send. The select never blocks, so
	// the lock is held only briefly. Stalled connections are torn down
	// after the lock is released because unregister needs the write lock.
	cm.mu.RLock()
	connections, exists := cm.pairingConnections[message.PairingID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	sent := 0
	var stalled []*Connection
	for conn := range connections {
		if message.Event.TargetActorID != nil && conn.ActorID != *message.Event.TargetActorID {
			continue
		}
		select {
		case conn.Send <- eventData:
			sent++
		default:
			stalled = append(stalled, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range stalled {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("actor_id", conn.ActorID.String()).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", message.Event.Type).
		Str("pairing_id", message.PairingID.String()).
		Int("connections", sent).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() (totalConnections, activePairings int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, connections := range cm.pairingConnections {
		totalConnections += len(connections)
	}
	return totalConnections, len(cm.pairingConnections)
}

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
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
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

		// Inbound client frames carry no commands yet; actions go over HTTP
		log.Debug().
			Str("connection_id", c.ID).
			Str("actor_id", c.ActorID.String()).
			RawJSON("message", message).
			Msg("received client message")

		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
