// Package hub tracks live chat connections per participant.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/studybuddy/internal/observability"
)

// ErrBufferFull is returned when a connection's send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// Connection represents a single WebSocket connection.
type Connection struct {
	ID            string
	ParticipantID string
	Username      string
	FirstName     string
	Conn          *websocket.Conn
	Send          chan []byte
	mu            sync.Mutex
}

// Hub manages all WebSocket connections. One participant may hold several
// connections; messages for the participant go to all of them.
type Hub struct {
	connections  map[string]*Connection
	participants map[string]map[string]*Connection

	register   chan *Connection
	unregister chan *Connection

	mu sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections:  make(map[string]*Connection),
		participants: make(map[string]map[string]*Connection),
		register:     make(chan *Connection),
		unregister:   make(chan *Connection),
	}
}

// Run processes registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log := observability.WithFields("component", "hub")
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			log.Debug("connection registered", "conn_id", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				h.unbindLocked(conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Debug("connection unregistered", "conn_id", conn.ID, "participant", conn.ParticipantID)
		}
	}
}

// NewConnection wraps a WebSocket. It still has to be registered.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// BindParticipant attaches a connection to a participant, detaching it from
// any previous one.
func (h *Hub) BindParticipant(conn *Connection, participantID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(conn)
	conn.ParticipantID = participantID
	if h.participants[participantID] == nil {
		h.participants[participantID] = make(map[string]*Connection)
	}
	h.participants[participantID][conn.ID] = conn
}

func (h *Hub) unbindLocked(conn *Connection) {
	if conn.ParticipantID == "" || h.participants[conn.ParticipantID] == nil {
		return
	}
	delete(h.participants[conn.ParticipantID], conn.ID)
	if len(h.participants[conn.ParticipantID]) == 0 {
		delete(h.participants, conn.ParticipantID)
	}
}

// Deliver queues data on every connection of the participant and reports how
// many accepted it. Connections with a full buffer are dropped.
func (h *Hub) Deliver(participantID string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for connID, conn := range h.participants[participantID] {
		select {
		case conn.Send <- data:
			delivered++
		default:
			observability.Logger().Warn("connection buffer full, closing", "conn_id", connID)
			go h.Unregister(conn)
		}
	}
	return delivered
}

// DeliverJSON marshals v and delivers it to the participant.
func (h *Hub) DeliverJSON(participantID string, v interface{}) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return h.Deliver(participantID, data), nil
}

// SendToConnection queues data on one connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection marshals v and queues it on one connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// ParticipantCount returns the number of participants with a bound connection.
func (h *Hub) ParticipantCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.participants)
}

// Online reports whether the participant has a bound connection.
func (h *Hub) Online(participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.participants[participantID]) > 0
}

// WriteMessage writes to the socket. Writes are serialized per connection.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

func (c *Connection) Close() error {
	return c.Conn.Close()
}
