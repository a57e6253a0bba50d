package services

import (
	"log"
	"sync"
	"time"
)

// Event is one outbound notification payload.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Notification event types emitted at each orchestration milestone.
const (
	EventQueueJoined = "queue-joined"
	EventQueueStatus = "queue-status"
	EventMatchFound  = "match-found"
	EventGameStarted = "game-started"
	EventMoveApplied = "move-applied"
	EventGameEnded   = "game-ended"
)

// Connection is one participant's live delivery channel.
type Connection struct {
	ParticipantID string
	Events        chan Event
	ConnectedAt   time.Time

	mu        sync.Mutex
	expiresAt time.Time
	closed    bool
}

// Touch pushes the connection's expiry forward.
func (c *Connection) Touch(ttl time.Duration) {
	c.mu.Lock()
	c.expiresAt = time.Now().Add(ttl)
	c.mu.Unlock()
}

func (c *Connection) expired(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.After(c.expiresAt)
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Events)
	}
}

// trySend delivers without blocking. It holds the connection mutex so a
// concurrent close cannot slip between the closed check and the send.
func (c *Connection) trySend(event Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}

// ConnectionRegistry tracks which participants are reachable and owns the
// expiry of their delivery channels. It is injected wherever connectivity
// matters; nothing reaches it through globals.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	ttl   time.Duration
}

func NewConnectionRegistry(ttl time.Duration) *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*Connection),
		ttl:   ttl,
	}
}

// Register opens a delivery channel for the participant, displacing and
// closing any previous one.
func (r *ConnectionRegistry) Register(participantID string) *Connection {
	conn := &Connection{
		ParticipantID: participantID,
		Events:        make(chan Event, 32),
		ConnectedAt:   time.Now(),
		expiresAt:     time.Now().Add(r.ttl),
	}

	r.mu.Lock()
	if old, ok := r.conns[participantID]; ok {
		old.close()
	}
	r.conns[participantID] = conn
	r.mu.Unlock()
	return conn
}

// Unregister drops the connection if it is still the participant's current
// one. A stale unregister (after a newer Register displaced it) is a no-op.
func (r *ConnectionRegistry) Unregister(conn *Connection) bool {
	r.mu.Lock()
	current, ok := r.conns[conn.ParticipantID]
	if !ok || current != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, conn.ParticipantID)
	r.mu.Unlock()
	conn.close()
	return true
}

// IsConnected reports whether the participant has a live channel.
func (r *ConnectionRegistry) IsConnected(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[participantID]
	return ok
}

// Send delivers an event without blocking. A full, closed, or missing
// channel drops the event; delivery is best-effort by design of the
// external collaborator.
func (r *ConnectionRegistry) Send(participantID string, event Event) bool {
	r.mu.RLock()
	conn, ok := r.conns[participantID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if !conn.trySend(event) {
		log.Printf("[CONN] Dropping %s event for %s", event.Type, participantID)
		return false
	}
	return true
}

// SweepExpired closes and removes connections whose expiry has passed and
// returns the affected participant IDs so the orchestrator can treat them
// as connection-lost signals.
func (r *ConnectionRegistry) SweepExpired() []string {
	now := time.Now()

	r.mu.Lock()
	var expired []string
	for id, conn := range r.conns {
		if conn.expired(now) {
			expired = append(expired, id)
			delete(r.conns, id)
			conn.close()
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		log.Printf("[CONN] Expired connection for %s", id)
	}
	return expired
}
