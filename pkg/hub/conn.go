package hub

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Transport is the subset of *websocket.Conn the hub needs. It exists so
// tests can substitute an in-memory transport.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
	RemoteAddr() net.Addr
}

// Conn is one accepted websocket session. It starts unauthenticated; the
// handshake gate binds a user/tenant identity on a successful authenticate
// message.
type Conn struct {
	id        string // for log correlation only
	transport Transport

	writeMu sync.Mutex // serializes writes, preserving per-connection order

	mu            sync.Mutex // guards the fields below
	authenticated bool
	userID        string
	tenantID      string
	alive         bool // true once a pong arrived since the last probe
	closed        bool
}

func newConn(transport Transport) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		transport: transport,
		alive:     true,
	}
}

// ID returns the connection's log correlation id.
func (c *Conn) ID() string {
	return c.id
}

// Identity returns the bound user/tenant pair. ok is false until the
// connection has authenticated.
func (c *Conn) Identity() (userID, tenantID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.tenantID, c.authenticated
}

func (c *Conn) bindIdentity(userID, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.tenantID = tenantID
	c.authenticated = true
}

// send marshals msg and writes it as a single text frame. Returns an error
// for closed connections and failed writes; callers convert that into a
// best-effort delivery result, never a fault.
func (c *Conn) send(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return net.ErrClosed
	}
	c.mu.Unlock()

	return c.transport.WriteMessage(websocket.TextMessage, payload)
}

// ping sends a transport-level probe frame.
func (c *Conn) ping(timeout time.Duration) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return net.ErrClosed
	}
	c.mu.Unlock()

	return c.transport.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

// markAlive records a probe acknowledgement (pong frame).
func (c *Conn) markAlive() {
	c.mu.Lock()
	c.alive = true
	c.mu.Unlock()
}

// probePending reports whether the connection failed to answer the previous
// probe round.
func (c *Conn) probePending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.alive
}

// beginProbe resets liveness ahead of a new probe round.
func (c *Conn) beginProbe() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}

// close shuts the underlying transport down. Idempotent.
func (c *Conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.transport.Close(); err != nil {
		debugLog.Printf("Conn %s: transport close: %v", c.id, err)
	}
}

// isClosed reports whether close has run.
func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
