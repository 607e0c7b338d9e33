// Package hub implements the realtime notification hub: it accepts
// persistent websocket connections, authenticates them to a (user, tenant)
// identity, detects dead connections with transport-level probes, and routes
// application events to one user, all users of a tenant, or everyone.
//
// Delivery is best-effort and at-most-once. The hub never retries or queues;
// persistence of undelivered notifications is the caller's responsibility.
package hub

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)

// EnableDebugLogging routes per-connection debug output to stderr.
func EnableDebugLogging() {
	debugLog = log.New(os.Stderr, "DEBUG: ", log.LstdFlags|log.Lmicroseconds)
}

const (
	errMissingCredentials = "userId e tenantId são obrigatórios"
	errMissingToken       = "token é obrigatório"
	errInvalidToken       = "token inválido"
)

// TokenVerifier resolves an opaque session token to a verified identity.
// When configured, the handshake ignores client-claimed identifiers and
// trusts only the verifier's answer.
type TokenVerifier interface {
	Verify(token string) (userID, tenantID string, err error)
}

// Config holds hub tuning parameters.
type Config struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	MaxMessageBytes   int64
}

// DefaultConfig returns the default hub configuration.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxMessageBytes:   65536,
	}
}

// Hub owns the connection registry, the handshake gate, the message router
// and the heartbeat monitor. Construct with NewHub and call Start before
// using any router operation; using the router on an unstarted hub is a
// programmer error and panics.
type Hub struct {
	config   Config
	registry *Registry
	verifier TokenVerifier
	metrics  *Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   map[*Conn]struct{} // every open connection, authenticated or not
	started bool
	closed  bool

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewHub creates a hub with the given configuration.
func NewHub(config Config) *Hub {
	return &Hub{
		config:   config,
		registry: NewRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients connect from the app's own origin; token
				// verification (when enabled) is the real gate.
				return true
			},
		},
		conns:    make(map[*Conn]struct{}),
		shutdown: make(chan struct{}),
	}
}

// SetMetrics attaches metrics to the hub. Call before Start.
func (h *Hub) SetMetrics(metrics *Metrics) {
	h.metrics = metrics
}

// SetTokenVerifier enables token-based handshakes. Call before Start.
func (h *Hub) SetTokenVerifier(verifier TokenVerifier) {
	h.verifier = verifier
}

// Start launches the heartbeat monitor and marks the hub ready for routing.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started || h.closed {
		return
	}
	h.started = true

	h.wg.Add(1)
	go h.heartbeatLoop()
}

// requireStarted panics when a router operation runs before Start. Surfacing
// misuse immediately beats a silent no-op during development.
func (h *Hub) requireStarted() {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	if !started {
		panic("hub: router used before Start")
	}
}

// HandleWebSocket upgrades an HTTP request and runs the connection's read
// loop until the client goes away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := h.onOpen(ws)
	if c == nil {
		ws.Close()
		return
	}

	ws.SetReadLimit(h.config.MaxMessageBytes)
	ws.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	debugLog.Printf("Conn %s: opened from %s", c.id, ws.RemoteAddr())

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.onError(c, err)
			} else {
				h.onClose(c)
			}
			return
		}
		h.onMessage(c, raw)
	}
}

// onOpen registers a new connection with the lifecycle supervisor and the
// heartbeat monitor. The registry is untouched until the handshake succeeds.
func (h *Hub) onOpen(transport Transport) *Conn {
	c := newConn(transport)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.conns[c] = struct{}{}
	open := len(h.conns)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordConnectionOpened(open)
	}
	return c
}

// onMessage parses an inbound frame and dispatches it. Malformed input is
// logged and dropped; the connection stays open.
func (h *Hub) onMessage(c *Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		debugLog.Printf("Conn %s: unparseable message dropped: %v", c.id, err)
		return
	}

	switch env.Type {
	case TypeAuthenticate:
		h.handleAuthenticate(c, env.Data)
	case TypePing:
		h.respondPong(c)
	default:
		debugLog.Printf("Conn %s: unknown message type %q dropped", c.id, env.Type)
	}
}

// onError logs a transport error and tears the connection down.
func (h *Hub) onError(c *Conn, err error) {
	log.Printf("Conn %s: transport error: %v", c.id, err)
	h.teardown(c)
}

// onClose tears the connection down. Idempotent.
func (h *Hub) onClose(c *Conn) {
	h.teardown(c)
}

// handleAuthenticate is the sole admission path into the registry. On any
// rejection the connection stays unauthenticated and may retry on the same
// transport.
func (h *Hub) handleAuthenticate(c *Conn, data json.RawMessage) {
	var auth AuthenticateData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &auth); err != nil {
			debugLog.Printf("Conn %s: bad authenticate payload: %v", c.id, err)
		}
	}

	userID, tenantID := auth.UserID, auth.TenantID

	if h.verifier != nil {
		if auth.Token == "" {
			h.rejectHandshake(c, errMissingToken)
			return
		}
		verifiedUser, verifiedTenant, err := h.verifier.Verify(auth.Token)
		if err != nil {
			debugLog.Printf("Conn %s: token rejected: %v", c.id, err)
			h.rejectHandshake(c, errInvalidToken)
			return
		}
		userID, tenantID = verifiedUser, verifiedTenant
	}

	if userID == "" || tenantID == "" {
		h.rejectHandshake(c, errMissingCredentials)
		return
	}

	// Re-authentication under a new identity must release the old entry,
	// or it would dangle after this connection closes. Ref-equality keeps
	// a superseded connection from evicting someone else's entry.
	if oldUserID, _, ok := c.Identity(); ok && oldUserID != userID {
		if h.registry.Unbind(oldUserID, c) {
			debugLog.Printf("Conn %s: rebound from user %s to %s", c.id, oldUserID, userID)
		}
	}

	c.bindIdentity(userID, tenantID)
	h.registry.Bind(userID, c)

	if h.metrics != nil {
		h.metrics.RecordAuthSuccess()
		h.metrics.RecordRegisteredUsers(h.registry.Len())
	}
	log.Printf("Conn %s: authenticated user %s (tenant %s)", c.id, userID, tenantID)

	if err := c.send(authenticatedMessage()); err != nil {
		debugLog.Printf("Conn %s: authenticated ack failed: %v", c.id, err)
	}
}

func (h *Hub) rejectHandshake(c *Conn, reason string) {
	if h.metrics != nil {
		h.metrics.RecordAuthFailure()
	}
	if err := c.send(errorMessage(reason)); err != nil {
		debugLog.Printf("Conn %s: error reply failed: %v", c.id, err)
	}
}

// respondPong answers an application-level ping. Works for unauthenticated
// connections; the handshake is not a precondition for liveness control.
func (h *Hub) respondPong(c *Conn) {
	if err := c.send(pongMessage()); err != nil {
		debugLog.Printf("Conn %s: pong reply failed: %v", c.id, err)
	}
}

// teardown removes the connection from the supervisor, unbinds its registry
// entry (only if the entry still points at this exact connection) and closes
// the transport. Safe to call multiple times and from any teardown path:
// read-loop close, transport error, heartbeat eviction, DisconnectUser or
// Close.
func (h *Hub) teardown(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	open := len(h.conns)
	h.mu.Unlock()

	if userID, _, ok := c.Identity(); ok {
		if h.registry.Unbind(userID, c) {
			debugLog.Printf("Conn %s: unbound user %s", c.id, userID)
		}
	}
	c.close()

	if h.metrics != nil {
		h.metrics.RecordConnectionClosed(open)
		h.metrics.RecordRegisteredUsers(h.registry.Len())
	}
}

// deliver writes one message to one connection. A failed write is logged and
// reported as false, never propagated.
func (h *Hub) deliver(c *Conn, msg Message) bool {
	if err := c.send(msg); err != nil {
		debugLog.Printf("Conn %s: write failed (type=%s): %v", c.id, msg.Type, err)
		if h.metrics != nil {
			h.metrics.RecordDeliveryFailure()
		}
		return false
	}
	if h.metrics != nil {
		h.metrics.RecordMessageDelivered(msg.Type)
	}
	return true
}

// SendToUser delivers msg to the connection bound to userID. Returns false
// when the user is not connected or the write fails.
func (h *Hub) SendToUser(userID string, msg Message) bool {
	h.requireStarted()

	c, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	return h.deliver(c, msg)
}

// SendToTenant delivers msg to every user bound to tenantID and returns the
// number of successful deliveries. A failure for one recipient does not
// abort delivery to the others.
func (h *Hub) SendToTenant(tenantID string, msg Message) int {
	h.requireStarted()

	start := time.Now()
	count := 0
	h.registry.ForEachInTenant(tenantID, func(userID string, c *Conn) {
		if h.deliver(c, msg) {
			count++
		}
	})

	if h.metrics != nil {
		h.metrics.RecordFanout("tenant", count, time.Since(start).Seconds())
	}
	return count
}

// Broadcast delivers msg to every connected user and returns the number of
// successful deliveries.
func (h *Hub) Broadcast(msg Message) int {
	h.requireStarted()

	start := time.Now()
	count := 0
	h.registry.ForEachAll(func(userID string, c *Conn) {
		if h.deliver(c, msg) {
			count++
		}
	})

	if h.metrics != nil {
		h.metrics.RecordFanout("all", count, time.Since(start).Seconds())
	}
	return count
}

// SendNotification delivers a notification payload to one user.
func (h *Hub) SendNotification(userID string, notification any) bool {
	return h.SendToUser(userID, NewNotification(notification))
}

// SendAppointmentUpdate delivers an appointment change to one user.
func (h *Hub) SendAppointmentUpdate(userID string, appointment any, action string) bool {
	return h.SendToUser(userID, NewAppointmentUpdate(appointment, action))
}

// SendCRMUpdate delivers a CRM entity change to one user.
func (h *Hub) SendCRMUpdate(userID string, entity any, entityType, action string) bool {
	return h.SendToUser(userID, NewCRMUpdate(entity, entityType, action))
}

// SendBioimpedanceUpdate delivers a bioimpedance measurement to one user.
func (h *Hub) SendBioimpedanceUpdate(userID string, measurement any, action string) bool {
	return h.SendToUser(userID, NewBioimpedanceUpdate(measurement, action))
}

// SendStatsUpdate delivers a dashboard stats refresh to one user.
func (h *Hub) SendStatsUpdate(userID string, stats any) bool {
	return h.SendToUser(userID, NewStatsUpdate(stats))
}

// ConnectedClients returns a point-in-time view of the registry.
func (h *Hub) ConnectedClients() Snapshot {
	return h.registry.Snapshot()
}

// IsUserConnected reports whether userID has a live registry entry.
func (h *Hub) IsUserConnected(userID string) bool {
	_, ok := h.registry.Lookup(userID)
	return ok
}

// DisconnectUser closes the connection bound to userID. Returns false when
// the user is not connected.
func (h *Hub) DisconnectUser(userID string) bool {
	h.requireStarted()

	c, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	log.Printf("Conn %s: disconnecting user %s", c.id, userID)
	h.teardown(c)
	return true
}

// Close stops the heartbeat monitor, closes every open transport and clears
// the registry. The hub cannot be restarted.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	started := h.started
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*Conn]struct{})
	h.mu.Unlock()

	if started {
		close(h.shutdown)
		h.wg.Wait()
	}

	for _, c := range conns {
		c.close()
	}
	h.registry.Clear()

	if h.metrics != nil {
		h.metrics.RecordRegisteredUsers(0)
	}
	log.Printf("Hub closed (%d connections dropped)", len(conns))
	return nil
}
