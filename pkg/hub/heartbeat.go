package hub

import (
	"log"
	"time"
)

// heartbeatLoop runs the periodic liveness sweep until shutdown.
func (h *Hub) heartbeatLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.shutdown:
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// sweep runs one probe round over a snapshot of the open connections.
// Connections that did not answer the previous probe are terminated first,
// then every survivor is marked pending and probed with a ping frame. A
// connection that stays silent for two consecutive rounds is gone after one
// full interval of silence.
func (h *Hub) sweep() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	var stale, live []*Conn
	for _, c := range conns {
		if c.probePending() {
			stale = append(stale, c)
		} else {
			live = append(live, c)
		}
	}

	for _, c := range stale {
		log.Printf("Conn %s: heartbeat missed, terminating", c.id)
		if h.metrics != nil {
			h.metrics.RecordHeartbeatEviction()
		}
		h.teardown(c)
	}

	for _, c := range live {
		c.beginProbe()
		if err := c.ping(h.config.WriteTimeout); err != nil {
			debugLog.Printf("Conn %s: probe write failed: %v", c.id, err)
			if h.metrics != nil {
				h.metrics.RecordHeartbeatEviction()
			}
			h.teardown(c)
		}
	}
}
