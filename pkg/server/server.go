// Package server wires the realtime hub to its HTTP surface: the /ws
// upgrade endpoint for clients, /healthz for probes and /metrics for
// Prometheus scrapes.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harrissondutra/fitOS-sub015/pkg/hub"
)

// Server owns the HTTP listener and the hub behind it.
type Server struct {
	hub        *hub.Hub
	config     TOMLConfig
	httpServer *http.Server
	listener   net.Listener
	startTime  time.Time
	shutdown   chan struct{}
	wg         sync.WaitGroup
}

// New creates a server around an existing hub instance. The hub is
// constructor-injected so collaborators (the API layer emitting events) and
// the transport wiring share the same instance.
func New(config TOMLConfig, h *hub.Hub) *Server {
	s := &Server{
		hub:      h,
		config:   config,
		shutdown: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWebSocket)
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{Handler: mux}

	return s
}

// Hub returns the hub instance for collaborators that emit events.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener, starts the hub's heartbeat monitor and serves
// HTTP in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddr, err)
	}
	s.listener = listener
	s.startTime = time.Now()

	s.hub.Start()

	s.wg.Add(1)
	go s.serveLoop()

	log.Printf("Hub server listening on %s", listener.Addr())
	return nil
}

func (s *Server) serveLoop() {
	defer s.wg.Done()

	if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		select {
		case <-s.shutdown:
		default:
			log.Printf("HTTP serve error: %v", err)
		}
	}
}

// Stop closes the listener, every open connection and the hub.
func (s *Server) Stop() error {
	close(s.shutdown)

	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}

	s.wg.Wait()
	return s.hub.Close()
}

// HealthHandler serves health check status
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.hub.ConnectedClients()

	health := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"connections":    snap.Total,
		"tenants":        len(snap.ByTenant),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("Error encoding health JSON: %v", err)
	}
}
