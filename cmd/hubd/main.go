package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/harrissondutra/fitOS-sub015/pkg/hub"
	"github.com/harrissondutra/fitOS-sub015/pkg/server"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"
)

func main() {
	// Configure logger with microsecond precision
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	// Command line flags
	configPath := flag.String("config", "~/.fitos/hub.toml", "Path to config file")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	heartbeat := flag.Int("heartbeat", 0, "Heartbeat interval in seconds (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("FitOS Realtime Hub %s\n", Version)
		os.Exit(0)
	}

	// Load configuration (creates default if not found)
	config, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Command-line flags override config file
	if *addr != "" {
		config.Server.ListenAddr = *addr
	}
	if *heartbeat > 0 {
		config.Heartbeat.IntervalSeconds = *heartbeat
	}

	if *debug {
		hub.EnableDebugLogging()
		log.Printf("Debug logging enabled")
	}

	h := hub.NewHub(config.ToHubConfig())
	h.SetMetrics(hub.NewMetrics())

	srv := server.New(config, h)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Printf("FitOS realtime hub %s started successfully", Version)
	log.Printf("WebSocket endpoint: ws://%s/ws", srv.Addr())
	log.Printf("Heartbeat interval: %ds", config.Heartbeat.IntervalSeconds)

	// Start pprof HTTP server for profiling
	if config.Server.PprofAddr != "" {
		go func() {
			log.Printf("Starting pprof server on http://%s", config.Server.PprofAddr)
			if err := http.ListenAndServe(config.Server.PprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down hub...")
	if err := srv.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Hub stopped")
}
