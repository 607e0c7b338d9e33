// hubload opens many websocket connections against a running hub,
// authenticates each one to a synthetic (user, tenant) pair and counts the
// frames it receives. Useful for eyeballing fan-out throughput and heartbeat
// behavior under load.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type authPayload struct {
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
}

var (
	received      atomic.Int64
	authenticated atomic.Int64
	failures      atomic.Int64
)

func main() {
	addr := flag.String("addr", "ws://localhost:8090/ws", "Hub websocket URL")
	clients := flag.Int("clients", 100, "Number of concurrent clients")
	tenants := flag.Int("tenants", 5, "Number of synthetic tenants to spread clients over")
	rampUp := flag.Duration("ramp", 5*time.Second, "Time to spread connection attempts over")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Connecting %d clients across %d tenants to %s", *clients, *tenants, *addr)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	delay := *rampUp / time.Duration(*clients)
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runClient(*addr, n, n%*tenants, stop)
		}(i)
		time.Sleep(delay)
	}

	// Periodic stats until interrupted
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			log.Printf("authenticated=%d received=%d failures=%d",
				authenticated.Load(), received.Load(), failures.Load())
		case <-sigChan:
			log.Println("Disconnecting...")
			close(stop)
			wg.Wait()
			log.Printf("Final: authenticated=%d received=%d failures=%d",
				authenticated.Load(), received.Load(), failures.Load())
			return
		}
	}
}

func runClient(addr string, n, tenant int, stop <-chan struct{}) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		failures.Add(1)
		log.Printf("client %d: dial failed: %v", n, err)
		return
	}
	defer conn.Close()

	auth, _ := json.Marshal(authPayload{
		UserID:   fmt.Sprintf("load-user-%d", n),
		TenantID: fmt.Sprintf("load-tenant-%d", tenant),
	})
	frame, _ := json.Marshal(map[string]json.RawMessage{
		"type": json.RawMessage(`"authenticate"`),
		"data": auth,
	})
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		failures.Add(1)
		return
	}

	go func() {
		<-stop
		conn.Close()
	}()

	// The default gorilla ping handler answers heartbeat probes with pongs,
	// so reading is all a client has to do to stay alive.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
			default:
				failures.Add(1)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch env.Type {
		case "authenticated":
			authenticated.Add(1)
		default:
			received.Add(1)
		}
	}
}
