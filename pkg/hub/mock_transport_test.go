package hub

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockTransport is an in-memory Transport that records written frames
type mockTransport struct {
	mu         sync.Mutex
	frames     [][]byte
	pings      int
	closed     bool
	failWrites bool
}

type mockAddr string

func (a mockAddr) Network() string { return "mock" }
func (a mockAddr) String() string  { return string(a) }

func newMockTransport() *mockTransport {
	return &mockTransport{}
}

func (m *mockTransport) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return net.ErrClosed
	}
	if m.failWrites {
		return errors.New("write failed")
	}

	frame := append([]byte(nil), data...)
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockTransport) WriteControl(messageType int, data []byte, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return net.ErrClosed
	}
	if m.failWrites {
		return errors.New("write failed")
	}

	if messageType == websocket.PingMessage {
		m.pings++
	}
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) RemoteAddr() net.Addr {
	return mockAddr("mock:0")
}

func (m *mockTransport) setFailWrites(fail bool) {
	m.mu.Lock()
	m.failWrites = fail
	m.mu.Unlock()
}

func (m *mockTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockTransport) pingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pings
}

func (m *mockTransport) frameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// reset drops recorded frames (e.g. the handshake ack) so a test can assert
// on subsequent traffic only
func (m *mockTransport) reset() {
	m.mu.Lock()
	m.frames = nil
	m.mu.Unlock()
}

// wireMessage mirrors the outbound frame shape for assertions
type wireMessage struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (m *mockTransport) messages(t *testing.T) []wireMessage {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := make([]wireMessage, 0, len(m.frames))
	for _, frame := range m.frames {
		var msg wireMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("Failed to decode recorded frame %q: %v", frame, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (m *mockTransport) lastMessage(t *testing.T) wireMessage {
	t.Helper()

	msgs := m.messages(t)
	if len(msgs) == 0 {
		t.Fatal("Expected at least one recorded frame")
	}
	return msgs[len(msgs)-1]
}
