package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ramesius/wez-sonos/internal/events"
)

// StreamEvent is the wire shape pushed to websocket clients.
type StreamEvent struct {
	SID        string            `json:"sid"`
	DeviceIP   string            `json:"device_ip"`
	Service    string            `json:"service"`
	Seq        uint32            `json:"seq"`
	SeqGap     bool              `json:"seq_gap,omitempty"`
	OutOfOrder bool              `json:"out_of_order,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	Error      string            `json:"error,omitempty"`
}

const writeTimeout = 5 * time.Second

// StreamHub fans decoded events out to websocket subscribers.
type StreamHub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewStreamHub creates an empty hub.
func NewStreamHub() *StreamHub {
	return &StreamHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The API is already token-guarded; the hub serves LAN clients.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// HandleWS upgrades the request and registers the connection.
func (h *StreamHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("STREAM: Upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	// Reads are only drained to notice the close frame.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Broadcast pushes the event to every connected client. Writers that fail
// are dropped; a stuck client must not hold up event delivery.
func (h *StreamHub) Broadcast(ev events.Event) {
	payload := StreamEvent{
		SID:        ev.SID,
		DeviceIP:   ev.DeviceIP,
		Service:    string(ev.Service),
		Seq:        ev.Seq,
		SeqGap:     ev.SeqGap,
		OutOfOrder: ev.OutOfOrder,
	}
	if ev.Change != nil {
		payload.Properties = ev.Change.Properties
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}

	// Writes hold the hub lock: gorilla connections do not allow concurrent
	// writers, and pumps for different subscriptions broadcast concurrently.
	h.mu.Lock()
	var failed []*websocket.Conn
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(payload); err != nil {
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		delete(h.conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range failed {
		conn.Close()
	}
}

// CloseAll drops every client, used on shutdown.
func (h *StreamHub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (h *StreamHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}
