package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"statbench/internal"

	"github.com/gin-gonic/gin"
)

// Event types streamed to clients
const (
	TypeTableUpdated = "table_updated"
	TypeTableCleared = "table_cleared"
)

// TableEvent describes one swap of the current materialized table
type TableEvent struct {
	EventType   string    `json:"event_type"`
	DatasetID   string    `json:"dataset_id,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Columns     int       `json:"columns"`
	Rows        int       `json:"rows"`
	TotalRows   int       `json:"total_rows"`
	Timestamp   time.Time `json:"timestamp"`
}

// SSEHub fans table events out to Server-Sent Events clients
type SSEHub struct {
	clients    map[chan TableEvent]bool
	clientsMu  sync.RWMutex
	register   chan chan TableEvent
	unregister chan chan TableEvent
	broadcast  chan TableEvent
	done       chan struct{}
	logger     *internal.Logger

	keepAlive time.Duration
}

// NewSSEHub creates a hub and starts its dispatch loop
func NewSSEHub(logger *internal.Logger) *SSEHub {
	hub := &SSEHub{
		clients:    make(map[chan TableEvent]bool),
		register:   make(chan chan TableEvent, 10),
		unregister: make(chan chan TableEvent, 10),
		broadcast:  make(chan TableEvent, 100),
		done:       make(chan struct{}),
		logger:     logger,
		keepAlive:  30 * time.Second,
	}

	go hub.run()
	return hub
}

// run processes hub operations until Close
func (h *SSEHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.logger.Debug("[SSE] client registered (total clients: %d)", len(h.clients))
			h.clientsMu.Unlock()

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if h.clients[client] {
				delete(h.clients, client)
				close(client)
				h.logger.Debug("[SSE] client unregistered (remaining clients: %d)", len(h.clients))
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for client := range h.clients {
				select {
				case client <- event:
				default:
					h.logger.Warn("[SSE] client channel full, skipping %s event", event.EventType)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			h.clientsMu.Lock()
			for client := range h.clients {
				close(client)
			}
			h.clients = make(map[chan TableEvent]bool)
			h.clientsMu.Unlock()
			return
		}
	}
}

// Broadcast queues an event for every connected client without blocking
func (h *SSEHub) Broadcast(event TableEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("[SSE] broadcast channel full, dropping event: %s", event.EventType)
	}
}

// Close stops the dispatch loop and disconnects every client
func (h *SSEHub) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ClientCount returns the number of connected clients
func (h *SSEHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Handler returns an http.Handler serving the event stream at path
func (h *SSEHub) Handler(path string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET(path, h.HandleSSE)
	return engine
}

// HandleSSE streams table events until the client disconnects
func (h *SSEHub) HandleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan := make(chan TableEvent, 10)

	select {
	case h.register <- clientChan:
	default:
		c.JSON(503, gin.H{"code": "UNAVAILABLE", "message": "SSE hub registration failed"})
		return
	}

	defer func() {
		select {
		case h.unregister <- clientChan:
		default:
			// hub overloaded; the channel is closed on Close
		}
	}()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			eventJSON, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("[SSE] failed to marshal event: %v", err)
				return true
			}
			c.SSEvent("table", string(eventJSON))
			return true

		case <-time.After(h.keepAlive):
			c.SSEvent("ping", `{"status":"alive","timestamp":"`+time.Now().UTC().Format(time.RFC3339)+`"}`)
			return true

		case <-ctx.Done():
			return false
		}
	})
}
