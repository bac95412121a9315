package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	portnotifier "github.com/alanyang/agent-queue/internal/port/notifier"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 64
)

var _ portnotifier.RosterNotifier = (*Hub)(nil)

// SnapshotFunc must call greet exactly once with the current roster message,
// atomically with respect to Broadcast calls.
type SnapshotFunc func(greet func(msg any))

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (cl *client) close() {
	cl.once.Do(func() { close(cl.send) })
}

// Hub fans roster messages out to every connected dashboard. Broadcast only
// enqueues; each client has its own writer goroutine, so a slow dashboard is
// dropped instead of stalling the caller.
type Hub struct {
	upgrader websocket.Upgrader
	clients  map[*client]struct{}
	mu       sync.Mutex

	snapshotMu sync.RWMutex
	snapshot   SnapshotFunc
}

// NewHub accepts upgrade requests from origins; "*" or an empty list allows any.
func NewHub(origins []string) *Hub {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// SetSnapshot installs the source of the message sent to a client right after
// it connects.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.snapshotMu.Lock()
	h.snapshot = fn
	h.snapshotMu.Unlock()
}

func (h *Hub) Register(rg *gin.RouterGroup) {
	rg.GET("", h.handleWS)
}

func (h *Hub) handleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	go h.writePump(cl)
	h.join(cl)

	defer func() {
		h.leave(cl)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// join queues the greeting and registers cl in one step of the snapshot
// source, so no broadcast lands between them. h.mu is never held while the
// snapshot source runs.
func (h *Hub) join(cl *client) {
	h.snapshotMu.RLock()
	fn := h.snapshot
	h.snapshotMu.RUnlock()

	register := func() {
		h.mu.Lock()
		h.clients[cl] = struct{}{}
		h.mu.Unlock()
	}
	if fn == nil {
		register()
		return
	}
	fn(func(msg any) {
		data, err := json.Marshal(msg)
		if err != nil {
			slog.Error("websocket snapshot marshal failed", "error", err)
		} else {
			cl.send <- data
		}
		register()
	})
}

func (h *Hub) leave(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	cl.close()
}

func (h *Hub) writePump(cl *client) {
	for data := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("websocket write failed", "error", err)
			cl.conn.Close()
			h.leave(cl)
			for range cl.send {
			}
			return
		}
	}
}

// Broadcast implements port/notifier.RosterNotifier. A client whose queue is
// full is disconnected.
func (h *Hub) Broadcast(_ context.Context, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket broadcast marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			slog.Warn("websocket client too slow, disconnecting")
			delete(h.clients, cl)
			cl.close()
			cl.conn.Close()
		}
	}
}

// Clients reports the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
