package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/firestone-hs/decktracker/internal/decktracker"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types sent to WebSocket clients.
const (
	MessageSnapshot      = "snapshot"
	MessageStateUpdate   = "state_update"
	MessageBattlegrounds = "bgs_state"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// WSMessage is the envelope written to clients.
type WSMessage struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// Hub fans notifications out to every connected WebSocket client. Slow
// clients are dropped rather than slowing the pipeline down.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu   sync.RWMutex
	last []byte

	auth     TokenChecker
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(auth TokenChecker, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		auth:       auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// local overlays connect from file:// and extension origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.logger.Info("websocket client registered", zap.String("remote_addr", c.addr), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Info("websocket client unregistered", zap.String("remote_addr", c.addr))
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					h.logger.Warn("dropping slow websocket client", zap.String("remote_addr", c.addr))
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Emit queues a notification for broadcast without waiting for clients.
func (h *Hub) Emit(ctx context.Context, n decktracker.Notification) {
	data, err := json.Marshal(WSMessage{Type: MessageStateUpdate, Event: n.Event.Name, Data: n.State})
	if err != nil {
		h.logger.Error("failed to encode notification", zap.String("event", n.Event.Name), zap.Error(err))
		return
	}
	snapshot, err := json.Marshal(WSMessage{Type: MessageSnapshot, Event: n.Event.Name, Data: n.State})
	if err == nil {
		h.mu.Lock()
		h.last = snapshot
		h.mu.Unlock()
	}
	h.enqueue(data, n.Event.Name)
}

// Broadcast sends an arbitrary payload to every client, e.g. battlegrounds
// snapshots.
func (h *Hub) Broadcast(msgType, event string, data any) {
	payload, err := json.Marshal(WSMessage{Type: msgType, Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.String("type", msgType), zap.Error(err))
		return
	}
	h.enqueue(payload, event)
}

func (h *Hub) enqueue(data []byte, event string) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("websocket broadcast queue full", zap.String("event", event))
	}
}

// ServeHTTP upgrades an authenticated request and streams notifications.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Check(tokenFromRequest(r)); err != nil {
		h.logger.Warn("websocket client rejected", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer), addr: r.RemoteAddr}
	h.mu.RLock()
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.RUnlock()
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump only handles control frames; clients never send commands.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("remote_addr", c.addr), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ListenAndServe serves the hub on addr at path until ctx is done.
func (h *Hub) ListenAndServe(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	h.logger.Info("starting websocket forwarder", zap.String("address", addr), zap.String("path", path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
