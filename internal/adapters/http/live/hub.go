// Package live pushes match state to websocket clients as it changes.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/crease/pkg/logger"
	"github.com/okian/crease/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
	broadcastSize  = 256

	// allMatches subscribes a client to every match.
	allMatches = "*"
)

// Message is the envelope every client receives.
type Message struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// subscribeMsg is what a client sends to change its subscriptions.
type subscribeMsg struct {
	Action  string   `json:"action"` // subscribe or unsubscribe
	Matches []string `json:"matches"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	quit chan struct{}
	once sync.Once
	mu   sync.RWMutex
	subs map[string]bool
}

type broadcastMsg struct {
	matchID string
	data    []byte
}

// Hub fans match updates out to subscribed websocket clients. Publishing
// never blocks: updates for a slow client or a full hub are dropped, and the
// client catches up on the next one.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	done       chan struct{}
	mu         sync.RWMutex
	log        logger.Logger
}

// NewHub creates a hub. allowed lists the origins a browser may connect
// from; "*" or an empty list allows any.
func NewHub(allowed []string) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, broadcastSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        logger.Named("live"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowed),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run is the hub loop; it returns when ctx ends, disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				c.stop()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			metrics.UpdateLiveClients(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateLiveClients(n)
			h.log.Debug(ctx, "client connected", logger.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.stop()
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateLiveClients(n)
			h.log.Debug(ctx, "client disconnected", logger.Int("clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.subscribed(msg.matchID) {
					continue
				}
				if !c.push(msg.data) {
					h.log.Warn(ctx, "dropping update for slow client", logger.String("match_id", msg.matchID))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues an update for the clients following matchID.
func (h *Hub) Publish(matchID, kind string, payload any) {
	data, err := json.Marshal(Message{Type: kind, MatchID: matchID, Payload: payload})
	if err != nil {
		h.log.Error(context.Background(), "encode update", logger.String("match_id", matchID), logger.Error(err))
		return
	}
	select {
	case h.broadcast <- broadcastMsg{matchID: matchID, data: data}:
	default:
		h.log.Warn(context.Background(), "hub full, dropping update", logger.String("match_id", matchID))
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetStats reports the connected client count for GET /stats.
func (h *Hub) GetStats(context.Context) map[string]any {
	return map[string]any{"liveClients": h.Clients()}
}

// HandleWS upgrades GET /live. The optional match query parameter, repeated
// or comma separated, picks the initial subscriptions; without it the
// client follows every match.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "upgrade failed", logger.Error(err))
		return
	}
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		quit: make(chan struct{}),
		subs: make(map[string]bool),
	}
	for _, v := range r.URL.Query()["match"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				c.subs[id] = true
			}
		}
	}
	if len(c.subs) == 0 {
		c.subs[allMatches] = true
	}

	c.ack("hello")
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *client) stop() { c.once.Do(func() { close(c.quit) }) }

// push queues data without blocking the caller.
func (c *client) push(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) subscribed(matchID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[allMatches] || c.subs[matchID]
}

func (c *client) subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for id := range c.subs {
		out = append(out, id)
	}
	return out
}

// ack tells the client what it is subscribed to.
func (c *client) ack(kind string) {
	if data, err := json.Marshal(Message{Type: kind, Payload: c.subscriptions()}); err == nil {
		c.push(data)
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn(context.Background(), "unexpected close", logger.Error(err))
			}
			return
		}
		var sub subscribeMsg
		if json.Unmarshal(message, &sub) != nil {
			continue
		}
		c.mu.Lock()
		for _, id := range sub.Matches {
			switch sub.Action {
			case "subscribe":
				c.subs[id] = true
			case "unsubscribe":
				delete(c.subs, id)
			}
		}
		c.mu.Unlock()
		c.ack("subscribed")
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.quit:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
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
