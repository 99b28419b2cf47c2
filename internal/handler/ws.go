// internal/handler/ws.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Configure properly for production
	},
}

// replayLimit bounds how many past events a room retains for late joiners.
const replayLimit = 64

// historyRetention bounds how long a client-less room keeps its replay
// history before eviction reclaims the room entry.
const historyRetention = 5 * time.Minute

// evictInterval is how often the hub sweeps for stale client-less rooms.
const evictInterval = time.Minute

type Client struct {
	Room string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
}

type roomState struct {
	clients   map[*Client]bool
	history   [][]byte
	lastEvent time.Time
}

// Hub fans payment events out to websocket clients grouped by order id.
// A client that connects after its event was emitted receives the room's
// retained history on registration. Client-less rooms are evicted once
// their replay window lapses so resolved orders do not accumulate.
type Hub struct {
	rooms      map[string]*roomState
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	done       chan struct{}
	retention  time.Duration
	mu         sync.RWMutex
	logger     *zap.Logger
}

type roomMessage struct {
	room    string
	payload []byte
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]*roomState),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 64),
		done:       make(chan struct{}),
		retention:  historyRetention,
		logger:     logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case <-ticker.C:
			h.evictStale()

		case client := <-h.register:
			h.mu.Lock()
			room := h.rooms[client.Room]
			if room == nil {
				room = &roomState{clients: make(map[*Client]bool)}
				h.rooms[client.Room] = room
			}
			room.clients[client] = true
			replay := make([][]byte, len(room.history))
			copy(replay, room.history)
			h.mu.Unlock()

			for _, msg := range replay {
				select {
				case client.Send <- msg:
				default:
				}
			}
			h.logger.Info("websocket client connected", zap.String("room", client.Room))

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.Room]; ok {
				if _, ok := room.clients[client]; ok {
					delete(room.clients, client)
					close(client.Send)
					if len(room.clients) == 0 && len(room.history) == 0 {
						delete(h.rooms, client.Room)
					}
					h.logger.Info("websocket client disconnected", zap.String("room", client.Room))
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg.room, msg.payload)
		}
	}
}

// Broadcast records the event in the room's history and delivers it to
// every connected client. Delivery order follows call order; a slow
// client is dropped rather than blocking the hub.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.broadcast <- roomMessage{room: room, payload: payload}
}

func (h *Hub) deliver(room string, payload []byte) {
	h.mu.Lock()
	state := h.rooms[room]
	if state == nil {
		state = &roomState{clients: make(map[*Client]bool)}
		h.rooms[room] = state
	}
	state.history = append(state.history, payload)
	if len(state.history) > replayLimit {
		state.history = state.history[len(state.history)-replayLimit:]
	}
	state.lastEvent = time.Now()
	for client := range state.clients {
		select {
		case client.Send <- payload:
		default:
			close(client.Send)
			delete(state.clients, client)
		}
	}
	h.mu.Unlock()
}

// RoomHistory returns a copy of the retained events for a room.
func (h *Hub) RoomHistory(room string) [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()

	state := h.rooms[room]
	if state == nil {
		return nil
	}
	out := make([][]byte, len(state.history))
	copy(out, state.history)
	return out
}

// evictStale drops client-less rooms whose replay window has lapsed. Rooms
// with a connected client are never evicted regardless of age.
func (h *Hub) evictStale() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-h.retention)
	for name, room := range h.rooms {
		if len(room.clients) == 0 && room.lastEvent.Before(cutoff) {
			delete(h.rooms, name)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, room := range h.rooms {
		for client := range room.clients {
			close(client.Send)
		}
		delete(h.rooms, name)
	}
}

// detach hands the client back to the hub. After shutdown the hub loop no
// longer receives, so the send is raced against the hub's done signal.
func (c *Client) detach() {
	select {
	case c.Hub.unregister <- c:
	case <-c.Hub.done:
	}
}

// ReadPump discards inbound frames; the socket is a one-way event feed.
func (c *Client) ReadPump() {
	defer func() {
		c.detach()
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
	}
}

// WritePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleWebSocket upgrades the connection and subscribes it to the
// order's event room.
func (h *PaymentHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		Room: orderID,
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  h.hub,
	}

	select {
	case client.Hub.register <- client:
	case <-client.Hub.done:
		conn.Close()
		return
	}

	welcome, _ := json.Marshal(map[string]interface{}{
		"type":      "connected",
		"order_id":  orderID,
		"timestamp": time.Now().Unix(),
	})
	select {
	case client.Send <- welcome:
	default:
	}

	go client.WritePump()
	go client.ReadPump()
}
