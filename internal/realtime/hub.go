package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const clientBuffer = 32

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the storefront origin; auth happens on
	// the HTTP layer before the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// message is the wire format for outbound events.
type message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// joinRequest is what a client sends to enter a room.
type joinRequest struct {
	Action string `json:"action"` // "join"
	Room   string `json:"room"`
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
	mu    sync.Mutex
}

func (c *client) inRoom(room string) bool {
	if room == RoomAll {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[room]
}

func (c *client) join(room string) {
	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

// Hub fans events out to connected websocket clients. It lives outside the
// transaction boundary: Publish never blocks and never reports failure to
// the caller; a client that cannot keep up is disconnected.
type Hub struct {
	log     *zap.Logger
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

// Publish sends the event to every client subscribed to room. Slow clients
// are dropped rather than awaited; marshalling failures are logged and
// swallowed.
func (h *Hub) Publish(room, event string, payload any) {
	data, err := json.Marshal(message{Event: event, Data: payload})
	if err != nil {
		h.log.Error("broadcast marshal failed", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.inRoom(room) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn("dropping slow websocket client", zap.String("event", event))
			go h.remove(c)
		}
	}
}

// ServeWS upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer), rooms: make(map[string]bool)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req joinRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		if req.Action == "join" && (req.Room == RoomCashier || req.Room == RoomSeller) {
			c.join(req.Room)
		}
	}
}

func (h *Hub) writePump(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}
