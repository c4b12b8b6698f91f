package broadcaster

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientAction is the inbound client->server message shape.
type clientAction struct {
	Action     string   `json:"action"`
	ChannelIDs []string `json:"channel_ids"`
}

// Client is a single WebSocket connection with its subscribed-channel set.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan Event

	mu       sync.Mutex
	channels map[string]struct{}
}

func (c *Client) subscribe(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.channels[id] = struct{}{}
	}
}

func (c *Client) unsubscribe(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.channels, id)
	}
}

func (c *Client) wants(event Event) bool {
	if event.ChannelGUID == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.channels[event.ChannelGUID]
	return ok
}

// Hub is the process-wide WebSocket fan-out singleton. Fan-out is
// best-effort: a slow or dead client's buffered channel fills and that
// client's event is dropped rather than blocking the others.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Upgrade promotes an HTTP request to a WebSocket connection and runs the
// client's read/write pumps until it disconnects. Blocks until then; call it
// in its own goroutine per request.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		id:       uuid.NewString(),
		conn:     conn,
		send:     make(chan Event, sendBuffer),
		channels: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client.id)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	go client.writePump()
	client.readPump()
	return nil
}

// Broadcast fans event out to every client subscribed to its channel (or
// every client, for channel-less events). Never blocks on a slow client.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- event:
		default:
			// client's buffer is full; drop rather than stall the hub.
		}
	}
}

// ClientCount reports the number of connected clients, mostly for /healthz.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var action clientAction
		if err := json.Unmarshal(raw, &action); err != nil {
			c.send <- Event{Type: "error", Data: map[string]string{"message": "invalid message"}}
			continue
		}

		switch action.Action {
		case "subscribe":
			c.subscribe(action.ChannelIDs)
		case "unsubscribe":
			c.unsubscribe(action.ChannelIDs)
		case "ping":
			c.send <- Event{Type: "pong"}
		default:
			c.send <- Event{Type: "error", Data: map[string]string{"message": "unknown action"}}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
