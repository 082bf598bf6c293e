package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 << 10
	sendBuffer     = 16
)

// Event is the wire shape delivered to WebSocket subscribers.
type Event struct {
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// clientMessage is an inbound subscribe/unsubscribe request.
type clientMessage struct {
	Action string   `json:"action"` // subscribe | unsubscribe
	Topics []string `json:"topics"`
}

type client struct {
	id   string
	send chan []byte
	conn *websocket.Conn
}

// Hub fans booking events out to WebSocket subscribers by topic. It
// implements Publisher, so it can be wired into the scheduling service
// directly or combined with RedisPublisher via Fanout. A slow client's
// buffer filling up drops events for that client rather than blocking
// the publisher.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*client]struct{}
	clients map[*client][]string

	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		topics:  make(map[string]map[*client]struct{}),
		clients: make(map[*client][]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The UI is served from a different origin in dev.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.With().Str("component", "notify_hub").Logger(),
	}
}

// Publish implements Publisher. It never returns an error: subscribers
// that cannot keep up miss events by design.
func (h *Hub) Publish(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg, err := json.Marshal(Event{
		Topic:     topic,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.topics[topic] {
		select {
		case c.send <- msg:
		default:
			h.log.Warn().Str("client", c.id).Str("topic", topic).Msg("subscriber buffer full, dropping event")
		}
	}
	return nil
}

// ServeHTTP upgrades the connection and runs the read/write pumps. The
// client subscribes to topics by sending {"action":"subscribe","topics":[...]}.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		send: make(chan []byte, sendBuffer),
		conn: conn,
	}

	h.mu.Lock()
	h.clients[c] = nil
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.log.Debug().Str("client", c.id).Err(err).Msg("ignoring malformed client message")
			continue
		}

		switch msg.Action {
		case "subscribe":
			h.subscribe(c, msg.Topics)
		case "unsubscribe":
			h.unsubscribe(c, msg.Topics)
		}
	}
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
}

func (h *Hub) subscribe(c *client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	for _, t := range topics {
		if h.topics[t] == nil {
			h.topics[t] = make(map[*client]struct{})
		}
		h.topics[t][c] = struct{}{}
	}
	h.clients[c] = append(h.clients[c], topics...)
}

func (h *Hub) unsubscribe(c *client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, t := range topics {
		if subs, ok := h.topics[t]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.topics, t)
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		for _, t := range h.clients[c] {
			if subs, ok := h.topics[t]; ok {
				delete(subs, c)
				if len(subs) == 0 {
					delete(h.topics, t)
				}
			}
		}
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	_ = c.conn.Close()
}

// SubscriberCount reports how many clients are subscribed to a topic,
// exposed for the readiness endpoint and tests.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
