package player

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"muselib/logger"
	"muselib/model"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// nowPlayingChannel is the redis pub/sub channel now-playing changes are
// published to, so other instances and non-websocket consumers can follow
// along.
const nowPlayingChannel = "muselib:nowplaying"

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// Notifier is the only surface through which core components touch the
// process-wide "now playing" state.
type Notifier interface {
	SetNowPlaying(track *model.Track)
	Clear()
}

// Event is the wire format for now-playing updates.
type Event struct {
	Type      string       `json:"type"` // "now_playing" or "cleared"
	Track     *model.Track `json:"track,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// client owns all writes to one websocket connection. Events are queued
// on send and drained by a single writePump goroutine, so the connection
// never sees concurrent writers.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// writePump drains the send queue onto the connection until the queue is
// closed or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub implements Notifier by broadcasting events to connected websocket
// clients and publishing them to redis. It also remembers the current
// track so late-joining clients get an immediate snapshot.
type Hub struct {
	redis *redis.Client // may be nil; the hub then broadcasts locally only

	mu      sync.Mutex
	clients map[*websocket.Conn]*client
	current *model.Track
}

// NewHub creates a hub. rdb may be nil when redis is not configured.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		redis:   rdb,
		clients: make(map[*websocket.Conn]*client),
	}
}

// SetNowPlaying records the current track and fans the event out.
func (h *Hub) SetNowPlaying(track *model.Track) {
	h.mu.Lock()
	h.current = track
	h.mu.Unlock()

	h.publish(Event{
		Type:      "now_playing",
		Track:     track,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Clear resets the now-playing state.
func (h *Hub) Clear() {
	h.mu.Lock()
	h.current = nil
	h.mu.Unlock()

	h.publish(Event{
		Type:      "cleared",
		Timestamp: time.Now().UnixMilli(),
	})
}

// Current returns the track most recently set, or nil.
func (h *Hub) Current() *model.Track {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Register adds a websocket client, starts its write pump and queues the
// current snapshot for it.
func (h *Hub) Register(conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = c

	if h.current == nil {
		return
	}
	snapshot := Event{
		Type:      "now_playing",
		Track:     h.current,
		Timestamp: time.Now().UnixMilli(),
	}
	if data, err := json.Marshal(snapshot); err == nil {
		c.enqueue(data)
	}
}

// Unregister removes a websocket client and shuts its write pump down.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(c.send)
	}
}

// enqueue queues data for the write pump, dropping it when the client is
// too slow to drain its buffer. Callers must hold h.mu so the queue
// cannot be closed mid-send.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal now-playing event", logger.ErrorField(err))
		return
	}

	h.mu.Lock()
	for _, c := range h.clients {
		c.enqueue(data)
	}
	h.mu.Unlock()

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := h.redis.Publish(ctx, nowPlayingChannel, data).Err(); err != nil {
			logger.Warn("Failed to publish now-playing event to redis", logger.ErrorField(err))
		}
	}
}
