package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	defaultWriteWait = 10 * time.Second
	sendBufferSize   = 16
)

type sessionResolver interface {
	SessionFromRequest(r *http.Request) (uuid.UUID, bool)
}

// client owns one connection. Only its write loop writes to conn.
type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// Hub pushes chat state to every open tab of a browser session. With a
// Redis client, updates fan out over pub/sub so any server instance can
// reach the tab; without one they are delivered locally. Delivery never
// blocks the publisher: a tab that cannot keep up is disconnected.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	redisClient *redis.Client
	sessions    sessionResolver
	upgrader    websocket.Upgrader
	cancelFuncs map[string]context.CancelFunc
	writeWait   time.Duration
}

func NewHub(redisClient *redis.Client, sessions sessionResolver, allowedOrigin string) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		redisClient: redisClient,
		sessions:    sessions,
		cancelFuncs: make(map[string]context.CancelFunc),
		writeWait:   defaultWriteWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
	}
}

func channelName(sessionID string) string {
	return "chat_updates:" + sessionID
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessions.SessionFromRequest(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	id := sessionID.String()
	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.registerConnection(id, c)

	go h.writeLoop(id, c)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(id, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Hub) writeLoop(sessionID string, c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write failed: session %s: %v", sessionID, err)
			h.unregisterConnection(sessionID, c)
			return
		}
	}
}

func (h *Hub) registerConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[sessionID] = append(h.connections[sessionID], c)

	if h.redisClient != nil && len(h.connections[sessionID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[sessionID] = cancel
		go h.subscribeToPubSub(ctx, sessionID)
	}

	log.Printf("WebSocket connected: session %s (total: %d)", sessionID, len(h.connections[sessionID]))
}

func (h *Hub) unregisterConnection(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.close()

	conns := h.connections[sessionID]
	found := false
	for i, other := range conns {
		if other == c {
			h.connections[sessionID] = append(conns[:i], conns[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return
	}

	if len(h.connections[sessionID]) == 0 {
		delete(h.connections, sessionID)
		if cancel, ok := h.cancelFuncs[sessionID]; ok {
			cancel()
			delete(h.cancelFuncs, sessionID)
		}
	}

	log.Printf("WebSocket disconnected: session %s", sessionID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, sessionID string) {
	pubsub := h.redisClient.Subscribe(ctx, channelName(sessionID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(sessionID, []byte(msg.Payload))
		}
	}
}

// broadcast queues data for every tab of sessionID without waiting on the network.
func (h *Hub) broadcast(sessionID string, data []byte) {
	var slow []*client

	h.mu.RLock()
	for _, c := range h.connections[sessionID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("WebSocket send buffer full, dropping tab: session %s", sessionID)
		h.unregisterConnection(sessionID, c)
	}
}

// Publish sends msg to every tab of sessionID.
func (h *Hub) Publish(ctx context.Context, sessionID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket payload encoding failed: %v", err)
		return
	}

	if h.redisClient == nil {
		h.broadcast(sessionID, data)
		return
	}
	if err := h.redisClient.Publish(ctx, channelName(sessionID), data).Err(); err != nil {
		log.Printf("Redis publish failed for session %s: %v", sessionID, err)
	}
}
