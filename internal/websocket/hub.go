package websocket

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub pushes new comments to everyone watching a post. Comment
// handlers publish on redis channel post_comments:<postID>; the hub
// keeps one subscription per post while at least one socket is
// attached to it.
type Hub struct {
	mu          sync.RWMutex
	connections map[uuid.UUID][]*websocket.Conn
	redisClient *redis.Client
	cancelFuncs map[uuid.UUID]context.CancelFunc
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		connections: make(map[uuid.UUID][]*websocket.Conn),
		redisClient: redisClient,
		cancelFuncs: make(map[uuid.UUID]context.CancelFunc),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(r.URL.Query().Get("post_id"))
	if err != nil {
		http.Error(w, "post_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(postID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(postID, conn)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

func (h *Hub) registerConnection(postID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[postID] = append(h.connections[postID], conn)

	// Start pub/sub subscription if this is the first watcher of the post
	if len(h.connections[postID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[postID] = cancel
		go h.subscribeToPubSub(ctx, postID)
	}

	log.Printf("WebSocket connected: post %s (watchers: %d)", postID, len(h.connections[postID]))
}

func (h *Hub) unregisterConnection(postID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[postID]
	for i, c := range conns {
		if c == conn {
			h.connections[postID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more watchers, cancel pub/sub
	if len(h.connections[postID]) == 0 {
		delete(h.connections, postID)
		if cancel, ok := h.cancelFuncs[postID]; ok {
			cancel()
			delete(h.cancelFuncs, postID)
		}
	}
}

func (h *Hub) subscribeToPubSub(ctx context.Context, postID uuid.UUID) {
	pubsub := h.redisClient.Subscribe(ctx, fmt.Sprintf("post_comments:%s", postID))
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
			h.broadcast(postID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(postID uuid.UUID, payload []byte) {
	h.mu.RLock()
	conns := append([]*websocket.Conn(nil), h.connections[postID]...)
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("WebSocket write failed for post %s: %v", postID, err)
		}
	}
}
