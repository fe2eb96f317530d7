package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/models"
	"poker-leaderboard-backend/internal/services"
)

const (
	MessageLeaderboardUpdate = "LEADERBOARD_UPDATE"
	MessagePing              = "PING"
	MessagePong              = "PONG"

	writeWait = 10 * time.Second
)

var errHubClosed = errors.New("websocket hub closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *Client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// registration carries the snapshot a client must see before any broadcast.
type registration struct {
	client  *Client
	payload []byte
}

// WebSocketHub pushes every rebuilt leaderboard to connected clients.
type WebSocketHub struct {
	leaderboard *services.LeaderboardService
	metrics     *services.Metrics

	clients    map[*Client]bool
	register   chan registration
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

func NewWebSocketHub(leaderboard *services.LeaderboardService, metrics *services.Metrics) *WebSocketHub {
	if metrics == nil {
		metrics = services.NewMetrics(nil)
	}

	hub := &WebSocketHub{
		leaderboard: leaderboard,
		metrics:     metrics,
		clients:     make(map[*Client]bool),
		register:    make(chan registration),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte, 100),
		done:        make(chan struct{}),
	}

	go hub.run()

	return hub
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case reg := <-hub.register:
			// Queued updates predate the snapshot and go to existing
			// clients only.
			hub.flush()
			if err := reg.client.write(reg.payload); err != nil {
				logger.Debug("WebSocket snapshot write failed: %v", err)
				reg.client.conn.Close()
				continue
			}
			hub.clients[reg.client] = true
			hub.metrics.WebSocketClients.Set(float64(len(hub.clients)))

		case client := <-hub.unregister:
			hub.drop(client)

		case payload := <-hub.broadcast:
			hub.deliver(payload)

		case <-hub.done:
			for client := range hub.clients {
				hub.drop(client)
			}
			return
		}
	}
}

func (hub *WebSocketHub) deliver(payload []byte) {
	for client := range hub.clients {
		if err := client.write(payload); err != nil {
			logger.Debug("Dropping websocket client: %v", err)
			hub.drop(client)
		}
	}
}

func (hub *WebSocketHub) flush() {
	for {
		select {
		case payload := <-hub.broadcast:
			hub.deliver(payload)
		default:
			return
		}
	}
}

func (hub *WebSocketHub) drop(client *Client) {
	if _, ok := hub.clients[client]; !ok {
		return
	}
	delete(hub.clients, client)
	client.conn.Close()
	hub.metrics.WebSocketClients.Set(float64(len(hub.clients)))
}

// Close disconnects every client and stops the hub.
func (hub *WebSocketHub) Close() {
	hub.closeOnce.Do(func() { close(hub.done) })
}

// BroadcastLeaderboard implements services.Broadcaster. It never blocks; a
// full queue drops the update.
func (hub *WebSocketHub) BroadcastLeaderboard(entries []models.LeaderboardEntry) {
	payload, err := json.Marshal(Message{Type: MessageLeaderboardUpdate, Data: entries})
	if err != nil {
		logger.Error("Failed to encode leaderboard update: %v", err)
		return
	}

	select {
	case hub.broadcast <- payload:
	case <-hub.done:
	default:
		logger.Warning("Leaderboard update dropped, broadcast queue full")
	}
}

func (hub *WebSocketHub) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warning("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{conn: conn}

	// The snapshot is read and handed to the hub under the rebuild lock, so
	// no newer broadcast can reach the client ahead of it.
	err = hub.leaderboard.WithSnapshot(c.Request.Context(), func(entries []models.LeaderboardEntry) error {
		payload, err := json.Marshal(Message{Type: MessageLeaderboardUpdate, Data: entries})
		if err != nil {
			return err
		}
		select {
		case hub.register <- registration{client: client, payload: payload}:
			return nil
		case <-hub.done:
			return errHubClosed
		}
	})
	if err != nil {
		if !errors.Is(err, errHubClosed) {
			logger.Error("Failed to send leaderboard snapshot: %v", err)
		}
		conn.Close()
		return
	}

	defer func() {
		select {
		case hub.unregister <- client:
		case <-hub.done:
		}
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket error: %v", err)
			}
			return
		}

		if msg.Type == MessagePing {
			hub.send(client, Message{Type: MessagePong, Data: gin.H{"timestamp": time.Now().Unix()}})
		}
	}
}

func (hub *WebSocketHub) send(client *Client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to encode websocket message: %v", err)
		return
	}
	if err := client.write(payload); err != nil {
		logger.Debug("WebSocket write failed: %v", err)
	}
}
