package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"remindash-server/middleware"
	"remindash-server/models"
	"remindash-server/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	servers   map[string]bool
	serversMu sync.RWMutex
}

// Hub fans dashboard events out to connected clients. Each client is
// subscribed to the servers it is a member of at connect time and may
// subscribe to more as the user navigates.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	store      *store.Store
	mu         sync.RWMutex
}

func NewHub(s *store.Store) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		store:      s,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (total: %d)", client.userID, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected: %s (total: %d)", client.userID, count)
		}
	}
}

// BroadcastToServer delivers an event to every client subscribed to the
// server. Clients with a full buffer are dropped rather than blocked on.
func (h *Hub) BroadcastToServer(serverID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] Marshal error for type '%s': %v", msg.Type, err)
		return
	}

	var staleClients []*Client
	h.mu.RLock()
	for client := range h.clients {
		if !client.isSubscribed(serverID) {
			continue
		}
		select {
		case client.send <- data:
		default:
			staleClients = append(staleClients, client)
		}
	}
	h.mu.RUnlock()

	if len(staleClients) > 0 {
		h.mu.Lock()
		for _, client := range staleClients {
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
				log.Printf("[WS] Removed stale client: %s", client.userID)
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// The browser websocket API cannot set headers, so the session token
	// rides in the query string.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	claims, err := middleware.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error for user %s: %v", claims.UserID, err)
		return
	}

	servers, err := h.store.GetServersForUser(claims.UserID)
	if err != nil {
		log.Printf("[WS] Failed to get servers for user %s: %v", claims.UserID, err)
	}
	serverMap := make(map[string]bool)
	for _, sv := range servers {
		serverMap[sv.ID] = true
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		userID:  claims.UserID,
		servers: serverMap,
	}

	go client.writePump()
	go client.readPump()

	h.register <- client
}

func (c *Client) isSubscribed(serverID string) bool {
	c.serversMu.RLock()
	defer c.serversMu.RUnlock()
	return c.servers[serverID]
}

func (c *Client) subscribe(serverID string) {
	// Only members may subscribe; a stranger's subscribe is ignored.
	if _, err := c.hub.store.GetMemberRole(serverID, c.userID); err != nil {
		return
	}
	c.serversMu.Lock()
	c.servers[serverID] = true
	c.serversMu.Unlock()
}

type clientMessage struct {
	Type    string `json:"type"`
	Payload struct {
		ServerID string `json:"serverId"`
	} `json:"payload"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for client %s: %v", c.userID, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "subscribe" && msg.Payload.ServerID != "" {
			c.subscribe(msg.Payload.ServerID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
