package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"monsweeper-backend/internal/logger"
	"monsweeper-backend/internal/middleware"
	"monsweeper-backend/internal/models"
	"monsweeper-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes game events and balance changes to the owning
// player. It implements services.Broadcaster.
type WebSocketHandler struct {
	store services.Store
	hub   *WebSocketHub
}

type WebSocketHub struct {
	clients    map[int64]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn
	send   chan *Message
}

type Message struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id,omitempty"`
	GameID string `json:"game_id,omitempty"`
	Data   any    `json:"data"`
}

const (
	MessagePing          = "PING"
	MessagePong          = "PONG"
	MessageBalanceUpdate = "BALANCE_UPDATE"
	MessageGameEvent     = "GAME_EVENT"
)

var _ services.Broadcaster = (*WebSocketHandler)(nil)

func NewWebSocketHandler(store services.Store) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[int64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
	}

	go hub.run()

	return &WebSocketHandler{
		store: store,
		hub:   hub,
	}
}

// Close stops the hub and drops every connection.
func (h *WebSocketHandler) Close() {
	close(h.hub.done)
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan *Message, sendBufferSize),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}
	go client.writePump()

	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		conn.Close()
	}()

	h.sendBalance(c.Request.Context(), userID)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read failed", "user_id", userID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case MessagePing:
		h.send(&Message{
			Type:   MessagePong,
			UserID: client.UserID,
			Data:   gin.H{"timestamp": time.Now().Unix()},
		})
	default:
		logger.Debug("ignoring websocket message", "user_id", client.UserID, "type", msg.Type)
	}
}

func (h *WebSocketHandler) sendBalance(ctx context.Context, userID int64) {
	wallet, err := h.store.GetWallet(ctx, userID)
	if err != nil {
		logger.Warn("failed to load wallet for websocket", "user_id", userID, "error", err)
		return
	}
	h.BroadcastBalance(userID, wallet)
}

func (h *WebSocketHandler) BroadcastGameEvent(event models.GameEvent) {
	h.send(&Message{
		Type:   MessageGameEvent,
		UserID: event.UserID,
		GameID: event.GameID,
		Data:   event,
	})
}

func (h *WebSocketHandler) BroadcastBalance(userID int64, wallet *models.Wallet) {
	h.send(&Message{
		Type:   MessageBalanceUpdate,
		UserID: userID,
		Data:   wallet.Response(),
	})
}

// send never blocks the caller; the engine calls it while holding a game lock.
func (h *WebSocketHandler) send(msg *Message) {
	select {
	case h.hub.broadcast <- msg:
	default:
		logger.Warn("websocket broadcast queue full, dropping message", "type", msg.Type, "user_id", msg.UserID)
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			if old, ok := hub.clients[client.UserID]; ok {
				close(old.send)
			}
			hub.clients[client.UserID] = client
			logger.Debug("websocket client registered", "user_id", client.UserID)

		case client := <-hub.unregister:
			if cur, ok := hub.clients[client.UserID]; ok && cur == client {
				delete(hub.clients, client.UserID)
				close(client.send)
				logger.Debug("websocket client unregistered", "user_id", client.UserID)
			}

		case message := <-hub.broadcast:
			hub.deliver(message)

		case <-hub.done:
			for id, client := range hub.clients {
				close(client.send)
				delete(hub.clients, id)
			}
			return
		}
	}
}

// deliver routes a message to its owner, or to everyone when UserID is zero.
func (hub *WebSocketHub) deliver(message *Message) {
	if message.UserID != 0 {
		if client, ok := hub.clients[message.UserID]; ok {
			hub.enqueue(client, message)
		}
		return
	}
	for _, client := range hub.clients {
		hub.enqueue(client, message)
	}
}

func (hub *WebSocketHub) enqueue(client *Client, message *Message) {
	select {
	case client.send <- message:
	default:
		logger.Warn("websocket client too slow, dropping message", "user_id", client.UserID, "type", message.Type)
	}
}

func (c *Client) writePump() {
	for msg := range c.send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteJSON(msg); err != nil {
			logger.Debug("websocket write failed", "user_id", c.UserID, "error", err)
			c.Conn.Close()
			for range c.send {
			}
			return
		}
	}
	c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.Conn.Close()
}
