package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/services"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
	cancelTimeout  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
	RoundID  string `json:"round_id,omitempty"`
	Data     any    `json:"data"`
}

type Client struct {
	PlayerID string
	Conn     *websocket.Conn
	send     chan *Message
}

type directMessage struct {
	client *Client
	msg    *Message
}

// WebSocketHub fans post-commit events out to every open connection of a
// player. It implements services.Broadcaster.
type WebSocketHub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	direct     chan directMessage
	done       chan struct{}
	logger     *zap.Logger
}

var _ services.Broadcaster = (*WebSocketHub)(nil)

func NewWebSocketHub(logger *zap.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		direct:     make(chan directMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set until ctx is done.
func (hub *WebSocketHub) Run(ctx context.Context) {
	defer close(hub.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range hub.clients {
				for client := range set {
					close(client.send)
				}
			}
			hub.clients = make(map[string]map[*Client]struct{})
			return

		case client := <-hub.register:
			set, ok := hub.clients[client.PlayerID]
			if !ok {
				set = make(map[*Client]struct{})
				hub.clients[client.PlayerID] = set
			}
			set[client] = struct{}{}
			hub.logger.Debug("client registered", zap.String("player_id", client.PlayerID))

		case client := <-hub.unregister:
			hub.remove(client)

		case message := <-hub.broadcast:
			for client := range hub.clients[message.PlayerID] {
				hub.deliver(client, message)
			}

		case dm := <-hub.direct:
			if _, ok := hub.clients[dm.client.PlayerID][dm.client]; ok {
				hub.deliver(dm.client, dm.msg)
			}
		}
	}
}

func (hub *WebSocketHub) deliver(client *Client, message *Message) {
	select {
	case client.send <- message:
	default:
		hub.logger.Warn("dropping slow websocket client", zap.String("player_id", client.PlayerID))
		hub.remove(client)
	}
}

func (hub *WebSocketHub) remove(client *Client) {
	set, ok := hub.clients[client.PlayerID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(hub.clients, client.PlayerID)
	}
	hub.logger.Debug("client unregistered", zap.String("player_id", client.PlayerID))
}

func (hub *WebSocketHub) join(client *Client) bool {
	select {
	case hub.register <- client:
		return true
	case <-hub.done:
		return false
	}
}

func (hub *WebSocketHub) leave(client *Client) {
	select {
	case hub.unregister <- client:
	case <-hub.done:
	}
}

func (hub *WebSocketHub) publish(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
		hub.logger.Warn("websocket broadcast queue full", zap.String("type", msg.Type))
	}
}

// reply queues msg for one connection only.
func (hub *WebSocketHub) reply(client *Client, msg *Message) {
	select {
	case hub.direct <- directMessage{client: client, msg: msg}:
	default:
		hub.logger.Warn("websocket reply queue full", zap.String("type", msg.Type))
	}
}

func (hub *WebSocketHub) NotifyBalance(playerID string, balance int64) {
	hub.publish(&Message{
		Type:     "BALANCE_UPDATE",
		PlayerID: playerID,
		Data: gin.H{
			"balance":   balance,
			"timestamp": time.Now().Unix(),
		},
	})
}

func (hub *WebSocketHub) NotifyRound(playerID string, event services.RoundEvent) {
	hub.publish(&Message{
		Type:     "ROUND_UPDATE",
		PlayerID: playerID,
		RoundID:  event.RoundID,
		Data:     event,
	})
}

type WebSocketHandler struct {
	hub        *WebSocketHub
	gameEngine *services.GameEngine
	ledger     *services.Ledger
	logger     *zap.Logger
}

func NewWebSocketHandler(hub *WebSocketHub, gameEngine *services.GameEngine, ledger *services.Ledger, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		gameEngine: gameEngine,
		ledger:     ledger,
		logger:     logger,
	}
}

// HandleWebSocket opens a session for the player. With ?round_id= the session
// watches that active round, and losing the connection cancels it.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	playerID := middleware.PlayerID(c)

	watched := c.Query("round_id")
	if watched != "" {
		if _, err := h.gameEngine.GetRound(c.Request.Context(), watched, playerID); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := &Client{
		PlayerID: playerID,
		Conn:     conn,
		send:     make(chan *Message, sendBufferSize),
	}
	if !h.hub.join(client) {
		conn.Close()
		return
	}

	done := make(chan struct{})
	go h.writePump(client, done)

	h.sendBalance(client)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", zap.String("player_id", playerID), zap.Error(err))
			}
			break
		}
		watched = h.handleMessage(client, &msg, watched)
	}

	h.hub.leave(client)
	<-done
	conn.Close()

	if watched != "" {
		h.cancelWatched(playerID, watched)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message, watched string) string {
	switch msg.Type {
	case "PING":
		h.sendDirect(client, &Message{
			Type: "PONG",
			Data: gin.H{
				"timestamp": time.Now().Unix(),
			},
		})
	case "WATCH_ROUND":
		if _, err := h.gameEngine.GetRound(context.Background(), msg.RoundID, client.PlayerID); err != nil {
			h.sendDirect(client, &Message{Type: "ERROR", RoundID: msg.RoundID, Data: gin.H{"code": apperr.CodeOf(err)}})
			return watched
		}
		return msg.RoundID
	case "UNWATCH_ROUND":
		return ""
	}
	return watched
}

// cancelWatched refunds a round the player walked away from. Rounds already
// settled by then are left alone.
func (h *WebSocketHandler) cancelWatched(playerID, roundID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()

	owner, active := h.gameEngine.ActiveRoundOwner(ctx, roundID)
	if !active || owner != playerID {
		return
	}
	_, err := h.gameEngine.CancelRound(ctx, roundID, playerID, "disconnect")
	if err != nil && !errors.Is(err, apperr.ErrRoundAlreadyResolved) {
		h.logger.Error("failed to cancel round on disconnect",
			zap.String("player_id", playerID),
			zap.String("round_id", roundID),
			zap.Error(err))
	}
}

func (h *WebSocketHandler) sendBalance(client *Client) {
	balance, err := h.ledger.Balance(context.Background(), client.PlayerID)
	if err != nil {
		h.logger.Debug("no balance for websocket client", zap.String("player_id", client.PlayerID), zap.Error(err))
		return
	}
	h.sendDirect(client, &Message{
		Type:     "BALANCE_UPDATE",
		PlayerID: client.PlayerID,
		Data: gin.H{
			"balance":   balance,
			"timestamp": time.Now().Unix(),
		},
	})
}

// sendDirect answers the connection that asked. Only the hub writes to send
// channels.
func (h *WebSocketHandler) sendDirect(client *Client, msg *Message) {
	msg.PlayerID = client.PlayerID
	h.hub.reply(client, msg)
}

func (h *WebSocketHandler) writePump(client *Client, done chan<- struct{}) {
	defer close(done)
	for msg := range client.send {
		client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteJSON(msg); err != nil {
			h.logger.Debug("websocket write failed", zap.String("player_id", client.PlayerID), zap.Error(err))
			// Keep draining so the hub never blocks on this client.
			for range client.send {
			}
			return
		}
	}
}
