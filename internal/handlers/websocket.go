package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame types sent by the terminal client.
const (
	FrameRequestProfile   = "REQUEST_PROFILE"
	FrameRequestShop      = "REQUEST_SHOP"
	FrameRequestCalendar  = "REQUEST_CALENDAR"
	FrameRequestInventory = "REQUEST_INVENTORY"
	FramePurchase         = "PURCHASE"
	FrameClaimReward      = "CLAIM_REWARD"
	FrameOpenLootbox      = "OPEN_LOOTBOX"
	FramePing             = "PING"
)

// Frame types pushed to the client.
const (
	FrameUpdateProfile   = "UPDATE_PROFILE"
	FrameUpdateShop      = "UPDATE_SHOP"
	FrameUpdateCalendar  = "UPDATE_CALENDAR"
	FrameUpdateInventory = "UPDATE_INVENTORY"
	FramePurchaseResult  = "PURCHASE_RESULT"
	FrameClaimResult     = "CLAIM_RESULT"
	FrameLootboxResult   = "LOOTBOX_RESULT"
	FramePong            = "PONG"
	FrameError           = "ERROR"
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inboundMessage keeps the payload raw until the frame type is known.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	Identity   models.Identity
	PlayerName string
	Conn       *websocket.Conn
	send       chan Message
}

type delivery struct {
	identity models.Identity
	message  Message
}

// WebSocketHub owns the live connections. Every push is addressed to one
// identity; nothing is broadcast. The first connection of an identity starts
// its session and the last one to leave ends it.
type WebSocketHub struct {
	clients    map[models.Identity]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	direct     chan delivery
	done       chan struct{}
	lifecycle  *services.SessionLifecycleTracker
	logger     zerolog.Logger
}

var _ services.Pusher = (*WebSocketHub)(nil)

func NewWebSocketHub(lifecycle *services.SessionLifecycleTracker, logger zerolog.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[models.Identity]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan delivery, 256),
		done:       make(chan struct{}),
		lifecycle:  lifecycle,
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run processes hub events until ctx is cancelled. Sessions still open at
// that point are ended so their uptime is queued.
func (hub *WebSocketHub) Run(ctx context.Context) {
	defer close(hub.done)

	for {
		select {
		case <-ctx.Done():
			for identity := range hub.clients {
				hub.lifecycle.OnDisconnect(identity)
			}
			return

		case client := <-hub.register:
			conns, ok := hub.clients[client.Identity]
			if !ok {
				conns = make(map[*Client]struct{})
				hub.clients[client.Identity] = conns
				hub.lifecycle.OnConnect(ctx, client.Identity, client.PlayerName)
			}
			conns[client] = struct{}{}
			hub.logger.Debug().Str("identity", string(client.Identity)).Int("connections", len(conns)).Msg("client registered")

		case client := <-hub.unregister:
			conns, ok := hub.clients[client.Identity]
			if !ok {
				continue
			}
			delete(conns, client)
			if len(conns) == 0 {
				delete(hub.clients, client.Identity)
				hub.lifecycle.OnDisconnect(client.Identity)
			}
			hub.logger.Debug().Str("identity", string(client.Identity)).Msg("client unregistered")

		case d := <-hub.direct:
			for client := range hub.clients[d.identity] {
				select {
				case client.send <- d.message:
				default:
					hub.logger.Warn().Str("identity", string(d.identity)).Str("type", d.message.Type).Msg("client send buffer full, dropping message")
				}
			}
		}
	}
}

func (hub *WebSocketHub) sendTo(identity models.Identity, msg Message) {
	select {
	case hub.direct <- delivery{identity: identity, message: msg}:
	case <-hub.done:
	}
}

func (hub *WebSocketHub) PushProfile(identity models.Identity, snapshot models.PlayerStateSnapshot) {
	hub.sendTo(identity, Message{Type: FrameUpdateProfile, Data: snapshot})
}

func (hub *WebSocketHub) PushShop(identity models.Identity, shop models.ShopSnapshot) {
	hub.sendTo(identity, Message{Type: FrameUpdateShop, Data: shop})
}

func (hub *WebSocketHub) PushCalendar(identity models.Identity, calendar models.CalendarSnapshot) {
	hub.sendTo(identity, Message{Type: FrameUpdateCalendar, Data: calendar})
}

func (hub *WebSocketHub) PushInventory(identity models.Identity, inventory models.InventorySnapshot) {
	hub.sendTo(identity, Message{Type: FrameUpdateInventory, Data: inventory})
}

func (hub *WebSocketHub) PushPurchaseResult(identity models.Identity, result models.PurchaseResult) {
	hub.sendTo(identity, Message{Type: FramePurchaseResult, Data: result})
}

func (hub *WebSocketHub) PushClaimResult(identity models.Identity, result models.ClaimResult) {
	hub.sendTo(identity, Message{Type: FrameClaimResult, Data: result})
}

func (hub *WebSocketHub) PushLootboxResult(identity models.Identity, result models.LootboxOpenResult) {
	hub.sendTo(identity, Message{Type: FrameLootboxResult, Data: result})
}

type WebSocketHandler struct {
	hub         *WebSocketHub
	coordinator *services.TransactionCoordinator
	limiter     RateLimiter
	limits      RateLimits
	logger      zerolog.Logger
}

func NewWebSocketHandler(hub *WebSocketHub, coordinator *services.TransactionCoordinator, limiter RateLimiter, limits RateLimits, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		coordinator: coordinator,
		limiter:     limiter,
		limits:      limits,
		logger:      logger.With().Str("component", "ws").Logger(),
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	identity := models.Identity(c.GetString("identity"))
	if identity == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade to websocket")
		return
	}

	client := &Client{
		Identity:   identity,
		PlayerName: c.GetString("player_name"),
		Conn:       conn,
		send:       make(chan Message, sendBuffer),
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go h.writePump(client)

	defer func() {
		select {
		case h.hub.unregister <- client:
		case <-h.hub.done:
		}
		close(client.send)
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.Request.Context()
	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("identity", string(identity)).Msg("websocket read failed")
			}
			break
		}

		h.handleMessage(ctx, client, &msg)
	}
}

// writePump is the only writer on the connection.
func (h *WebSocketHandler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteJSON(msg); err != nil {
				h.logger.Debug().Err(err).Str("identity", string(client.Identity)).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, client *Client, msg *inboundMessage) {
	switch msg.Type {
	case FramePing:
		h.reply(client, Message{Type: FramePong, Data: gin.H{"timestamp": time.Now().Unix()}})

	case FrameRequestProfile:
		h.coordinator.RefreshProfile(ctx, client.Identity)

	case FrameRequestShop:
		var req struct {
			Page int `json:"page"`
		}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				h.replyError(client, msg.Type, "invalid payload")
				return
			}
		}
		h.coordinator.RefreshShop(ctx, client.Identity, req.Page)

	case FrameRequestCalendar:
		h.coordinator.RefreshCalendar(ctx, client.Identity)

	case FrameRequestInventory:
		h.coordinator.RefreshInventory(ctx, client.Identity)

	case FramePurchase:
		var req models.PurchaseRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.replyError(client, msg.Type, "invalid payload")
			return
		}
		if err := req.Validate(); err != nil {
			h.replyError(client, msg.Type, err.Error())
			return
		}
		if !h.allow(ctx, client, ActionPurchase) {
			return
		}
		h.coordinator.Purchase(ctx, client.Identity, req.ItemID, req.Period)

	case FrameClaimReward:
		var req models.ClaimRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.replyError(client, msg.Type, "invalid payload")
			return
		}
		if err := req.Validate(); err != nil {
			h.replyError(client, msg.Type, err.Error())
			return
		}
		if !h.allow(ctx, client, ActionClaim) {
			return
		}
		h.coordinator.ClaimReward(ctx, client.Identity, req.RewardID, req.IsPremium)

	case FrameOpenLootbox:
		var req models.OpenLootboxRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.replyError(client, msg.Type, "invalid payload")
			return
		}
		if err := req.Validate(); err != nil {
			h.replyError(client, msg.Type, err.Error())
			return
		}
		if !h.allow(ctx, client, ActionLootbox) {
			return
		}
		h.coordinator.OpenLootbox(ctx, client.Identity, req.UserItemID, req.Suspense)

	default:
		h.replyError(client, msg.Type, "unknown message type")
	}
}

func (h *WebSocketHandler) allow(ctx context.Context, client *Client, action string) bool {
	if checkRateLimit(ctx, h.limiter, h.limits, client.Identity, action) {
		return true
	}
	h.replyError(client, action, "rate limit exceeded")
	return false
}

// reply answers only the connection that sent the frame.
func (h *WebSocketHandler) reply(client *Client, msg Message) {
	select {
	case client.send <- msg:
	default:
		h.logger.Warn().Str("identity", string(client.Identity)).Str("type", msg.Type).Msg("client send buffer full, dropping reply")
	}
}

func (h *WebSocketHandler) replyError(client *Client, frame, message string) {
	h.reply(client, Message{Type: FrameError, Data: gin.H{"frame": frame, "error": message}})
}
