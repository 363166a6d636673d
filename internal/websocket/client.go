package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/arcadehub/arcade/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Budget for catalog lookups while handling a subscribe
	lookupTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// GameCatalog resolves subscription targets. Subscriptions to slugs the
// catalog does not know (or knows as inactive) are rejected.
type GameCatalog interface {
	BySlug(ctx context.Context, slug string) (*domain.Game, error)
}

// Identity is who a connection belongs to, resolved from the token presented
// at upgrade time. Guests carry a display name only.
type Identity struct {
	UserName string
	UserID   *int64
}

// Client represents a WebSocket client connection. The games set tracks the
// slugs this client follows and is touched only from readPump.
type Client struct {
	id       string
	identity Identity
	hub      *Hub
	conn     *websocket.Conn
	catalog  GameCatalog
	send     chan []byte
	games    map[string]bool
	logger   *slog.Logger
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type     string `json:"type"`
	GameSlug string `json:"game_slug,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, catalog GameCatalog, identity Identity, logger *slog.Logger) *Client {
	if identity.UserName == "" {
		identity.UserName = "guest"
	}
	return &Client{
		id:       uuid.New().String(),
		identity: identity,
		hub:      hub,
		conn:     conn,
		catalog:  catalog,
		send:     make(chan []byte, 256),
		games:    make(map[string]bool),
		logger:   logger,
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err, "user", c.identity.UserName)
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			c.logger.Warn("invalid message format", "error", err, "client_id", c.id)
			c.sendError("invalid message format")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// handleMessage processes incoming client messages
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg.GameSlug)

	case MessageTypeUnsubscribe:
		if msg.GameSlug == "" {
			c.sendError("game_slug required for unsubscribe")
			return
		}
		delete(c.games, msg.GameSlug)
		c.hub.Unsubscribe(c, msg.GameSlug)
		c.sendAck("unsubscribed", msg.GameSlug)

	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})

	default:
		c.logger.Debug("unknown message type", "type", msg.Type, "client_id", c.id)
	}
}

// handleSubscribe validates the slug against the catalog before following it.
// Resubscribing to a slug the client already follows just re-acks.
func (c *Client) handleSubscribe(slug string) {
	if slug == "" {
		c.sendError("game_slug required for subscribe")
		return
	}

	if c.games[slug] {
		c.sendAck("subscribed", slug)
		return
	}

	if c.catalog != nil {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		game, err := c.catalog.BySlug(ctx, slug)
		cancel()
		if err != nil || !game.IsActive {
			c.logger.Debug("subscribe rejected", "game", slug, "user", c.identity.UserName)
			c.sendError(fmt.Sprintf("unknown game: %s", slug))
			return
		}
	}

	c.games[slug] = true
	c.hub.Subscribe(c, slug)
	c.sendAck("subscribed", slug)
}

// writePump pumps messages from the hub to the WebSocket connection
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
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// reply queues a message for this client only. Best-effort: a full buffer
// drops the reply rather than blocking readPump.
func (c *Client) reply(msg Message) {
	msg.Timestamp = time.Now()
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(errMsg string) {
	c.reply(Message{
		Type: MessageTypeError,
		Data: map[string]string{"error": errMsg},
	})
}

// sendAck acknowledges a subscription change, echoing who asked
func (c *Client) sendAck(action, gameSlug string) {
	c.reply(Message{
		Type:     action,
		GameSlug: gameSlug,
		Data:     map[string]string{"status": "ok", "user": c.identity.UserName},
	})
}

// sendWelcome tells the client who the server thinks it is
func (c *Client) sendWelcome() {
	data := map[string]any{"client_id": c.id, "user": c.identity.UserName}
	if c.identity.UserID != nil {
		data["user_id"] = *c.identity.UserID
	}
	c.reply(Message{Type: MessageTypeConnected, Data: data})
}

// ServeWs handles WebSocket requests from peers
func ServeWs(hub *Hub, catalog GameCatalog, logger *slog.Logger, w http.ResponseWriter, r *http.Request, identity Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, catalog, identity, logger)
	hub.Register(client)
	client.sendWelcome()

	// Start client goroutines
	go client.writePump()
	go client.readPump()

	logger.Debug("new websocket connection", "client_id", client.id, "user", client.identity.UserName)
}
