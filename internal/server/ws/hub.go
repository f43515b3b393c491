// Package ws bridges the Redis signal bus to WebSocket clients so front ends
// can follow bet lifecycles live.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

const (
	writeTimeout = 10 * time.Second

	// A connection with no pong inside this window is considered dead.
	pongTimeout  = 60 * time.Second
	pingInterval = (pongTimeout * 9) / 10

	// Inbound frames only carry subscription changes, so they stay tiny.
	maxInboundBytes = 4096

	clientQueueSize = 256
	fanoutQueueSize = 256
)

// busChannels is everything the hub mirrors from Redis. New connections
// start subscribed to all of them and can narrow the set afterwards.
var busChannels = []string{
	domain.ChannelBets,
	domain.ChannelStakes,
	domain.ChannelClaims,
	"ch:bet:*",
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin filtering happens in the CORS layer; the upgrade accepts all.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope pairs a payload with the bus channel it arrived on so the hub
// can route it only to clients that want that channel.
type envelope struct {
	channel string
	payload []byte
}

// controlFrame is the JSON message clients send to change subscriptions.
type controlFrame struct {
	Action   string   `json:"action"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// Config carries runtime metadata included in the greeting sent to each
// client on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// Hub fans bus messages out to every connected WebSocket client.
type Hub struct {
	bus    domain.SignalBus
	logger *slog.Logger

	join   chan *client
	leave  chan *client
	fanout chan envelope

	mu      sync.RWMutex
	clients map[*client]struct{}

	mode      string
	startedAt time.Time
}

// NewHub creates a Hub over the given signal bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := cfg.Mode
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return &Hub{
		bus:       bus,
		logger:    logger,
		join:      make(chan *client),
		leave:     make(chan *client),
		fanout:    make(chan envelope, fanoutQueueSize),
		clients:   make(map[*client]struct{}),
		mode:      mode,
		startedAt: startedAt,
	}
}

// Run drives the hub until ctx is cancelled. Call it in its own goroutine.
func (h *Hub) Run(ctx context.Context) error {
	for _, ch := range busChannels {
		go h.pump(ctx, ch)
	}

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return ctx.Err()
		case c := <-h.join:
			h.add(c)
		case c := <-h.leave:
			h.remove(c)
		case env := <-h.fanout:
			h.deliver(env)
		}
	}
}

// pump mirrors one bus channel into the fanout queue.
func (h *Hub) pump(ctx context.Context, channel string) {
	msgs, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("ws: subscribed", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: bus subscription closed", slog.String("channel", channel))
				return
			}
			h.fanout <- envelope{channel: channel, payload: payload}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client connected", slog.Int("total_clients", n))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.out)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.out)
		delete(h.clients, c)
	}
}

// deliver routes one envelope to every interested client. A client whose
// queue is full loses the message rather than blocking the loop.
func (h *Hub) deliver(env envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(env.channel) {
			continue
		}
		select {
		case c.out <- env.payload:
		default:
			h.logger.Warn("ws: dropping message for slow client")
		}
	}
}

// HandleWS upgrades the request and hands the connection to the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		out:  make(chan []byte, clientQueueSize),
		subs: make(map[string]bool, len(busChannels)),
	}
	for _, ch := range busChannels {
		c.subs[ch] = true
	}

	h.join <- c
	c.greet()

	go c.writeLoop()
	go c.readLoop()
}

// client is one WebSocket connection and its subscription set.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte

	mu   sync.RWMutex
	subs map[string]bool
}

// greet pushes a status envelope so clients can mark the connection
// healthy before any bet events flow.
func (c *client) greet() {
	uptime := int64(time.Since(c.hub.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	msg, err := json.Marshal(map[string]any{
		"type": "service_status",
		"payload": map[string]any{
			"mode":           c.hub.mode,
			"connected":      true,
			"uptime_seconds": uptime,
		},
	})
	if err != nil {
		return
	}
	select {
	case c.out <- msg:
	default:
	}
}

// wants reports whether the client is subscribed to channel, honouring
// trailing-star patterns like "ch:bet:*".
func (c *client) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subs[channel] {
		return true
	}
	for sub := range c.subs {
		if strings.HasSuffix(sub, "*") && strings.HasPrefix(channel, sub[:len(sub)-1]) {
			return true
		}
	}
	return false
}

func (c *client) applyControl(frame controlFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch frame.Action {
	case "subscribe":
		for _, ch := range frame.Channels {
			c.subs[ch] = true
		}
	case "unsubscribe":
		for _, ch := range frame.Channels {
			delete(c.subs, ch)
		}
	}
}

// readLoop consumes inbound frames, which only ever carry subscription
// changes, and enforces the pong deadline.
func (c *client) readLoop() {
	defer func() {
		c.hub.leave <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var frame controlFrame
		if err := json.Unmarshal(msg, &frame); err == nil && frame.Action != "" {
			c.applyControl(frame)
		}
	}
}

// writeLoop drains the outbound queue and keeps the connection alive with
// pings.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
