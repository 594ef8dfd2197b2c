package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/iedsim/internal/infrastructure/config"
	"github.com/nerrad567/iedsim/internal/infrastructure/logging"
)

// Frame types of the WebSocket protocol.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsSendBufferSize is the number of frames queued per client before new
// frames are dropped for that client.
const wsSendBufferSize = 256

// Used when the websocket config leaves the keepalive timings unset.
const (
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 10 * time.Second
)

// WSMessage is one frame in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// HubStats counts hub traffic.
type HubStats struct {
	Clients   int    `json:"connected_clients"`
	Delivered uint64 `json:"frames_delivered"`
	Dropped   uint64 `json:"frames_dropped"`
}

// Hub tracks connected clients and fans events out to subscribers.
//
// Thread Safety: all methods are safe for concurrent use. Broadcast copies
// the client set under the hub lock and sends outside it, so the hub lock
// and a client lock are never held together.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// WSClient is one upgraded connection.
type WSClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	remote string

	pingEvery time.Duration
	pongWait  time.Duration

	mu            sync.RWMutex
	subscriptions map[string]struct{}
}

// upgrader accepts any origin; cross-origin policy is applied by corsMiddleware.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is done and then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "remote", client.remote, "clients", n)
}

// Unregister removes a client and closes its send queue. Only the call that
// actually removes the client closes the queue, so repeated calls are safe.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if !present {
		return
	}
	close(client.send)
	h.logger.Debug("websocket client disconnected", "remote", client.remote, "clients", n)
}

// Broadcast sends an event of eventType to every client subscribed to
// channel. Slow clients lose the frame rather than block the caller.
func (h *Hub) Broadcast(channel, eventType string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "event_type", eventType, "error", err)
		return
	}

	for _, client := range h.snapshot() {
		if !client.isSubscribed(channel) {
			continue
		}
		if client.trySend(frame) {
			h.delivered.Add(1)
		} else {
			h.dropped.Add(1)
		}
	}
}

// snapshot copies the client set.
func (h *Hub) snapshot() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns client and frame counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients:   h.ClientCount(),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close() //nolint:errcheck // shutting down
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the request and starts the client's pumps.
// Clients then subscribe with
//
//	{"type":"subscribe","id":"1","payload":{"channels":["register.changes"]}}
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newWSClient(s.hub, conn, remoteHost(r.RemoteAddr))
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func newWSClient(hub *Hub, conn *websocket.Conn, remote string) *WSClient {
	c := &WSClient{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		remote:        remote,
		pingEvery:     time.Duration(hub.cfg.PingInterval) * time.Second,
		pongWait:      time.Duration(hub.cfg.PongTimeout) * time.Second,
		subscriptions: make(map[string]struct{}),
	}
	if c.pingEvery <= 0 {
		c.pingEvery = defaultPingInterval
	}
	if c.pongWait <= 0 {
		c.pongWait = defaultPongWait
	}
	return c
}

// readDeadline is how long the peer may stay silent: one ping interval plus
// the pong allowance.
func (c *WSClient) readDeadline() time.Time {
	return time.Now().Add(c.pingEvery + c.pongWait)
}

// readPump handles inbound frames until the connection fails, then
// unregisters the client.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close() //nolint:errcheck // already disconnecting
	}()

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	c.conn.SetReadDeadline(c.readDeadline()) //nolint:errcheck // a failed deadline surfaces on read
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.readDeadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "remote", c.remote, "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts as alive.
		c.conn.SetReadDeadline(c.readDeadline()) //nolint:errcheck // a failed deadline surfaces on read
		c.handleMessage(data)
	}
}

// writePump drains the send queue and pings the peer every ping interval.
// It exits when the queue is closed or a write fails.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // already disconnecting
	}()

	write := func(messageType int, data []byte) error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.pongWait)); err != nil {
			return err
		}
		return c.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case frame, open := <-c.send:
			if !open {
				write(websocket.CloseMessage, nil) //nolint:errcheck // best-effort close frame
				return
			}
			if err := write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches one client frame.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.handleChannels(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// handleChannels adds or removes channels from the subscription set and
// acknowledges with the resulting list.
func (c *WSClient) handleChannels(msg WSMessage) {
	channels, err := decodeChannels(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid "+msg.Type+" payload")
		return
	}

	c.mu.Lock()
	for _, ch := range channels {
		if msg.Type == WSTypeSubscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	active := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		active = append(active, ch)
	}
	c.mu.Unlock()
	sort.Strings(active)

	c.hub.logger.Debug("websocket subscriptions updated",
		"remote", c.remote, "action", msg.Type, "channels", channels)

	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{
		msg.Type + "d": channels,
		"active":       active,
	})
}

// decodeChannels re-decodes a generic payload into WSSubscribePayload.
func decodeChannels(payload any) ([]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, err
	}
	if len(sub.Channels) == 0 {
		return nil, errors.New("no channels")
	}
	return sub.Channels, nil
}

// trySend queues frame without blocking. It reports false when the queue
// is full or already closed by Unregister.
func (c *WSClient) trySend(frame []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	frame, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(frame)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
