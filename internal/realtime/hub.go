package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/anaslahboub/app-microservice/pkg/logger"
	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 64
	authorizeTimeout  = 3 * time.Second
)

// Events written by the hub itself.
const (
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventError        = "error"
	EventPong         = "pong"
)

type controlMessage struct {
	Action       string   `json:"action"`
	Destinations []string `json:"destinations"`
}

// Hub tracks live sessions and their destination subscriptions and fans
// messages out to them. Delivery is best effort: a session whose buffer is
// full is disconnected and catches up from the inbox.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[string]map[string]map[*connection]struct{}
	connections   map[*connection]struct{}
	upgrader      websocket.Upgrader
	authorizer    SubscriptionAuthorizer
	bufferSize    int
	log           *zap.Logger
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithAuthorizer installs the group topic subscription check.
func WithAuthorizer(authorizer SubscriptionAuthorizer) HubOption {
	return func(h *Hub) {
		h.authorizer = authorizer
	}
}

// WithAllowedOrigins permits cross-origin upgrades from the listed origins.
func WithAllowedOrigins(origins []string) HubOption {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, origin := range origins {
			allowed[strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))] = struct{}{}
		}
		fallback := h.upgrader.CheckOrigin
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := strings.ToLower(strings.TrimRight(r.Header.Get("Origin"), "/"))
			if _, ok := allowed[origin]; ok {
				return true
			}
			return fallback(r)
		}
	}
}

// WithBufferSize overrides the per-session outbound buffer.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// NewHub constructs a realtime hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscriptions: make(map[string]map[string]map[*connection]struct{}),
		connections:   make(map[*connection]struct{}),
		bufferSize:    defaultBufferSize,
		log:           logger.WithModule("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Allow same-origin requests and explicit localhost development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Publisher.
func (h *Hub) Name() string {
	return "hub"
}

// Publish implements Publisher by delivering to the local sessions addressed by route.
func (h *Hub) Publish(ctx context.Context, route Route, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if route.IsUser() {
		h.BroadcastToUser(route.Destination, route.UserID, message)
		return nil
	}
	h.BroadcastDestination(route.Destination, message)
	return nil
}

// Serve upgrades the HTTP connection to a WebSocket and registers the session
// for userID with the initial destinations. It blocks until the session ends.
func (h *Hub) Serve(userID string, destinations []string, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newConnection(h, socket, userID)
	h.register(client)

	go client.writeLoop()
	if len(destinations) > 0 {
		h.subscribe(r.Context(), client, destinations)
	}
	client.readLoop(r.Context())
}

// BroadcastToUser delivers a message to all sessions of userID subscribed to destination.
func (h *Hub) BroadcastToUser(destination, userID string, message Message) {
	if destination == "" || userID == "" {
		return
	}

	message.Destination = destination
	var slow []*connection

	h.mu.RLock()
	for client := range h.subscriptions[destination][userID] {
		if !client.enqueue(message) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

// BroadcastDestination delivers a message to every subscriber of destination.
func (h *Hub) BroadcastDestination(destination string, message Message) {
	if destination == "" {
		return
	}

	message.Destination = destination
	var slow []*connection

	h.mu.RLock()
	for _, clients := range h.subscriptions[destination] {
		for client := range clients {
			if !client.enqueue(message) {
				slow = append(slow, client)
			}
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

// ConnectionCount returns the number of live sessions.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SubscriberCount returns how many sessions are subscribed to destination.
func (h *Hub) SubscriberCount(destination string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.subscriptions[destination] {
		total += len(clients)
	}
	return total
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*connection, 0, len(h.connections))
	for client := range h.connections {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.close()
	}
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	h.connections[client] = struct{}{}
	h.mu.Unlock()
	metrics.RealtimeConnections.Inc()
}

func (h *Hub) subscribe(ctx context.Context, client *connection, destinations []string) {
	for _, raw := range uniqueDestinations(destinations) {
		destination, err := h.authorize(ctx, client.userID, raw)
		if err != nil {
			h.log.Debug("subscription rejected",
				zap.String("user_id", client.userID),
				zap.String("destination", raw),
				zap.Error(err))
			client.enqueue(Message{Destination: raw, Event: EventError, Data: err.Error()})
			continue
		}

		h.mu.Lock()
		if _, exists := client.streams[destination]; !exists {
			if h.subscriptions[destination] == nil {
				h.subscriptions[destination] = make(map[string]map[*connection]struct{})
			}
			if h.subscriptions[destination][client.userID] == nil {
				h.subscriptions[destination][client.userID] = make(map[*connection]struct{})
			}
			client.streams[destination] = struct{}{}
			h.subscriptions[destination][client.userID][client] = struct{}{}
		}
		h.mu.Unlock()

		client.enqueue(Message{Destination: destination, Event: EventSubscribed})
	}
}

func (h *Hub) authorize(ctx context.Context, userID, raw string) (string, error) {
	destination, err := ResolveDestination(userID, raw)
	if err != nil {
		return "", err
	}
	if _, isGroup := GroupIDFromDestination(destination); !isGroup || h.authorizer == nil {
		return destination, nil
	}

	ctx, cancel := context.WithTimeout(ctx, authorizeTimeout)
	defer cancel()
	if err := h.authorizer.AuthorizeSubscription(ctx, userID, destination); err != nil {
		return "", errors.Join(ErrForbiddenDestination, err)
	}
	return destination, nil
}

func (h *Hub) unsubscribe(client *connection, destinations []string) {
	for _, raw := range uniqueDestinations(destinations) {
		destination, err := ResolveDestination(client.userID, raw)
		if err != nil {
			continue
		}
		h.mu.Lock()
		h.removeSubscriptionLocked(client, destination)
		h.mu.Unlock()
		client.enqueue(Message{Destination: destination, Event: EventUnsubscribed})
	}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	for destination := range client.streams {
		h.removeSubscriptionLocked(client, destination)
	}
	_, registered := h.connections[client]
	delete(h.connections, client)
	h.mu.Unlock()

	if registered {
		metrics.RealtimeConnections.Dec()
	}
}

func (h *Hub) removeSubscriptionLocked(client *connection, destination string) {
	delete(client.streams, destination)

	clientsByUser, ok := h.subscriptions[destination]
	if !ok {
		return
	}

	userClients := clientsByUser[client.userID]
	delete(userClients, client)
	if len(userClients) == 0 {
		delete(clientsByUser, client.userID)
	}
	if len(clientsByUser) == 0 {
		delete(h.subscriptions, destination)
	}
}

func (h *Hub) dropSlow(clients []*connection) {
	for _, client := range clients {
		h.log.Warn("dropping slow realtime session",
			zap.String("user_id", client.userID),
			zap.String("connection_id", client.id))
		client.close()
	}
}

type connection struct {
	id      string
	hub     *Hub
	socket  *websocket.Conn
	userID  string
	streams map[string]struct{}
	send    chan Message
	done    chan struct{}
	once    sync.Once
}

func newConnection(hub *Hub, socket *websocket.Conn, userID string) *connection {
	return &connection{
		id:      uuid.NewString(),
		hub:     hub,
		socket:  socket,
		userID:  userID,
		streams: make(map[string]struct{}),
		send:    make(chan Message, hub.bufferSize),
		done:    make(chan struct{}),
	}
}

// enqueue reports false when the session buffer is full.
func (c *connection) enqueue(message Message) bool {
	select {
	case <-c.done:
		return true
	default:
	}

	select {
	case c.send <- message:
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *connection) readLoop(ctx context.Context) {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			c.enqueue(Message{Event: EventError, Data: "invalid control frame"})
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "subscribe":
			c.hub.subscribe(ctx, c, ctrl.Destinations)
		case "unsubscribe":
			c.hub.unsubscribe(c, ctrl.Destinations)
		case "ping":
			c.enqueue(Message{Event: EventPong})
		default:
			c.enqueue(Message{Event: EventError, Data: "unsupported action"})
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.done)
		_ = c.socket.Close()
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
