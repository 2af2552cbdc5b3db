package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"reportexport/internal/config"
	"reportexport/internal/exporter"
	"reportexport/internal/infrastructure"
)

// Message types
const (
	TypeConnection   = "connection"
	TypeNotification = "export:notification"
	TypeExportStatus = "export:status"
)

// Message is the envelope of every frame the hub sends.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Options tunes connection keepalive and buffering.
type Options struct {
	PingPeriod      time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	SendBuffer      int
	BroadcastBuffer int
	ReadBufferSize  int
	WriteBufferSize int
}

// DefaultOptions returns keepalive settings suitable for browsers.
func DefaultOptions() Options {
	return Options{
		PingPeriod:      config.WebSocketPingPeriod,
		PongWait:        config.WebSocketPongWait,
		WriteWait:       config.WebSocketWriteWait,
		MaxMessageSize:  512,
		SendBuffer:      64,
		BroadcastBuffer: 256,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// OptionsFrom maps the websocket section of the application config, keeping
// defaults for unset values.
func OptionsFrom(cfg config.WebSocketConfig) Options {
	o := DefaultOptions()
	if cfg.PingPeriod > 0 {
		o.PingPeriod = cfg.PingPeriod
	}
	if cfg.PongWait > 0 {
		o.PongWait = cfg.PongWait
	}
	if cfg.WriteWait > 0 {
		o.WriteWait = cfg.WriteWait
	}
	if cfg.MaxMessageSize > 0 {
		o.MaxMessageSize = cfg.MaxMessageSize
	}
	if cfg.SendBuffer > 0 {
		o.SendBuffer = cfg.SendBuffer
	}
	if cfg.ReadBufferSize > 0 {
		o.ReadBufferSize = cfg.ReadBufferSize
	}
	if cfg.WriteBufferSize > 0 {
		o.WriteBufferSize = cfg.WriteBufferSize
	}
	// ping must arrive before the peer's read deadline
	if o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	return o
}

// outbound is a serialized message and its audience. An empty owner
// addresses every client.
type outbound struct {
	owner string
	data  []byte
}

// Stats is a snapshot of hub counters.
type Stats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Hub maintains the set of active clients and fans messages out to them.
// Only the Run goroutine mutates the client set.
type Hub struct {
	opts   Options
	logger *slog.Logger

	clients    map[*Client]struct{}
	mu         sync.RWMutex
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64

	now func() time.Time
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub(opts Options, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = DefaultOptions().BroadcastBuffer
	}
	return &Hub{
		opts:       opts,
		logger:     logger.With(slog.String("component", "websocket.hub")),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, opts.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Run delivers messages until ctx is cancelled or Stop is called. All client
// connections are closed on return.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			h.logger.Info("hub shutting down")
			return nil

		case <-h.done:
			h.logger.Info("hub shutting down")
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)

			h.logger.InfoContext(client.context(), "client registered",
				slog.String("client_id", client.id),
				slog.String("owner", client.owner),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count),
			)

			h.greet(client)

		case client := <-h.unregister:
			h.remove(client, "client unregistered")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) greet(client *Client) {
	data, err := h.encode(client.context(), TypeConnection, map[string]string{
		"status":    "connected",
		"client_id": client.id,
		"owner":     client.owner,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(client.context(), "client buffer full before greeting",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if msg.owner == "" || client.owner == msg.owner {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- msg.data:
			h.messagesSent.Add(1)
		default:
			// a client that cannot keep up is disconnected
			h.messagesDropped.Add(1)
			h.remove(client, "client send buffer full, disconnecting")
		}
	}

	h.logger.Debug("message delivered",
		slog.String("owner", msg.owner),
		slog.Int("recipients", len(targets)),
		slog.Int("size", len(msg.data)),
	)
}

func (h *Hub) remove(client *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.InfoContext(client.context(), reason,
			slog.String("client_id", client.id),
			slog.Int("total_clients", count),
			slog.Duration("connection_duration", h.now().Sub(client.connectedAt)),
		)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Stop ends Run. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends a typed message to every connected client.
func (h *Hub) Broadcast(ctx context.Context, msgType string, data interface{}) {
	h.sendTo(ctx, "", msgType, data)
}

// SendTo sends a typed message to the connections of one owner.
func (h *Hub) SendTo(ctx context.Context, owner, msgType string, data interface{}) {
	h.sendTo(ctx, owner, msgType, data)
}

// Notify delivers an export notification to the owner's connections.
func (h *Hub) Notify(ctx context.Context, n exporter.Notification) {
	h.sendTo(ctx, n.Owner, TypeNotification, n)
}

var _ exporter.Notifier = (*Hub)(nil)

func (h *Hub) sendTo(ctx context.Context, owner, msgType string, data interface{}) {
	payload, err := h.encode(ctx, msgType, data)
	if err != nil {
		return
	}
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- outbound{owner: owner, data: payload}:
	default:
		h.messagesDropped.Add(1)
		h.logger.WarnContext(ctx, "broadcast queue full, message dropped",
			slog.String("type", msgType))
	}
}

func (h *Hub) encode(ctx context.Context, msgType string, data interface{}) ([]byte, error) {
	traceID := infrastructure.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = infrastructure.GetTraceID(ctx)
	}
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "error marshaling message",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
	}
	return payload, err
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns current hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}
