package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-chat-api/internal/observability"
)

const (
	defaultSendBuffer   = 32
	defaultPingInterval = 30 * time.Second
)

// Conn is the subset of a websocket connection used by the hub.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Router receives connection lifecycle callbacks and inbound events.
type Router interface {
	Connected(client *Client)
	Disconnected(client *Client)
	Handle(ctx context.Context, client *Client, message InboundEnvelope)
}

// Session carries handshake metadata for a new connection.
type Session struct {
	UserID        string
	CorrelationID string
	Context       context.Context
}

// HubOptions tunes per-connection buffering and keepalive.
type HubOptions struct {
	SendBuffer   int
	PingInterval time.Duration
}

// Hub owns the live websocket connections keyed by connection id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	opts    HubOptions
	log     zerolog.Logger
}

// Client is a single live websocket connection.
type Client struct {
	id      string
	session Session
	conn    Conn
	send    chan Envelope
	hub     *Hub
	closed  chan struct{}
	once    sync.Once
}

// NewHub creates an empty hub.
func NewHub(opts HubOptions, logger zerolog.Logger) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	return &Hub{
		clients: make(map[string]*Client),
		opts:    opts,
		log:     logger.With().Str("component", "socket_hub").Logger(),
	}
}

// Serve runs a connection until it closes. It blocks the calling goroutine
// with the read loop while a second goroutine drains the send queue.
func (h *Hub) Serve(conn Conn, session Session, router Router) {
	if session.Context == nil {
		session.Context = context.Background()
	}

	client := &Client{
		id:      uuid.NewString(),
		session: session,
		conn:    conn,
		send:    make(chan Envelope, h.opts.SendBuffer),
		hub:     h,
		closed:  make(chan struct{}),
	}

	h.register(client)
	router.Connected(client)

	go client.writer()
	client.reader(router)

	router.Disconnected(client)
}

// Emit implements Emitter.
func (h *Hub) Emit(connectionID, event string, payload interface{}) bool {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return client.enqueue(Envelope{Event: event, Data: payload})
}

// Broadcast implements Emitter.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	envelope := Envelope{Event: event, Data: payload}
	for _, client := range h.clients {
		client.enqueue(envelope)
	}
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every live connection.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.close()
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.id] = client
	observability.ChatConnectionsActive().Inc()
	h.log.Debug().Str("connection_id", client.id).Str("user_id", client.session.UserID).Msg("socket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; !ok {
		return
	}
	delete(h.clients, client.id)
	observability.ChatConnectionsActive().Dec()
	h.log.Debug().Str("connection_id", client.id).Str("user_id", client.session.UserID).Msg("socket client disconnected")
}

// ID returns the connection id assigned at handshake.
func (c *Client) ID() string {
	return c.id
}

// UserID returns the handshake user id.
func (c *Client) UserID() string {
	return c.session.UserID
}

// CorrelationID returns the correlation id of the upgrade request.
func (c *Client) CorrelationID() string {
	return c.session.CorrelationID
}

// Context returns the base context of the upgrade request.
func (c *Client) Context() context.Context {
	return c.session.Context
}

// Send queues an event for this connection only.
func (c *Client) Send(event string, payload interface{}) bool {
	return c.enqueue(Envelope{Event: event, Data: payload})
}

func (c *Client) enqueue(envelope Envelope) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- envelope:
		return true
	default:
		c.hub.log.Warn().Str("connection_id", c.id).Str("event", envelope.Event).Msg("dropping socket event for slow client")
		return false
	}
}

func (c *Client) reader(router Router) {
	defer c.close()

	for {
		var message InboundEnvelope
		if err := c.conn.ReadJSON(&message); err != nil {
			c.hub.log.Debug().Err(err).Str("connection_id", c.id).Msg("socket read loop ended")
			return
		}

		select {
		case <-c.closed:
			return
		default:
		}

		router.Handle(c.session.Context, c, message)
	}
}

func (c *Client) writer() {
	defer c.close()

	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case envelope := <-c.send:
			if err := c.conn.WriteJSON(envelope); err != nil {
				c.hub.log.Debug().Err(err).Str("connection_id", c.id).Msg("socket write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.hub.log.Debug().Err(err).Str("connection_id", c.id).Msg("socket ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.closed)
		c.hub.unregister(c)
		_ = c.conn.Close()
	})
}
