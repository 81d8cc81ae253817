package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/stemchat/internal/metrics"
)

// ErrHubClosed is returned by Serve after Close.
var ErrHubClosed = errors.New("chat hub closed")

// Broadcaster pushes envelopes to connected clients.
type Broadcaster interface {
	Broadcast(env Envelope)
}

// HubConfig configures a Hub.
type HubConfig struct {
	// SendBuffer is the per-client queue length. A client whose queue is
	// full when a broadcast arrives is disconnected.
	SendBuffer   int
	WriteTimeout time.Duration
}

// DefaultHubConfig returns the default hub settings.
func DefaultHubConfig() HubConfig {
	return HubConfig{SendBuffer: 64, WriteTimeout: 10 * time.Second}
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	kickOnce    sync.Once
	kicked      chan struct{}
	kickStatus  websocket.StatusCode
	kickMessage string
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{
		conn:   conn,
		send:   make(chan []byte, buffer),
		kicked: make(chan struct{}),
	}
}

func (c *client) kick(status websocket.StatusCode, reason string) {
	c.kickOnce.Do(func() {
		c.kickStatus = status
		c.kickMessage = reason
		close(c.kicked)
	})
}

// enqueue never blocks. It reports false when the queue is full.
func (c *client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Hub fans broadcasts out to WebSocket clients.
type Hub struct {
	cfg     HubConfig
	logger  *zap.Logger
	metrics *metrics.Collector

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub.
func NewHub(cfg HubConfig, collector *metrics.Collector, logger *zap.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultHubConfig().SendBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultHubConfig().WriteTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "chat_hub")),
		metrics: collector,
		clients: make(map[*client]struct{}),
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends env to every client without blocking.
func (h *Hub) Broadcast(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal envelope failed", zap.String("type", env.Type), zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.enqueue(data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow client", zap.String("type", env.Type))
		h.unregister(c)
		c.kick(websocket.StatusPolicyViolation, "slow consumer")
	}
}

// Serve runs one connection until the peer leaves, the context ends, or
// the hub drops the client. Text frames are acknowledged with an "ack"
// envelope echoing the payload.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) error {
	c := newClient(conn, h.cfg.SendBuffer)
	if !h.register(c) {
		if conn != nil {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		return ErrHubClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ctx, c)
	}()

	err := h.readLoop(ctx, c)
	h.unregister(c)
	cancel()
	<-writerDone
	_ = conn.CloseNow()

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.kick(websocket.StatusGoingAway, "server shutting down")
	}
	h.metrics.SetWSClients(0)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetWSClients(n)
	h.logger.Debug("client connected", zap.Int("clients", n))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.SetWSClients(n)
		h.logger.Debug("client disconnected", zap.Int("clients", n))
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client) error {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		ack, err := json.Marshal(Envelope{Type: EventAck, Echo: string(data)})
		if err != nil {
			continue
		}
		if !c.enqueue(ack) {
			c.kick(websocket.StatusPolicyViolation, "slow consumer")
			return errors.New("send queue full")
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kicked:
			_ = c.conn.Close(c.kickStatus, c.kickMessage)
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.Debug("write failed", zap.Error(err))
				_ = c.conn.CloseNow()
				return
			}
		}
	}
}
