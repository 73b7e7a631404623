// Package websocket keeps the set of connected browsers and delivers live
// reload messages to them.
//
// Every client owns a bounded send queue drained by its own writer
// goroutine, so one slow or broken browser never holds up the others and
// each browser sees messages in the order they were broadcast.
package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/instant-compose/devloop/internal/logging"
)

// Registry is the concurrency-safe set of live clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
	nextID  atomic.Uint64
	logger  logging.Logger

	queueSize  int
	pingPeriod time.Duration
	writeWait  time.Duration
}

// Option customises a Registry.
type Option func(*Registry)

// WithQueueSize sets how many messages may wait for one client.
func WithQueueSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithPingPeriod sets the keepalive interval.
func WithPingPeriod(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.pingPeriod = d
		}
	}
}

// WithWriteWait sets the deadline for a single write or ping.
func WithWriteWait(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.writeWait = d
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}

	r := &Registry{
		clients:    make(map[*Client]struct{}),
		logger:     logger.WithComponent("live"),
		queueSize:  defaultQueueSize,
		pingPeriod: pingPeriod,
		writeWait:  writeWait,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds conn and starts its writer. After Close the connection is
// closed right away and the returned client is already done.
func (r *Registry) Register(conn Conn) *Client {
	c := &Client{
		id:       r.nextID.Add(1),
		conn:     conn,
		send:     make(chan string, r.queueSize),
		done:     make(chan struct{}),
		registry: r,
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.stop()
		_ = conn.Close("server shutting down")
		return c
	}
	r.clients[c] = struct{}{}
	count := len(r.clients)
	r.mu.Unlock()

	go c.writePump()
	r.logger.Debug(context.Background(), "Client connected", "client", c.id, "clients", count)

	return c
}

// Unregister removes c and stops its writer. Calling it more than once is
// harmless.
func (r *Registry) Unregister(c *Client) {
	if c == nil {
		return
	}

	r.mu.Lock()
	_, ok := r.clients[c]
	delete(r.clients, c)
	count := len(r.clients)
	r.mu.Unlock()

	c.stop()
	if ok {
		r.logger.Debug(context.Background(), "Client disconnected", "client", c.id, "clients", count)
	}
}

// Broadcast queues msg for every registered client and returns how many
// accepted it. Clients whose queue is full are dropped.
func (r *Registry) Broadcast(msg string) int {
	delivered := 0
	for _, c := range r.snapshot() {
		if c.Send(msg) {
			delivered++
		}
	}

	return delivered
}

func (r *Registry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}

	return clients
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close drops every client and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[*Client]struct{})
	r.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}
