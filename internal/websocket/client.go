package websocket

import (
	"context"
	"sync"
	"time"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	defaultQueueSize = 64
)

// Client is a registered live connection with its own send queue. Messages
// are written by a single goroutine in the order they were queued.
type Client struct {
	id       uint64
	conn     Conn
	send     chan string
	done     chan struct{}
	once     sync.Once
	registry *Registry
}

// ID returns the registry-assigned identifier.
func (c *Client) ID() uint64 { return c.id }

// Done is closed once the client has been unregistered.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send queues msg for this client only. It reports false, and drops the
// client, if the queue is full or the client is gone.
func (c *Client) Send(msg string) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.registry.logger.Debug(context.Background(), "Client send queue full, dropping client", "client", c.id)
		c.registry.Unregister(c)
		return false
	}
}

func (c *Client) stop() {
	c.once.Do(func() { close(c.done) })
}

// writePump drains the send queue to the connection and keeps it alive with
// pings. A failed write or ping unregisters the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.registry.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close("")
	}()

	ctx := context.Background()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, c.registry.writeWait)
			err := c.conn.Write(writeCtx, msg)
			cancel()
			if err != nil {
				c.registry.logger.Debug(ctx, "Client write failed, dropping client", "client", c.id, "error", err)
				c.registry.Unregister(c)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.registry.writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.registry.Unregister(c)
				return
			}
		}
	}
}
