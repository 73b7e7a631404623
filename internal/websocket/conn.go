package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
)

// Conn is one live client connection as seen by the registry.
type Conn interface {
	Write(ctx context.Context, msg string) error
	Ping(ctx context.Context) error
	Close(reason string) error
}

// WSConn adapts a coder/websocket connection to Conn.
type WSConn struct {
	conn *websocket.Conn
}

// Accept upgrades an HTTP request to a live connection. The dev server only
// listens for browsers on the local network, so any origin is accepted.
func Accept(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)

	return &WSConn{conn: conn}, nil
}

// Write sends msg as a text frame.
func (c *WSConn) Write(ctx context.Context, msg string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(msg))
}

// Ping sends a ping and waits for the pong.
func (c *WSConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close performs the closing handshake.
func (c *WSConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}

// Drain reads and discards incoming frames until the peer goes away or ctx
// ends. A normal close by the browser returns nil.
func (c *WSConn) Drain(ctx context.Context) error {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
