package server

import (
	"context"
	"net/http"

	"github.com/instant-compose/devloop/internal/websocket"
)

// handleLive upgrades to the live connection. A browser that connects while
// a build runs is told so right away; after that it only receives
// broadcasts. Incoming frames are read and discarded until the browser
// leaves.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r)
	if err != nil {
		s.logger.Debug(r.Context(), "Live upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := s.opts.Registry.Register(conn)
	defer s.opts.Registry.Unregister(client)

	if s.opts.Builds != nil && s.opts.Builds.Running() {
		client.Send(websocket.MessageRebuilding)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-client.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := conn.Drain(ctx); err != nil {
		s.logger.Debug(ctx, "Live connection closed", "client", client.ID(), "error", err)
	}
}
