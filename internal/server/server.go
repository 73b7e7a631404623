// Package server serves the build output over HTTP and carries the live
// reload connection.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/net/netutil"

	"github.com/instant-compose/devloop/internal/build"
	"github.com/instant-compose/devloop/internal/logging"
	"github.com/instant-compose/devloop/internal/middleware"
	"github.com/instant-compose/devloop/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

// BuildStatus is the part of the build coordinator the server reads.
type BuildStatus interface {
	State() build.State
	Running() bool
	LastResult() *build.Result
}

// Options configures a Server.
type Options struct {
	OutputDir       string
	LivePath        string
	CacheMaxAge     time.Duration
	DefaultDocument string
	Compression     bool
	MaxConnections  int
	Registry        *websocket.Registry
	Builds          BuildStatus
	Logger          logging.Logger
}

// Server routes the live endpoint, the health check and the static files.
type Server struct {
	opts    Options
	logger  logging.Logger
	handler http.Handler
}

// New creates a server. The handler is built once and reused.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.LivePath == "" {
		opts.LivePath = "/dev-server"
	}
	if opts.DefaultDocument == "" {
		opts.DefaultDocument = "index.html"
	}
	if opts.Registry == nil {
		opts.Registry = websocket.NewRegistry(opts.Logger)
	}

	s := &Server{
		opts:   opts,
		logger: opts.Logger.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(opts.LivePath, s.handleLive)
	mux.HandleFunc("/healthz", s.handleHealth)

	var static http.Handler = http.HandlerFunc(s.handleStatic)
	if opts.Compression {
		static = gzhttp.GzipHandler(static)
	}
	mux.Handle("/", static)

	s.handler = middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
		middleware.CORS(),
	).Apply(mux)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully. It returns nil after a shutdown caused by ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Live connections are hijacked, so Shutdown does not wait for them.
	s.opts.Registry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, err, "Server shutdown incomplete")
	}

	return nil
}
