package services

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/instant-compose/devloop/internal/config"
	"github.com/instant-compose/devloop/internal/logging"
	"github.com/instant-compose/devloop/internal/server"
	"github.com/instant-compose/devloop/internal/websocket"
)

// ServeService runs the development server. It owns the build state cell and
// the client registry for the lifetime of one Serve call.
type ServeService struct {
	config *config.Config
	logger logging.Logger
	opts   options
	ready  chan *ServeResult
}

// ServeResult describes where the server is reachable.
type ServeResult struct {
	Port       int
	LocalURL   string
	NetworkURL string
}

// NewServeService creates a serve service for a resolved configuration.
func NewServeService(cfg *config.Config, logger logging.Logger, opts ...Option) *ServeService {
	if logger == nil {
		logger = logging.Nop()
	}

	return &ServeService{
		config: cfg,
		logger: logger,
		opts:   buildOptions(opts),
		ready:  make(chan *ServeResult, 1),
	}
}

// Ready delivers the server's addresses once the initial build has finished
// and the banner is printed.
func (s *ServeService) Ready() <-chan *ServeResult {
	return s.ready
}

// Serve binds the port, runs the initial build, prints the banner and then
// watches, rebuilds and serves until ctx is cancelled or SIGINT/SIGTERM
// arrives. A failed build is reported and the server keeps running; a
// watcher failure, an exhausted port range or a build command that cannot
// start end Serve with an error.
func (s *ServeService) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := s.config
	registry := websocket.NewRegistry(s.logger)

	p, err := newPipeline(cfg, s.logger, s.opts, registry)
	if err != nil {
		return err
	}
	defer p.close()

	if err := p.watcher.AddRecursive(cfg.Watch.Root); err != nil {
		return err
	}
	s.logger.Info(ctx, "Watching", "root", cfg.Watch.Root, "dirs", p.watcher.WatchedDirs())

	ln, port, err := server.Listen(ctx, cfg.Server.Host, cfg.Server.Port, cfg.Server.MaxPortAttempts, p.presenter.PortInUse)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		OutputDir:       cfg.Build.OutputDir,
		LivePath:        cfg.Server.LivePath,
		CacheMaxAge:     cfg.Server.CacheMaxAge,
		DefaultDocument: cfg.Server.DefaultDocument,
		Compression:     cfg.Server.Compression,
		MaxConnections:  cfg.Server.MaxConnections,
		Registry:        registry,
		Builds:          p.coordinator,
		Logger:          s.logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srv.Serve(gctx, ln) })
	// Changes made during the initial build wait in the coalescer's mailbox
	// and cause one rebuild once the loop starts.
	g.Go(func() error { return p.watch(gctx) })

	if _, err := p.coordinator.RequestRebuild(gctx, true); err != nil {
		return abort(cancel, g, err)
	}

	result := s.urls(port)
	p.presenter.Banner(result.NetworkURL, result.LocalURL)
	if cfg.Server.Open {
		if err := server.OpenBrowser(result.LocalURL); err != nil {
			s.logger.Warn(ctx, err, "Failed to open browser")
		}
	}
	s.ready <- result

	g.Go(func() error { return p.rebuildLoop(gctx) })

	return ignoreCanceled(g.Wait())
}

func (s *ServeService) urls(port int) *ServeResult {
	host := s.config.Server.Host
	wildcard := host == "" || host == "0.0.0.0" || host == "::"

	localHost := host
	if wildcard {
		localHost = "localhost"
	}

	result := &ServeResult{
		Port:     port,
		LocalURL: fmt.Sprintf("http://%s", net.JoinHostPort(localHost, strconv.Itoa(port))),
	}

	switch {
	case wildcard:
		// A LAN address is only reachable when listening on all interfaces.
		if ip := server.LocalIPv4(); ip != "" {
			result.NetworkURL = fmt.Sprintf("http://%s", net.JoinHostPort(ip, strconv.Itoa(port)))
		}
	case isLoopback(host):
	default:
		result.NetworkURL = result.LocalURL
	}

	return result
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
