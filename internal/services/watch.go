package services

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/instant-compose/devloop/internal/config"
	"github.com/instant-compose/devloop/internal/logging"
)

// WatchService rebuilds on change without serving anything.
type WatchService struct {
	config *config.Config
	logger logging.Logger
	opts   options
}

// NewWatchService creates a watch-only service for a resolved configuration.
func NewWatchService(cfg *config.Config, logger logging.Logger, opts ...Option) *WatchService {
	if logger == nil {
		logger = logging.Nop()
	}

	return &WatchService{
		config: cfg,
		logger: logger,
		opts:   buildOptions(opts),
	}
}

// Watch runs the initial build and then rebuilds on every coalesced burst of
// changes until ctx is cancelled or SIGINT/SIGTERM arrives.
func (s *WatchService) Watch(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(s.config, s.logger, s.opts, nil)
	if err != nil {
		return err
	}
	defer p.close()

	if err := p.watcher.AddRecursive(s.config.Watch.Root); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.watch(gctx) })

	if _, err := p.coordinator.RequestRebuild(gctx, true); err != nil {
		return abort(cancel, g, err)
	}
	s.logger.Info(ctx, "Watching for changes", "root", s.config.Watch.Root)

	g.Go(func() error { return p.rebuildLoop(gctx) })

	return ignoreCanceled(g.Wait())
}
