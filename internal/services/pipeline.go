// Package services wires the dev loop's components together for the CLI
// commands.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/instant-compose/devloop/internal/build"
	"github.com/instant-compose/devloop/internal/config"
	"github.com/instant-compose/devloop/internal/logging"
	"github.com/instant-compose/devloop/internal/status"
	"github.com/instant-compose/devloop/internal/watcher"
)

// Option customises a service.
type Option func(*options)

type options struct {
	runner build.Runner
	source watcher.EventSource
	out    io.Writer
}

// WithRunner replaces the process runner used for builds.
func WithRunner(r build.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithEventSource replaces the native filesystem event source.
func WithEventSource(src watcher.EventSource) Option {
	return func(o *options) { o.source = src }
}

// WithOutput sets where status lines are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

func buildOptions(opts []Option) options {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// pipeline is the part of the dev loop shared by serve and watch: the watcher,
// the coalescer and the build coordinator.
type pipeline struct {
	watcher     *watcher.Watcher
	coalescer   *watcher.Coalescer
	coordinator *build.Coordinator
	presenter   *status.Presenter
}

func newPipeline(cfg *config.Config, logger logging.Logger, o options, broadcaster build.Broadcaster) (*pipeline, error) {
	presenter := status.New(o.out, status.WithQR(cfg.Server.ShowQR))

	filter := &watcher.Filter{
		Root:           cfg.Watch.Root,
		IgnoreDirs:     cfg.Watch.IgnoreDirs,
		SourcePaths:    cfg.Watch.SourcePaths,
		ConfigSuffixes: cfg.Watch.ConfigSuffixes,
		IgnoreGlobs:    cfg.Watch.IgnoreGlobs,
	}

	var w *watcher.Watcher
	if o.source != nil {
		w = watcher.New(filter, o.source, logger)
	} else {
		var err error
		if w, err = watcher.NewFSNotify(filter, logger); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(cfg.Build.OutputDir, 0o755); err != nil {
		w.Close()
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	coordinator := build.NewCoordinator(build.Options{
		Runner:      o.runner,
		Broadcaster: broadcaster,
		Presenter:   presenter,
		Command: build.Command{
			Path: cfg.Build.Command,
			Args: cfg.Build.Args,
			Dir:  cfg.Build.Dir,
			Env:  cfg.Build.Env,
		},
		OutputDir:        cfg.Build.OutputDir,
		ResourcesDir:     cfg.Build.ResourcesDir,
		ServedExtensions: cfg.Build.ServedExtensions,
		NoisePatterns:    cfg.Build.NoisePatterns,
		Logger:           logger,
	})

	return &pipeline{
		watcher:     w,
		coalescer:   watcher.NewCoalescer(cfg.Watch.Debounce),
		coordinator: coordinator,
		presenter:   presenter,
	}, nil
}

// watch registers the tree and forwards relevant changes to the coalescer.
func (p *pipeline) watch(ctx context.Context) error {
	return p.watcher.Watch(ctx, func(watcher.Event) {
		p.coalescer.Notify()
	})
}

// rebuildLoop runs a rebuild for every coalesced burst of changes.
func (p *pipeline) rebuildLoop(ctx context.Context) error {
	return p.coalescer.Run(ctx, func(ctx context.Context) error {
		_, err := p.coordinator.RequestRebuild(ctx, false)
		if errors.Is(err, build.ErrBuildInProgress) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

func (p *pipeline) close() {
	_ = p.watcher.Close()
}

// ignoreCanceled maps the shutdown of the group to a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// abort stops the group after the initial build could not run and returns
// the error that caused it: a group failure that cancelled the build wins
// over the resulting cancellation.
func abort(cancel context.CancelFunc, g *errgroup.Group, err error) error {
	cancel()
	if gerr := g.Wait(); gerr != nil && errors.Is(err, context.Canceled) {
		return ignoreCanceled(gerr)
	}
	return ignoreCanceled(err)
}
