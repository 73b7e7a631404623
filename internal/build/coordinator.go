// Package build runs the external build command on behalf of the dev loop.
//
// The Coordinator guarantees that at most one build runs at a time, tells the
// connected clients when a build starts and how it ended, and keeps the
// served directory in step with successful builds.
package build

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	deverrors "github.com/instant-compose/devloop/internal/errors"
	"github.com/instant-compose/devloop/internal/logging"
	"github.com/instant-compose/devloop/internal/websocket"
)

// State is the single-flight state of the coordinator.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// ErrBuildInProgress is returned by RequestRebuild while a build is running.
// Callers drop the request; it is never replayed.
var ErrBuildInProgress = errors.New("build already in progress")

// Progress labels shown while the command runs.
const (
	LabelInitial = "Initial build..."
	LabelRebuild = "Rebuilding..."
)

// Broadcaster delivers a protocol message to every connected client.
type Broadcaster interface {
	Broadcast(msg string) int
}

// Presenter reports build progress to the operator.
type Presenter interface {
	Progress(label string) (stop func())
	BuildSucceeded(initial bool, elapsed time.Duration)
	BuildFailed(initial bool, elapsed time.Duration, lines []string)
}

// Result describes a finished build.
type Result struct {
	Success     bool
	Initial     bool
	Elapsed     time.Duration
	ServedFiles []string
	// FilteredLog is the build output without noise lines, set on failure.
	FilteredLog []string
	ExitCode    int
}

// Options configures a Coordinator.
type Options struct {
	Runner           Runner
	Broadcaster      Broadcaster
	Presenter        Presenter
	Command          Command
	OutputDir        string
	ResourcesDir     string
	ServedExtensions []string
	NoisePatterns    []string
	Logger           logging.Logger
}

// Coordinator owns the build state cell.
type Coordinator struct {
	opts   Options
	logger logging.Logger
	state  atomic.Int32

	mu   sync.RWMutex
	last *Result
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Runner == nil {
		opts.Runner = NewExecRunner()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = nopBroadcaster{}
	}
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	return &Coordinator{
		opts:   opts,
		logger: opts.Logger.WithComponent("build"),
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Running reports whether a build is in progress.
func (c *Coordinator) Running() bool {
	return c.State() == StateRunning
}

// LastResult returns the most recent finished build, or nil before the first.
func (c *Coordinator) LastResult() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// RequestRebuild runs one build unless another is already running, in which
// case it returns ErrBuildInProgress at once. A build that ran, successfully
// or not, returns its Result and a nil error. An error is returned only when
// the command could not be started (a fatal build error) or ctx ended.
func (c *Coordinator) RequestRebuild(ctx context.Context, initial bool) (*Result, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		c.logger.Debug(ctx, "Rebuild requested while running, ignoring")
		return nil, ErrBuildInProgress
	}

	label := LabelRebuild
	if initial {
		label = LabelInitial
	}

	start := time.Now()
	stop := c.opts.Presenter.Progress(label)
	c.opts.Broadcaster.Broadcast(websocket.MessageRebuilding)

	c.logger.Debug(ctx, "Running build", "command", c.opts.Command.String(), "dir", c.opts.Command.Dir)
	out, err := c.opts.Runner.Run(ctx, c.opts.Command)
	elapsed := time.Since(start)

	stop()
	c.state.Store(int32(StateIdle))

	if err != nil {
		c.opts.Broadcaster.Broadcast(websocket.MessageError)
		return nil, err
	}

	result := &Result{
		Initial:  initial,
		Elapsed:  elapsed,
		ExitCode: out.ExitCode,
	}

	if out.ExitCode == 0 {
		files, err := c.publish(ctx)
		if err == nil {
			result.Success = true
			result.ServedFiles = files
			c.opts.Presenter.BuildSucceeded(initial, elapsed)
			c.opts.Broadcaster.Broadcast(websocket.ReloadMessage(files))
			c.record(result)
			return result, nil
		}
		if deverrors.IsRecoverable(err) {
			c.logger.Warn(ctx, err, "Publishing build output failed")
		} else {
			c.logger.Error(ctx, err, "Publishing build output failed")
		}
		result.FilteredLog = []string{err.Error()}
	} else {
		result.FilteredLog = FilterLog(string(out.Log), c.opts.NoisePatterns)
	}

	c.logger.Info(ctx, "Build failed", "exit_code", out.ExitCode, "elapsed", elapsed)
	c.opts.Presenter.BuildFailed(initial, elapsed, result.FilteredLog)
	c.opts.Broadcaster.Broadcast(websocket.MessageError)
	c.record(result)

	return result, nil
}

// publish copies the passthrough resources into the output directory and
// lists the files clients should fetch.
func (c *Coordinator) publish(ctx context.Context) ([]string, error) {
	copied, err := CopyResources(c.opts.ResourcesDir, c.opts.OutputDir)
	if err != nil {
		return nil, deverrors.NewIOError(deverrors.CodePublish, "copying resources", err)
	}
	c.logger.Debug(ctx, "Copied resources", "count", copied, "dest", c.opts.OutputDir)

	files, err := ServedFiles(c.opts.OutputDir, c.opts.ServedExtensions)
	if err != nil {
		return nil, deverrors.NewIOError(deverrors.CodePublish, "listing served files", err)
	}

	return files, nil
}

func (c *Coordinator) record(r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = r
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string) int { return 0 }

type nopPresenter struct{}

func (nopPresenter) Progress(string) func()                    { return func() {} }
func (nopPresenter) BuildSucceeded(bool, time.Duration)        {}
func (nopPresenter) BuildFailed(bool, time.Duration, []string) {}
