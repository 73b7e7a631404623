package watcher

import (
	"context"
	"time"
)

// Coalescer turns bursts of change notifications into single rebuild
// triggers. Notifications land in a one-slot mailbox: a notification sent
// while one is already pending is dropped, so a fast editing burst never
// queues up work.
type Coalescer struct {
	window  time.Duration
	mailbox chan struct{}
}

// NewCoalescer creates a coalescer that waits for window of quiet before
// triggering.
func NewCoalescer(window time.Duration) *Coalescer {
	return &Coalescer{
		window:  window,
		mailbox: make(chan struct{}, 1),
	}
}

// Notify records a change. It never blocks.
func (c *Coalescer) Notify() {
	select {
	case c.mailbox <- struct{}{}:
	default:
	}
}

// Run consumes notifications until ctx is done. After a notification it
// waits until window has passed without another one, then calls trigger
// once. trigger runs on this goroutine; notifications arriving meanwhile
// collapse into the mailbox and cause exactly one more trigger afterwards.
// An error from trigger stops Run and is returned.
func (c *Coalescer) Run(ctx context.Context, trigger func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.mailbox:
		}

		if !c.quiet(ctx) {
			return nil
		}

		if err := trigger(ctx); err != nil {
			return err
		}
	}
}

// quiet waits for a full window without notifications, consuming and
// restarting on each one. It returns false if ctx ends first.
func (c *Coalescer) quiet(ctx context.Context) bool {
	timer := time.NewTimer(c.window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.mailbox:
			// Reset discards a pending tick on synchronous (go1.23+) timers.
			timer.Reset(c.window)
		case <-timer.C:
			return true
		}
	}
}
