//go:build property

package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCoalescerProperties validates the coalescing guarantees of the rebuild trigger.
func TestCoalescerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	// Property: a burst faster than the window yields exactly one trigger
	properties.Property("burst collapses to one trigger", prop.ForAll(
		func(windowMs int, changeCount int) bool {
			window := time.Duration(windowMs) * time.Millisecond
			c := NewCoalescer(window)

			var calls atomic.Int32
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				_ = c.Run(ctx, func(context.Context) error {
					calls.Add(1)
					return nil
				})
			}()

			for i := 0; i < changeCount; i++ {
				c.Notify()
				time.Sleep(window / 10)
			}

			time.Sleep(window * 3)
			return calls.Load() == 1
		},
		gen.IntRange(20, 60),
		gen.IntRange(1, 15),
	))

	// Property: the mailbox never holds more than one notification
	properties.Property("notifications conflate", prop.ForAll(
		func(n int) bool {
			c := NewCoalescer(time.Hour)
			for i := 0; i < n; i++ {
				c.Notify()
			}
			return len(c.mailbox) == 1
		},
		gen.IntRange(1, 500),
	))

	properties.TestingRun(t)
}

// TestFilterProperties validates path classification.
func TestFilterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	root := filepath.FromSlash("/work/project")
	f := newTestFilter(root)

	names := []string{"composeApp", "src", "webMain", "kotlin", "build", ".git", "node_modules", "shared", "ui"}
	files := []string{"Main.kt", "build.gradle.kts", "index.html", "notes.txt"}
	segments := gen.SliceOfN(4, gen.IntRange(0, len(names)-1))
	toParts := func(idx []int) []string {
		parts := make([]string, len(idx))
		for i, n := range idx {
			parts[i] = names[n]
		}
		return parts
	}

	// Property: anything under an excluded segment is never watchable
	properties.Property("excluded segments are never watchable", prop.ForAll(
		func(idx []int) bool {
			parts := toParts(idx)
			path := filepath.Join(append([]string{root}, parts...)...)
			excluded := false
			for _, p := range parts {
				if p == "build" || p == "node_modules" || strings.HasPrefix(p, ".") {
					excluded = true
				}
			}
			return !excluded || !f.IsWatchable(path)
		},
		segments,
	))

	// Property: a relevant change is always watchable
	properties.Property("relevant implies watchable", prop.ForAll(
		func(idx []int, file int) bool {
			path := filepath.Join(append(append([]string{root}, toParts(idx)...), files[file])...)
			return !f.IsRelevantChange(path) || f.IsWatchable(path)
		},
		segments,
		gen.IntRange(0, len(files)-1),
	))

	properties.TestingRun(t)
}
