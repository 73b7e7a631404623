// Package status prints the dev loop's terminal output: a live elapsed-time
// line while a build runs, a one-line summary when it ends, and the startup
// banner.
package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const (
	// DefaultInterval is how often the progress line is redrawn.
	DefaultInterval = 100 * time.Millisecond

	clearLine   = "\x1b[K"
	clearScreen = "\x1b[H\x1b[2J\x1b[3J"
	rule        = "=================================================="
)

// Presenter writes build status to a terminal. All output goes through one
// mutex so the progress ticker never interleaves with other lines.
type Presenter struct {
	mu       sync.Mutex
	out      io.Writer
	interval time.Duration
	showQR   bool
	clear    bool

	progress lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	title    lipgloss.Style
	accent   lipgloss.Style
	dim      lipgloss.Style
}

// Option customises a Presenter.
type Option func(*Presenter)

// WithInterval sets the progress redraw interval.
func WithInterval(d time.Duration) Option {
	return func(p *Presenter) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithQR enables or disables the QR code in the banner.
func WithQR(show bool) Option {
	return func(p *Presenter) { p.showQR = show }
}

// New creates a presenter writing to out. Colours follow what out supports.
func New(out io.Writer, opts ...Option) *Presenter {
	r := lipgloss.NewRenderer(out)

	p := &Presenter{
		out:      out,
		interval: DefaultInterval,
		showQR:   true,
		progress: r.NewStyle().Foreground(lipgloss.Color("3")),
		success:  r.NewStyle().Foreground(lipgloss.Color("2")),
		failure:  r.NewStyle().Foreground(lipgloss.Color("1")),
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		accent:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		dim:      r.NewStyle().Faint(true),
	}
	if f, ok := out.(*os.File); ok {
		p.clear = isatty.IsTerminal(f.Fd())
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Presenter) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.out, s)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Progress redraws "<label> (N.Ns)" in place until the returned stop
// function is called. stop waits for the ticker to finish and may be called
// more than once.
func (p *Presenter) Progress(label string) (stop func()) {
	start := time.Now()
	done := make(chan struct{})
	finished := make(chan struct{})

	draw := func() {
		p.write("\r" + p.progress.Render(fmt.Sprintf("%s (%s)", label, seconds(time.Since(start)))) + clearLine)
	}

	go func() {
		defer close(finished)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		draw()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				draw()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}

// BuildSucceeded prints the success summary over the progress line.
func (p *Presenter) BuildSucceeded(initial bool, elapsed time.Duration) {
	text := "Rebuild successful"
	if initial {
		text = "Initial build successful"
	}

	p.write("\r" + p.success.Render(fmt.Sprintf("%s in %s, notifying clients.", text, seconds(elapsed))) + clearLine + "\n")
}

// BuildFailed prints the failure summary followed by the filtered build log.
func (p *Presenter) BuildFailed(initial bool, elapsed time.Duration, lines []string) {
	text := "Rebuild failed"
	if initial {
		text = "Initial build failed"
	}

	var b strings.Builder
	b.WriteString("\r" + p.failure.Render(fmt.Sprintf("%s in %s", text, seconds(elapsed))) + clearLine + "\n")
	if len(lines) > 0 {
		b.WriteString("\n" + strings.Join(lines, "\n") + "\n\n")
	}
	p.write(b.String())
}

// PortInUse reports a port that was taken.
func (p *Presenter) PortInUse(port int) {
	p.write(fmt.Sprintf("\rPort %d is already in use, trying next port...%s\n", port, clearLine))
}

// Banner clears the screen on a terminal and prints where the app can be
// opened. networkURL may be empty when no LAN address was found.
func (p *Presenter) Banner(networkURL, localURL string) {
	var b strings.Builder
	if p.clear {
		b.WriteString(clearScreen)
	}

	b.WriteString(rule + "\n\n")
	b.WriteString(p.title.Render("devloop") + " " + p.accent.Render("dev") + "\n")
	b.WriteString("Running development server\n\n")
	b.WriteString(rule + "\n")

	if networkURL != "" {
		if p.showQR {
			if qr, err := QRCode(networkURL); err == nil {
				b.WriteString("Scan the QR code below to view on your phone:\n")
				b.WriteString(qr)
			}
		}
		b.WriteString("Link: " + networkURL + "\n")
	}
	if localURL != "" {
		b.WriteString(p.dim.Render("Local: "+localURL) + "\n")
	}
	b.WriteString("\n" + rule + "\n")

	p.write(b.String())
}
