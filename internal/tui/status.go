package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

var (
	okMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render("✓")
	failMark = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render("✗")
)

// StatusWriter animates a single status line for commands that work on one
// browser, then replaces it with a final outcome line.
type StatusWriter struct {
	w       io.Writer
	spinner spinner.Spinner
	started time.Time

	mu      sync.Mutex
	message string
	stop    chan struct{}
	stopped sync.WaitGroup
	closed  bool
}

// NewStatusWriter starts animating message on w.
func NewStatusWriter(w io.Writer, message string) *StatusWriter {
	sw := &StatusWriter{
		w:       w,
		spinner: spinner.Dot,
		started: time.Now(),
		message: message,
		stop:    make(chan struct{}),
	}
	sw.stopped.Add(1)
	go sw.loop()
	return sw
}

// Update replaces the message next to the spinner.
func (sw *StatusWriter) Update(message string) {
	sw.mu.Lock()
	sw.message = message
	sw.mu.Unlock()
}

// Finish stops the spinner and prints a final line marked with the outcome
// of err and the total elapsed time. Later calls are no-ops.
func (sw *StatusWriter) Finish(err error) {
	sw.mu.Lock()
	if sw.closed {
		sw.mu.Unlock()
		return
	}
	sw.closed = true
	msg := sw.message
	sw.mu.Unlock()

	close(sw.stop)
	sw.stopped.Wait()

	mark := okMark
	if err != nil {
		mark = failMark
		msg = err.Error()
	}
	fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)\n", mark, msg, formatElapsed(time.Since(sw.started)))
}

func (sw *StatusWriter) loop() {
	defer sw.stopped.Done()
	ticker := time.NewTicker(sw.spinner.FPS)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-sw.stop:
			return
		case <-ticker.C:
			sw.mu.Lock()
			msg := sw.message
			sw.mu.Unlock()
			glyph := SpinnerStyle.Render(sw.spinner.Frames[frame%len(sw.spinner.Frames)])
			fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", glyph, msg, formatElapsed(time.Since(sw.started)))
		}
	}
}

// formatElapsed formats a duration for display in the status line.
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
