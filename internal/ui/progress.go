package ui

import (
	"fmt"
	"io"
	"sync"
)

// Progress reports counted steps on one line. On a terminal the line is
// redrawn in place; elsewhere each step is printed on its own line.
type Progress struct {
	out     io.Writer
	tty     bool
	message string
	total   int

	mu      sync.Mutex
	current int
}

// NewProgress creates a progress indicator writing to out.
func NewProgress(out io.Writer, display *DisplayContext, message string, total int) *Progress {
	return &Progress{
		out:     out,
		tty:     display != nil && display.IsTTY,
		message: message,
		total:   total,
	}
}

// Step advances the progress by one and labels the current step.
func (p *Progress) Step(label string) {
	p.mu.Lock()
	p.current++
	current := p.current
	p.mu.Unlock()

	counter := Muted.Render(fmt.Sprintf("(%d/%d)", current, p.total))
	if p.tty {
		fmt.Fprintf(p.out, "\r\033[K%s %s %s", p.message, label, counter)
		return
	}
	fmt.Fprintf(p.out, "%s %s %s\n", p.message, label, counter)
}

// Done clears the progress line and prints a final message, if any.
func (p *Progress) Done(message string) {
	if p.tty {
		fmt.Fprint(p.out, "\r\033[K")
	}
	if message != "" {
		fmt.Fprintln(p.out, message)
	}
}
