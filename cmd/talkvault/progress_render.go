package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"talkvault/internal/events"
	"talkvault/internal/model"
)

const barWidth = 30

// progressRenderer prints job events. On a terminal it redraws one line per
// event; otherwise it prints a line whenever the status changes.
type progressRenderer struct {
	out         io.Writer
	interactive bool
	lastStatus  model.ProcessingStatus
	drawn       bool
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	return &progressRenderer{out: out, interactive: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Run consumes events until the channel closes.
func (r *progressRenderer) Run(ch <-chan events.Event) {
	for event := range ch {
		r.render(event)
	}
	if r.interactive && r.drawn {
		fmt.Fprintln(r.out)
	}
}

func (r *progressRenderer) render(e events.Event) {
	if r.interactive {
		fmt.Fprintf(r.out, "\r\033[K%s %5.1f%% %-12s %s", bar(e.Progress), e.Progress, e.Status, truncate(e.Message, 50))
		r.drawn = true
		return
	}
	if e.Status == r.lastStatus {
		return
	}
	r.lastStatus = e.Status
	fmt.Fprintf(r.out, "[%5.1f%%] %s: %s\n", e.Progress, e.Status, e.Message)
}

func bar(percent float64) string {
	filled := int(percent / 100 * barWidth)
	filled = max(0, min(barWidth, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
