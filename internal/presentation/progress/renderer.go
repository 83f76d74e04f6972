// Package progress renders live per-layer analysis progress to a terminal,
// or as plain status lines when the output is not a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/penwyp/go-eo-explorer/internal/core/model"
	"github.com/penwyp/go-eo-explorer/internal/util"
)

const (
	DefaultWidth = 80
	minWidth     = 40
	maxNameWidth = 28

	clearLine = "\033[2K"
	cursorUp  = "\033[%dA"
)

// Bar draws a fixed-width bar for percentage in [0, 100].
func Bar(percentage float64, width int) string {
	if width < 2 {
		width = 2
	}
	inner := width - 2
	filled := int(percentage / 100 * float64(inner))
	filled = max(0, min(filled, inner))
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", inner-filled) + "]"
}

// Line renders one layer's state in at most width display cells.
func Line(layerID string, s model.AnalysisState, width int) string {
	if width < minWidth {
		width = minWidth
	}
	nameWidth := min(maxNameWidth, width/3)

	// An errored line skips the bar so the cause gets the remaining width.
	if s.Status == model.AnalysisErrored {
		status := "errored"
		if s.Error != nil {
			status += ": " + s.Error.Error()
		}
		return util.Truncate(util.PadRight(layerID, nameWidth)+" "+status, width)
	}

	var counter, status string
	percentage := 0.0
	total, known := s.Total()
	switch {
	case s.Status == model.AnalysisSucceeded:
		status = "done"
		percentage = 100
		counter = fmt.Sprintf("%d/%d", s.Loaded(), total)
	case known:
		status = "loading"
		counter = fmt.Sprintf("%d/%d", s.Loaded(), total)
		if total > 0 {
			percentage = float64(s.Loaded()) * 100 / float64(total)
		}
	default:
		status = "searching"
		counter = "?"
	}

	barWidth := max(10, width-nameWidth-30)
	line := fmt.Sprintf("%s %s %s %s",
		util.PadRight(layerID, nameWidth), Bar(percentage, barWidth), util.PadRight(counter, 11), status)
	return util.Truncate(line, width)
}

// Renderer tracks the latest state per layer. Update has the listener
// signature of analysis.Operation.OnAny.
type Renderer struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	width       int
	order       []string
	states      map[string]model.AnalysisState
	printed     map[string]model.AnalysisStatus
	drawn       int
}

// New renders to out, redrawing in place when out is a terminal.
func New(out io.Writer, layerIDs []string) *Renderer {
	interactive := false
	width := DefaultWidth
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		interactive = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w >= minWidth {
			width = w - 1
		}
	}
	return newRenderer(out, layerIDs, interactive, width)
}

func newRenderer(out io.Writer, layerIDs []string, interactive bool, width int) *Renderer {
	util.LogDebugf("Progress renderer: interactive=%v width=%d layers=%d", interactive, width, len(layerIDs))
	return &Renderer{
		out:         out,
		interactive: interactive,
		width:       width,
		order:       append([]string(nil), layerIDs...),
		states:      make(map[string]model.AnalysisState, len(layerIDs)),
		printed:     make(map[string]model.AnalysisStatus, len(layerIDs)),
	}
}

func (r *Renderer) Interactive() bool {
	return r.interactive
}

func (r *Renderer) Update(layerID string, s model.AnalysisState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[layerID]; !ok && !r.known(layerID) {
		r.order = append(r.order, layerID)
	}
	r.states[layerID] = s

	if r.interactive {
		r.redraw()
		return
	}

	// Plain output gets one line per discovered total and per terminal state.
	key := s.Status
	if s.Status == model.AnalysisLoading {
		if _, known := s.Total(); !known {
			return
		}
		key = "total"
	}
	if r.printed[layerID] == key {
		return
	}
	r.printed[layerID] = key
	_, _ = fmt.Fprintln(r.out, Line(layerID, s, r.width))
}

func (r *Renderer) known(layerID string) bool {
	for _, id := range r.order {
		if id == layerID {
			return true
		}
	}
	return false
}

func (r *Renderer) redraw() {
	var b strings.Builder
	if r.drawn > 0 {
		fmt.Fprintf(&b, cursorUp, r.drawn)
	}
	lines := 0
	for _, id := range r.order {
		s, ok := r.states[id]
		if !ok {
			s = model.AnalysisState{Status: model.AnalysisLoading}
		}
		b.WriteString("\r" + clearLine + Line(id, s, r.width) + "\n")
		lines++
	}
	r.drawn = lines
	_, _ = io.WriteString(r.out, b.String())
}

// Finish draws the final frame of an interactive renderer.
func (r *Renderer) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.interactive && len(r.states) > 0 {
		r.redraw()
	}
	r.drawn = 0
}
