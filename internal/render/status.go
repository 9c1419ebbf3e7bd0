// Package render formats stencil output: Thor-style status lines while a
// recipe applies, and the plan and journal views.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/NielsdaWheelz/stencil/internal/config"
)

// statusWidth right-aligns action verbs the way Rails generators do.
const statusWidth = 12

var (
	colorCreate    = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorIdentical = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorSkip      = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorRemove    = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
)

func actionColor(action string) lipgloss.TerminalColor {
	switch action {
	case "identical":
		return colorIdentical
	case "skip", "force", "conflict":
		return colorSkip
	case "remove", "error":
		return colorRemove
	}
	return colorCreate
}

// Printer writes status lines. It satisfies applier.Reporter.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
	r  *lipgloss.Renderer
}

// NewPrinter returns a printer on w. Without color, output is plain text.
func NewPrinter(w io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{w: w, r: r}
}

// Status writes "<padded action>  <subject>".
func (p *Printer) Status(action, subject string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pad := ""
	if n := statusWidth - len(action); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	verb := p.r.NewStyle().Bold(true).Foreground(actionColor(action)).Render(action)
	fmt.Fprintf(p.w, "%s%s  %s\n", pad, verb, subject)
}

// Say writes message as-is.
func (p *Printer) Say(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, message)
}

// Muted renders s in a dim style, used for plan annotations.
func (p *Printer) Muted(s string) string {
	return p.r.NewStyle().Faint(true).Render(s)
}

// ColorEnabled decides whether to colour output on f.
// mode is a ui.color value; noColor is the --no-color flag. Auto honours NO_COLOR
// and colours only terminals.
func ColorEnabled(mode string, noColor bool, f *os.File) bool {
	if noColor {
		return false
	}
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
