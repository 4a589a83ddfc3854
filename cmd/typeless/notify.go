package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
)

var (
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#718096"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53e3e"))
)

// levelStyle uses the banner palette for the terminal badge.
func levelStyle(l autofill.Level) lipgloss.Style {
	bg, _ := l.Colors()
	return lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Foreground(lipgloss.Color("#ffffff")).
		Background(lipgloss.Color(bg))
}

// terminalNotifier prints one coloured line per finished fill pass.
type terminalNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func newTerminalNotifier(w io.Writer) *terminalNotifier {
	return &terminalNotifier{w: w}
}

func (n *terminalNotifier) Notify(ctx context.Context, rep autofill.Report) {
	line := renderReport(rep)
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, line)
}

func renderReport(rep autofill.Report) string {
	level := rep.Outcome.Level()
	var b strings.Builder
	b.WriteString(levelStyle(level).Render(strings.ToUpper(string(level))))
	b.WriteString(" ")
	b.WriteString(rep.Message)
	if rep.URL != "" {
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(rep.URL))
	}
	if rep.Failed > 0 {
		b.WriteString(" ")
		b.WriteString(errorStyle.Render(fmt.Sprintf("(%d failed)", rep.Failed)))
	}
	if rep.Error != "" {
		b.WriteString("\n  ")
		b.WriteString(errorStyle.Render(rep.Error))
	}
	for _, f := range rep.Fields {
		name := f.ID
		if name == "" {
			name = f.Name
		}
		if name == "" {
			name = f.Ref
		}
		b.WriteString("\n  ")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s <- %q (%s)", name, f.Label, f.Facet)))
	}
	return b.String()
}
