package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"msgtrack/pkg/ledger"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// eventPrinter writes ledger events one per line, colouring the kind column
// when the destination is a terminal.
type eventPrinter struct {
	w      io.Writer
	color  bool
	kinds  map[ledger.Kind]lipgloss.Style
	subtle lipgloss.Style
}

func newEventPrinter(w io.Writer) *eventPrinter {
	return &eventPrinter{
		w:     w,
		color: isTerminal(w),
		kinds: map[ledger.Kind]lipgloss.Style{
			ledger.KindInsight:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")), // Blue
			ledger.KindResponse: lipgloss.NewStyle().Foreground(lipgloss.Color("10")), // Green
			ledger.KindError:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		},
		subtle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *eventPrinter) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// print writes a single event in a human-readable format.
func (p *eventPrinter) print(e *ledger.Event) {
	elapsed := "-"
	if e.ElapsedSeconds != nil {
		elapsed = fmt.Sprintf("%.2fs", *e.ElapsedSeconds)
	}

	subject := e.SubjectID
	if e.ParticipantKind != "" {
		subject += " (" + e.ParticipantKind + ")"
	}

	var b strings.Builder
	b.WriteString(p.style(p.subtle, e.Timestamp.Format(ledger.TimeLayout)))
	fmt.Fprintf(&b, " [%s] %s %-10s %-20s %7s  %s",
		e.CorrelationID,
		p.style(p.kinds[e.Kind], fmt.Sprintf("%-8s", e.Kind)),
		e.Status,
		subject,
		elapsed,
		e.Content,
	)
	if e.ErrorDetail != "" && e.ErrorDetail != e.Content {
		b.WriteString(p.style(p.kinds[ledger.KindError], " error: "+e.ErrorDetail))
	}
	fmt.Fprintln(p.w, b.String())
}
