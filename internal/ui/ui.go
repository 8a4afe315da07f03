// Package ui renders resolved links and failures for the terminal.
// When a stream is not a terminal, output is plain text with no styling
// so links can be piped into other tools.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"zippyst/internal/extract"
	"zippyst/internal/media"
)

// Printer writes results to stdout and failures to stderr.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	tty    bool

	link    lipgloss.Style
	detail  lipgloss.Style
	failure lipgloss.Style
	source  lipgloss.Style
}

// New creates a Printer, styling output only for terminals.
func New(out, errOut io.Writer) *Printer {
	outR := lipgloss.NewRenderer(out)
	errR := lipgloss.NewRenderer(errOut)

	return &Printer{
		out:     out,
		errOut:  errOut,
		tty:     IsTerminal(out),
		link:    outR.NewStyle().Foreground(lipgloss.Color("12")).Underline(true),
		detail:  outR.NewStyle().Faint(true),
		failure: errR.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		source:  errR.NewStyle().Faint(true),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Link prints one resolved link. Terminals also get the decoded name.
func (p *Printer) Link(link string, file *media.File) {
	if !p.tty {
		fmt.Fprintln(p.out, link)
		return
	}
	fmt.Fprintf(p.out, "%s  %s\n", p.link.Render(link), p.detail.Render(file.Name))
}

// Failure prints why source could not be resolved.
func (p *Printer) Failure(source string, err error) {
	fmt.Fprintf(p.errOut, "%s %s\n", p.source.Render(source+":"), p.failure.Render(err.Error()))
}

// Status prints an informational line to stderr.
func (p *Printer) Status(format string, args ...any) {
	fmt.Fprintf(p.errOut, format+"\n", args...)
}

// Schemes lists the scheme inventory in priority order.
func (p *Printer) Schemes(schemes []extract.Scheme) {
	width := 0
	for _, s := range schemes {
		width = max(width, len(s.Name))
	}
	for i, s := range schemes {
		name := fmt.Sprintf("%-*s", width, s.Name)
		fmt.Fprintf(p.out, "%d. %s  %s\n", i+1, name, p.detail.Render(s.Description))
	}
}

// History lists resolved-link history entries.
func (p *Printer) History(entries []media.HistoryEntry) {
	for i, line := range FormatHistory(entries) {
		if !p.tty {
			fmt.Fprintln(p.out, line)
			continue
		}
		e := entries[i]
		fmt.Fprintf(p.out, "%s  %s\n", p.link.Render(e.File.FullLink()), p.detail.Render(historyDetail(e)))
	}
}

// FormatHistory creates one plain display line per entry.
func FormatHistory(entries []media.HistoryEntry) []string {
	items := make([]string, 0, len(entries))
	for _, e := range entries {
		items = append(items, strings.Join([]string{e.File.FullLink(), historyDetail(e)}, "\t"))
	}
	return items
}

func historyDetail(e media.HistoryEntry) string {
	detail := e.File.Name
	if !e.ResolvedAt.IsZero() {
		detail += " (" + e.ResolvedAt.Local().Format("2006-01-02 15:04") + ")"
	}
	return detail + " <- " + e.Source
}
