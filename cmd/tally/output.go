package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// outputStyles renders CLI outcome lines for one writer's color profile.
type outputStyles struct {
	ok     lipgloss.Style
	muted  lipgloss.Style
	warn   lipgloss.Style
	header lipgloss.Style
	cell   lipgloss.Style
	border lipgloss.Style
}

func newOutputStyles(w io.Writer) outputStyles {
	r := lipgloss.NewRenderer(w)
	return outputStyles{
		ok:     r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("245")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		header: r.NewStyle().Bold(true).Padding(0, 1),
		cell:   r.NewStyle().Padding(0, 1),
		border: r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// done prints one success line with an optional muted detail.
func (s outputStyles) done(w io.Writer, msg, detail string) {
	line := s.ok.Render("✓") + " " + msg
	if detail != "" {
		line += " " + s.muted.Render(detail)
	}
	_, _ = fmt.Fprintln(w, line)
}

func (s outputStyles) warning(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, s.warn.Render("!")+" "+msg)
}

// printTable renders rows as a bordered table, or a muted placeholder when empty.
func (s outputStyles) printTable(w io.Writer, empty string, headers []string, rows [][]string) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, s.muted.Render(empty))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		})
	_, _ = fmt.Fprintln(w, t.Render())
}

func optionalInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func signedInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+d", *v)
}
