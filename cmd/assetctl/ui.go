package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"assetgraph/internal/asset"
)

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "2", Dark: "2"}
	colorError   = lipgloss.AdaptiveColor{Light: "1", Dark: "1"}
	colorPrimary = lipgloss.AdaptiveColor{Light: "5", Dark: "5"}
	colorWarning = lipgloss.AdaptiveColor{Light: "3", Dark: "3"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "4", Dark: "4"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "8", Dark: "8"}

	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(colorAccent)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleTitle   = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Underline(true)
	styleHeader  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	styleKey     = lipgloss.NewStyle().Foreground(colorAccent)
	stylePlain   = lipgloss.NewStyle()

	iconOK   = "✔"
	iconFail = "✘"
	iconSkip = "·"
)

// statusStyle colours a lifecycle status: failures red, work in progress
// yellow, persisted green.
func statusStyle(s asset.Status) lipgloss.Style {
	switch {
	case s.Failed():
		return styleError
	case s.InProgress():
		return styleWarning
	case s == asset.StatusPersisted:
		return styleSuccess
	case s == asset.StatusMaterialized:
		return styleInfo
	default:
		return styleMuted
	}
}

// table renders aligned columns, each row coloured by its status.
type table struct {
	headers []string
	rows    [][]string
	styles  []lipgloss.Style
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) addRow(status asset.Status, cells ...string) {
	t.rows = append(t.rows, cells)
	t.styles = append(t.styles, statusStyle(status))
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	fmt.Fprintln(w, styleHeader.Render(t.line(t.headers, widths)))
	for i, row := range t.rows {
		// Only the status column carries colour, so alignment survives.
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = pad(cell, widths[j])
			if t.headers[j] == "STATUS" {
				cells[j] = t.styles[i].Render(cells[j])
			}
		}
		fmt.Fprintln(w, stylePlain.Render(strings.TrimRight(strings.Join(cells, "  "), " ")))
	}
}

func (t *table) line(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = pad(c, widths[i])
	}
	return strings.TrimRight(strings.Join(padded, "  "), " ")
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func keyValue(key, value string) string {
	return styleKey.Render(pad(key, 13)) + value
}

// ago renders t relative to now, or "never" for the zero time.
func ago(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// span renders a phase as "<start> (took <duration>)".
func span(start, stop *time.Time) string {
	switch {
	case start == nil:
		return "never"
	case stop == nil || stop.Before(*start):
		return ago(*start) + ", running"
	default:
		return fmt.Sprintf("%s (took %s)", ago(*start), stop.Sub(*start).Round(time.Millisecond))
	}
}
