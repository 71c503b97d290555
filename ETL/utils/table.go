package utils

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table is a plain-text table aligned by display width, so provider and
// zone names with accents or wide characters keep their columns
type Table struct {
	Header []string
	Rows   [][]string
}

// AddRow appends a row; missing cells render empty
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

func (t *Table) widths() []int {
	cols := len(t.Header)
	for _, row := range t.Rows {
		cols = max(cols, len(row))
	}
	widths := make([]int, cols)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	measure(t.Header)
	for _, row := range t.Rows {
		measure(row)
	}
	return widths
}

// Render writes the table to w
func (t *Table) Render(w io.Writer) error {
	widths := t.widths()

	line := func(row []string) string {
		cells := make([]string, len(widths))
		for i, width := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = runewidth.FillRight(cell, width)
		}
		return strings.TrimRight(strings.Join(cells, "  "), " ")
	}

	var b strings.Builder
	if len(t.Header) > 0 {
		b.WriteString(line(t.Header))
		b.WriteByte('\n')
		rule := make([]string, len(widths))
		for i, width := range widths {
			rule[i] = strings.Repeat("-", width)
		}
		b.WriteString(strings.Join(rule, "  "))
		b.WriteByte('\n')
	}
	for _, row := range t.Rows {
		b.WriteString(line(row))
		b.WriteByte('\n')
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}
