package dashboard

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const columnGap = "  "

// formatTable lays out headers and rows in aligned columns followed by a rule under the header.
// Columns in rightAlign are padded on the left.
func formatTable(headers []string, rows [][]string, rightAlign map[int]bool) []string {
	widths := columnWidths(headers, rows)
	if len(widths) == 0 {
		return nil
	}
	lines := make([]string, 0, len(rows)+2)
	if len(headers) > 0 {
		lines = append(lines, joinCells(headers, widths, rightAlign))
		rules := make([]string, len(widths))
		for i, w := range widths {
			rules[i] = strings.Repeat("-", w)
		}
		lines = append(lines, strings.Join(rules, columnGap))
	}
	for _, row := range rows {
		lines = append(lines, joinCells(row, widths, rightAlign))
	}
	return lines
}

func columnWidths(headers []string, rows [][]string) []int {
	count := len(headers)
	for _, row := range rows {
		count = max(count, len(row))
	}
	widths := make([]int, count)
	measure := func(cells []string) {
		for i, cell := range cells {
			widths[i] = max(widths[i], displayWidth(cell))
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}
	return widths
}

func joinCells(cells []string, widths []int, rightAlign map[int]bool) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = pad(cell, w, rightAlign[i])
	}
	return strings.TrimRight(strings.Join(parts, columnGap), " ")
}

func pad(value string, width int, right bool) string {
	gap := width - displayWidth(value)
	if gap <= 0 {
		return value
	}
	if right {
		return strings.Repeat(" ", gap) + value
	}
	return value + strings.Repeat(" ", gap)
}

// displayWidth counts terminal cells so that CJK subject names line up.
func displayWidth(value string) int {
	return runewidth.StringWidth(value)
}
