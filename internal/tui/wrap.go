package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type cell struct {
	r       rune
	width   int
	isSpace bool
}

// wrapText breaks s into lines no wider than width display columns, preferring
// to break at spaces. Wide runes (CJK subject names, task text) count double.
func wrapText(s string, width int) []string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return []string{s}
	}
	cells := make([]cell, 0, len(s))
	for _, r := range s {
		cells = append(cells, cell{r: r, width: runewidth.RuneWidth(r), isSpace: r == ' '})
	}

	var out []string
	line := make([]cell, 0, len(cells))
	lineWidth := 0
	lastSpace := -1
	for i := 0; i < len(cells); {
		c := cells[i]
		if lineWidth+c.width > width && len(line) > 0 {
			if c.isSpace {
				out = append(out, cellString(line))
				line = line[:0]
				lineWidth, lastSpace = 0, -1
				i++
				continue
			}
			if lastSpace >= 0 {
				out = append(out, cellString(line[:lastSpace]))
				line = append([]cell{}, line[lastSpace+1:]...)
			} else {
				out = append(out, cellString(line))
				line = line[:0]
			}
			lineWidth = cellWidth(line)
			lastSpace = lastSpaceIndex(line)
			continue
		}
		line = append(line, c)
		lineWidth += c.width
		if c.isSpace {
			lastSpace = len(line) - 1
		}
		i++
	}
	return append(out, cellString(line))
}

func cellString(cells []cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteRune(c.r)
	}
	return b.String()
}

func cellWidth(cells []cell) int {
	total := 0
	for _, c := range cells {
		total += c.width
	}
	return total
}

func lastSpaceIndex(cells []cell) int {
	for i := len(cells) - 1; i >= 0; i-- {
		if cells[i].isSpace {
			return i
		}
	}
	return -1
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
