package dashboard

import "testing"

func TestFormatTableAlignsWideRunes(t *testing.T) {
	headers := []string{"#", "Time", "Mon"}
	rows := [][]string{
		{"1", "08:50-09:40", "数学"},
		{"10", "09:50-10:40", "---"},
	}
	lines := formatTable(headers, rows, map[int]bool{0: true})
	want := []string{
		" #  Time         Mon",
		"--  -----------  ----",
		" 1  08:50-09:40  数学",
		"10  09:50-10:40  ---",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestFormatTableEmpty(t *testing.T) {
	if lines := formatTable(nil, nil, nil); lines != nil {
		t.Fatalf("expected no lines, got %v", lines)
	}
}
