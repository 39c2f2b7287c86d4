package git

import (
	"reflect"
	"testing"
)

func TestSplitLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "terminated", in: "a\nb\n", want: []string{"a\n", "b\n"}},
		{name: "no_final_newline", in: "a\nb", want: []string{"a\n", "b"}},
		{name: "blank_lines", in: "\n\n", want: []string{"\n", "\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := splitLines(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("splitLines(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJoinLines_TerminatesInnerLines(t *testing.T) {
	t.Parallel()

	got := joinLines([]string{"a", "b\n", "c"})
	if got != "a\nb\nc" {
		t.Fatalf("joinLines = %q", got)
	}
}

func TestComputeHunks_SingleChange(t *testing.T) {
	t.Parallel()

	a := splitLines(numberedLines(10))
	b := splitLines(replaceLine(numberedLines(10), 5, "five"))
	hunks := computeHunks(a, b, 3)
	if len(hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(hunks))
	}
	h := hunks[0]
	if got := h.Header(); got != "@@ -2,7 +2,7 @@" {
		t.Fatalf("Header() = %q", got)
	}
	var removed, added DiffLine
	for _, l := range h.Lines {
		switch l.Origin {
		case LineRemoved:
			removed = l
		case LineAdded:
			added = l
		}
	}
	if removed.Content != "line 5" || removed.OldLineNo != 5 || removed.NewLineNo != 0 {
		t.Fatalf("unexpected removed line %+v", removed)
	}
	if added.Content != "five" || added.NewLineNo != 5 || added.OldLineNo != 0 {
		t.Fatalf("unexpected added line %+v", added)
	}
	if len(h.Lines) != 8 {
		t.Fatalf("expected 6 context lines plus 2 changes, got %d lines", len(h.Lines))
	}
}

func TestComputeHunks_SplitsDistantChanges(t *testing.T) {
	t.Parallel()

	content := numberedLines(20)
	b := replaceLine(replaceLine(content, 2, "two"), 18, "eighteen")
	hunks := computeHunks(splitLines(content), splitLines(b), 3)
	if len(hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(hunks))
	}
	if hunks[1].OldStart != 15 || hunks[1].NewStart != 15 {
		t.Fatalf("unexpected second hunk %s", hunks[1].Header())
	}
}

func TestComputeHunks_NewFile(t *testing.T) {
	t.Parallel()

	hunks := computeHunks(nil, []string{"x\n"}, 3)
	if len(hunks) != 1 {
		t.Fatalf("expected 1 hunk, got %d", len(hunks))
	}
	if got := hunks[0].Header(); got != "@@ -0,0 +1 @@" {
		t.Fatalf("Header() = %q", got)
	}
}

func TestComputeHunks_Identical(t *testing.T) {
	t.Parallel()

	lines := splitLines(numberedLines(3))
	if hunks := computeHunks(lines, lines, 3); hunks != nil {
		t.Fatalf("expected no hunks, got %+v", hunks)
	}
}

func TestFullDiffLines_NoNewlineAtEOF(t *testing.T) {
	t.Parallel()

	lines := fullDiffLines(splitLines("x\ny"), splitLines("x\ny\n"))
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %+v", lines)
	}
	if lines[1].Origin != LineRemoved || !lines[1].NoNewline || lines[1].Content != "y" {
		t.Fatalf("unexpected removed line %+v", lines[1])
	}
	if lines[2].Origin != LineAdded || lines[2].NoNewline {
		t.Fatalf("unexpected added line %+v", lines[2])
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	a := numberedLines(10)
	if got := similarity(a, a); got != 100 {
		t.Fatalf("similarity(a, a) = %d", got)
	}
	if got := similarity(a, replaceLine(a, 3, "changed")); got != 90 {
		t.Fatalf("similarity after one change = %d, want 90", got)
	}
	if got := similarity(a, "unrelated\n"); got != 0 {
		t.Fatalf("similarity of unrelated content = %d", got)
	}
}
