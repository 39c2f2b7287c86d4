package git

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

type LineOrigin uint8

const (
	LineContext LineOrigin = iota
	LineAdded
	LineRemoved
)

func (o LineOrigin) String() string {
	switch o {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	default:
		return " "
	}
}

// DiffLine is one line of a hunk. Content excludes the line terminator;
// NoNewline marks a final line that had none. OldLineNo is zero for added
// lines and NewLineNo is zero for removed lines.
type DiffLine struct {
	Origin    LineOrigin
	Content   string
	OldLineNo int
	NewLineNo int
	NoNewline bool
}

func (l DiffLine) raw() string {
	if l.NoNewline {
		return l.Content
	}
	return l.Content + "\n"
}

// Hunk is a contiguous block of changes. Following unified diff convention,
// a zero-length range starts at the line before the change.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []DiffLine
}

func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%s +%s @@", formatRange(h.OldStart, h.OldLines), formatRange(h.NewStart, h.NewLines))
}

func formatRange(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// preImage returns the lines the hunk expects on its old side.
func (h Hunk) preImage() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Origin != LineAdded {
			out = append(out, l.raw())
		}
	}
	return out
}

// postImage returns the lines the hunk produces on its new side.
func (h Hunk) postImage() []string {
	var out []string
	for _, l := range h.Lines {
		if l.Origin != LineRemoved {
			out = append(out, l.raw())
		}
	}
	return out
}

// oldIndex is the 0-based position of the hunk's first old-side line.
func (h Hunk) oldIndex() int {
	if h.OldLines == 0 {
		return h.OldStart
	}
	return h.OldStart - 1
}

func (h Hunk) newIndex() int {
	if h.NewLines == 0 {
		return h.NewStart
	}
	return h.NewStart - 1
}

func (h Hunk) counts() (added, removed int) {
	for _, l := range h.Lines {
		switch l.Origin {
		case LineAdded:
			added++
		case LineRemoved:
			removed++
		}
	}
	return added, removed
}

// splitLines splits content keeping each line's terminator, so a missing
// final newline stays visible to the comparison.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// joinLines concatenates lines, terminating any unterminated line that is not
// the last one so two lines never merge.
func joinLines(lines []string) string {
	var b strings.Builder
	for i, l := range lines {
		b.WriteString(l)
		if i < len(lines)-1 && !strings.HasSuffix(l, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func newDiffLine(raw string, origin LineOrigin, oldNo, newNo int) DiffLine {
	content, found := strings.CutSuffix(raw, "\n")
	return DiffLine{
		Origin:    origin,
		Content:   content,
		OldLineNo: oldNo,
		NewLineNo: newNo,
		NoNewline: !found,
	}
}

func lineMatcher(a, b []string) *difflib.SequenceMatcher {
	// autojunk would treat frequent lines (blank lines, braces) as noise.
	return difflib.NewMatcherWithJunk(a, b, false, nil)
}

// computeHunks groups the line differences of a and b into hunks with the
// given number of context lines.
func computeHunks(a, b []string, context int) []Hunk {
	if context < 0 {
		context = 0
	}
	if equalLines(a, b) {
		return nil
	}
	var hunks []Hunk
	for _, group := range lineMatcher(a, b).GetGroupedOpCodes(context) {
		if !hasChange(group) {
			continue
		}
		first, last := group[0], group[len(group)-1]
		h := Hunk{
			OldStart: first.I1 + 1,
			OldLines: last.I2 - first.I1,
			NewStart: first.J1 + 1,
			NewLines: last.J2 - first.J1,
		}
		if h.OldLines == 0 {
			h.OldStart = first.I1
		}
		if h.NewLines == 0 {
			h.NewStart = first.J1
		}
		h.Lines = opLines(a, b, group)
		hunks = append(hunks, h)
	}
	return hunks
}

// fullDiffLines returns every line of a and b tagged as context, added or
// removed, in file order.
func fullDiffLines(a, b []string) []DiffLine {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	return opLines(a, b, lineMatcher(a, b).GetOpCodes())
}

func opLines(a, b []string, ops []difflib.OpCode) []DiffLine {
	var lines []DiffLine
	for _, op := range ops {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2 && i < len(a); i++ {
				j := op.J1 + (i - op.I1)
				lines = append(lines, newDiffLine(a[i], LineContext, i+1, j+1))
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				lines = append(lines, newDiffLine(a[i], LineRemoved, i+1, 0))
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				lines = append(lines, newDiffLine(b[j], LineAdded, 0, j+1))
			}
		case 'r':
			for i := op.I1; i < op.I2; i++ {
				lines = append(lines, newDiffLine(a[i], LineRemoved, i+1, 0))
			}
			for j := op.J1; j < op.J2; j++ {
				lines = append(lines, newDiffLine(b[j], LineAdded, 0, j+1))
			}
		}
	}
	return lines
}

func hasChange(ops []difflib.OpCode) bool {
	for _, op := range ops {
		if op.Tag != 'e' {
			return true
		}
	}
	return false
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// similarity scores two contents from 0 to 100 by matching lines.
func similarity(a, b string) int {
	la, lb := splitLines(a), splitLines(b)
	if len(la) == 0 && len(lb) == 0 {
		return 100
	}
	return int(lineMatcher(la, lb).Ratio() * 100)
}
