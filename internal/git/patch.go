package git

// locate finds needle in lines, starting at hint and searching outward so an
// offset introduced by unrelated edits above the hunk is tolerated. It
// returns -1 when needle does not occur.
func locate(lines, needle []string, hint int) int {
	maxStart := len(lines) - len(needle)
	if maxStart < 0 {
		return -1
	}
	hint = min(max(hint, 0), maxStart)
	if len(needle) == 0 {
		return hint
	}
	for off := 0; hint-off >= 0 || hint+off <= maxStart; off++ {
		if i := hint - off; i >= 0 && matchAt(lines, needle, i) {
			return i
		}
		if i := hint + off; off > 0 && i <= maxStart && matchAt(lines, needle, i) {
			return i
		}
	}
	return -1
}

func matchAt(lines, needle []string, at int) bool {
	for i, l := range needle {
		if lines[at+i] != l {
			return false
		}
	}
	return true
}

// applyHunk replaces the hunk's pre-image with its post-image in base, or the
// other way around when reverse is set. ok is false when the expected image is
// not found.
func applyHunk(base []string, h Hunk, reverse bool) (out []string, ok bool) {
	from, to, hint := h.preImage(), h.postImage(), h.oldIndex()
	if reverse {
		from, to, hint = to, from, h.newIndex()
	}
	at := locate(base, from, hint)
	if at < 0 {
		return nil, false
	}
	out = make([]string, 0, len(base)-len(from)+len(to))
	out = append(out, base[:at]...)
	out = append(out, to...)
	out = append(out, base[at+len(from):]...)
	return out, true
}

type lineKey struct {
	origin LineOrigin
	oldNo  int
	newNo  int
}

func keyOf(l DiffLine) lineKey {
	return lineKey{origin: l.Origin, oldNo: l.OldLineNo, newNo: l.NewLineNo}
}

// selectLines matches the requested lines against a freshly computed full
// diff. Context lines are ignored; a line that is missing or whose content
// changed makes the whole selection stale.
func selectLines(path string, full, requested []DiffLine) (map[lineKey]bool, error) {
	byKey := make(map[lineKey]DiffLine, len(full))
	for _, l := range full {
		byKey[keyOf(l)] = l
	}
	selected := make(map[lineKey]bool, len(requested))
	for _, req := range requested {
		if req.Origin == LineContext {
			continue
		}
		cur, ok := byKey[keyOf(req)]
		lineNo := req.NewLineNo
		if req.Origin == LineRemoved {
			lineNo = req.OldLineNo
		}
		if !ok {
			return nil, hunkApplyErr(path, lineNo, "line no longer present in diff")
		}
		if cur.Content != req.Content || cur.NoNewline != req.NoNewline {
			return nil, hunkApplyErr(path, lineNo, "line content changed")
		}
		selected[keyOf(req)] = true
	}
	return selected, nil
}

// applySelection rebuilds the old side of full with only the selected lines
// applied. In reverse it rebuilds the new side with the selected lines undone.
// A kept line without a newline can only stay last: when the selection would
// put another line after it, the unselected newline change would be applied
// too, so the selection is refused.
func applySelection(path string, full []DiffLine, selected map[lineKey]bool, reverse bool) ([]string, error) {
	var out []string
	var open *DiffLine
	for _, l := range full {
		sel := selected[keyOf(l)]
		keep := false
		switch l.Origin {
		case LineContext:
			keep = true
		case LineRemoved:
			keep = sel == reverse
		case LineAdded:
			keep = sel != reverse
		}
		if !keep {
			continue
		}
		if open != nil {
			lineNo := open.OldLineNo
			if open.Origin == LineAdded {
				lineNo = open.NewLineNo
			}
			return nil, hunkApplyErr(path, lineNo, "selection needs the unselected newline change")
		}
		out = append(out, l.raw())
		if l.NoNewline {
			open = &l
		}
	}
	return out, nil
}
