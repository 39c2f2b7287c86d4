package git

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

type ProgressPhase uint8

const (
	PhaseOther ProgressPhase = iota
	PhaseCounting
	PhaseCompressing
	PhaseReceiving
	PhaseResolving
)

func (p ProgressPhase) String() string {
	switch p {
	case PhaseCounting:
		return "counting"
	case PhaseCompressing:
		return "compressing"
	case PhaseReceiving:
		return "receiving"
	case PhaseResolving:
		return "resolving"
	default:
		return "other"
	}
}

// ProgressEvent reports transport progress. Total is zero when the remote did
// not announce one.
type ProgressEvent struct {
	Phase   ProgressPhase
	Current int
	Total   int
}

type ProgressDecision uint8

const (
	ProgressContinue ProgressDecision = iota
	ProgressCancel
)

// ProgressFunc is called synchronously from the transport. Returning
// ProgressCancel aborts the operation before any ref is updated.
type ProgressFunc func(ProgressEvent) ProgressDecision

var (
	progressCounted = regexp.MustCompile(`^([A-Za-z ]+):\s+\d+% \((\d+)/(\d+)\)`)
	progressPlain   = regexp.MustCompile(`^([A-Za-z ]+):\s+(\d+)`)
)

// progressWriter turns the sideband text of a transport into ProgressEvents.
// Server messages are split on carriage returns and newlines.
type progressWriter struct {
	mu        sync.Mutex
	fn        ProgressFunc
	cancel    context.CancelFunc
	buf       []byte
	cancelled bool
}

func newProgressWriter(fn ProgressFunc, cancel context.CancelFunc) *progressWriter {
	return &progressWriter{fn: fn, cancel: cancel}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexAny(w.buf, "\r\n")
		if i < 0 {
			break
		}
		line := string(w.buf[:i])
		w.buf = w.buf[i+1:]
		w.handle(line)
	}
	return len(p), nil
}

func (w *progressWriter) handle(line string) {
	if w.cancelled || w.fn == nil {
		return
	}
	ev, ok := parseProgressLine(line)
	if !ok {
		return
	}
	if w.fn(ev) == ProgressCancel {
		w.cancelled = true
		if w.cancel != nil {
			w.cancel()
		}
	}
}

func (w *progressWriter) wasCancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

func parseProgressLine(line string) (ProgressEvent, bool) {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "remote:"))
	if m := progressCounted.FindStringSubmatch(line); m != nil {
		cur, _ := strconv.Atoi(m[2])
		total, _ := strconv.Atoi(m[3])
		return ProgressEvent{Phase: progressPhase(m[1]), Current: cur, Total: total}, true
	}
	if m := progressPlain.FindStringSubmatch(line); m != nil {
		cur, _ := strconv.Atoi(m[2])
		return ProgressEvent{Phase: progressPhase(m[1]), Current: cur}, true
	}
	return ProgressEvent{}, false
}

func progressPhase(label string) ProgressPhase {
	label = strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.HasPrefix(label, "counting"), strings.HasPrefix(label, "enumerating"):
		return PhaseCounting
	case strings.HasPrefix(label, "compressing"):
		return PhaseCompressing
	case strings.HasPrefix(label, "receiving"):
		return PhaseReceiving
	case strings.HasPrefix(label, "resolving"):
		return PhaseResolving
	default:
		return PhaseOther
	}
}
