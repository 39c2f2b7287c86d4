package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

// captureTimers replaces afterFunc with one that records callbacks instead of
// scheduling them.
func captureTimers(t *testing.T) *[]func() {
	t.Helper()
	orig := afterFunc
	t.Cleanup(func() { afterFunc = orig })

	var callbacks []func()
	afterFunc = func(_ time.Duration, f func()) *time.Timer {
		callbacks = append(callbacks, f)
		timer := time.NewTimer(time.Hour)
		timer.Stop()
		return timer
	}
	return &callbacks
}

func TestDebouncer_IgnoresSupersededCallback(t *testing.T) {
	callbacks := captureTimers(t)

	var called atomic.Int32
	d := New(time.Second, func() { called.Add(1) })
	d.Trigger()
	d.Trigger()

	if len(*callbacks) != 2 {
		t.Fatalf("expected 2 scheduled callbacks, got %d", len(*callbacks))
	}
	(*callbacks)[0]()
	(*callbacks)[1]()
	if got := called.Load(); got != 1 {
		t.Fatalf("expected only the latest callback to run, got %d calls", got)
	}
}

func TestDebouncer_StopIgnoresPendingCallback(t *testing.T) {
	callbacks := captureTimers(t)

	var called atomic.Int32
	d := New(time.Second, func() { called.Add(1) })
	d.Trigger()
	d.Stop()

	if len(*callbacks) != 1 {
		t.Fatalf("expected a scheduled callback")
	}
	(*callbacks)[0]()
	if got := called.Load(); got != 0 {
		t.Fatalf("expected callback to be ignored after stop, got %d calls", got)
	}

	d.Trigger()
	(*callbacks)[1]()
	if got := called.Load(); got != 1 {
		t.Fatalf("trigger after stop must fire again, got %d calls", got)
	}
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var count atomic.Int32
	done := make(chan struct{})
	d := New(10*time.Millisecond, func() {
		if count.Add(1) == 1 {
			close(done)
		}
	})
	for range 5 {
		d.Trigger()
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire")
	}
	time.Sleep(30 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Fatalf("expected one invocation, got %d", got)
	}
}
