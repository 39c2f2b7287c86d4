package git

import (
	"errors"
	"testing"

	gitbackend "github.com/thiagokokada/gitk-sync/internal/git/backend"
)

type fakeBackend struct {
	mergeFunc          func(rev string, opts gitbackend.MergeOptions) error
	rebaseFunc         func(upstream string) error
	rebaseContinueFunc func() error
	abortFunc          func(op gitbackend.Operation) error
	stashPushFunc      func(opts gitbackend.StashOptions) error

	lastMergeRev  string
	lastMergeOpts gitbackend.MergeOptions
	lastAbort     *gitbackend.Operation
}

func (f *fakeBackend) Merge(rev string, opts gitbackend.MergeOptions) error {
	f.lastMergeRev = rev
	f.lastMergeOpts = opts
	if f.mergeFunc != nil {
		return f.mergeFunc(rev, opts)
	}
	return errors.New("unexpected Merge call")
}

func (f *fakeBackend) Rebase(upstream string) error {
	if f.rebaseFunc != nil {
		return f.rebaseFunc(upstream)
	}
	return errors.New("unexpected Rebase call")
}

func (f *fakeBackend) RebaseContinue() error {
	if f.rebaseContinueFunc != nil {
		return f.rebaseContinueFunc()
	}
	return errors.New("unexpected RebaseContinue call")
}

func (f *fakeBackend) Abort(op gitbackend.Operation) error {
	f.lastAbort = &op
	if f.abortFunc != nil {
		return f.abortFunc(op)
	}
	return errors.New("unexpected Abort call")
}

func (f *fakeBackend) StashPush(opts gitbackend.StashOptions) error {
	if f.stashPushFunc != nil {
		return f.stashPushFunc(opts)
	}
	return errors.New("unexpected StashPush call")
}

func (f *fakeBackend) StashApply(string) error { return errors.New("unexpected StashApply call") }

func (f *fakeBackend) StashDrop(int) error { return errors.New("unexpected StashDrop call") }

// useFakeBackend swaps the backend for the rest of the test. Callers must not
// call t.Parallel.
func useFakeBackend(t *testing.T, fake *fakeBackend) {
	t.Helper()
	prev := newBackend
	newBackend = func(string) (gitbackend.Backend, error) {
		return fake, nil
	}
	t.Cleanup(func() {
		newBackend = prev
	})
}
