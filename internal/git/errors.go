package git

import (
	"errors"
	"fmt"
)

var (
	// ErrHunkApply indicates a hunk or line selection no longer matches the
	// content it was computed from.
	ErrHunkApply = errors.New("hunk does not apply")

	// ErrNotFastForwardable indicates the branch has diverged from its target.
	ErrNotFastForwardable = errors.New("not fast-forwardable")

	// ErrInvalidStartPoint indicates a log start commit does not exist.
	ErrInvalidStartPoint = errors.New("invalid start point")

	// ErrNoOperationInProgress indicates abort was requested on a clean repository.
	ErrNoOperationInProgress = errors.New("no operation in progress")

	// ErrOperationInProgress indicates a merge, rebase or similar workflow is pending.
	ErrOperationInProgress = errors.New("operation in progress")

	// ErrUnresolvedConflicts indicates the index still holds conflict stages.
	ErrUnresolvedConflicts = errors.New("unresolved conflicts")

	// ErrNoUpstream indicates the branch has no configured upstream.
	ErrNoUpstream = errors.New("no upstream configured")

	// ErrIndexLocked indicates another writer holds index.lock.
	ErrIndexLocked = errors.New("index is locked")

	// ErrBinaryFile indicates a line or hunk operation on a file without a text diff.
	ErrBinaryFile = errors.New("binary file")

	// ErrFileNotFound indicates the path is in neither the index nor the working tree.
	ErrFileNotFound = errors.New("file not found")

	// ErrNothingToStash indicates a stash was requested without local changes.
	ErrNothingToStash = errors.New("no local changes to save")

	// ErrStashNotFound indicates the id is not on the stash list.
	ErrStashNotFound = errors.New("stash not found")

	// ErrUnbornHead indicates HEAD has no commit yet.
	ErrUnbornHead = errors.New("HEAD has no commits")

	// ErrCancelled indicates a progress callback cancelled a transport operation.
	ErrCancelled = errors.New("operation cancelled")
)

// HunkApplyError describes where a stale hunk failed to apply.
type HunkApplyError struct {
	Path   string
	Line   int
	Reason string
}

func (e *HunkApplyError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d: %s", ErrHunkApply, e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrHunkApply, e.Path, e.Reason)
}

func (e *HunkApplyError) Unwrap() error { return ErrHunkApply }

func hunkApplyErr(path string, line int, reason string) error {
	return &HunkApplyError{Path: path, Line: line, Reason: reason}
}
