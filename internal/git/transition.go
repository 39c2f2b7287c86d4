package git

import (
	"fmt"

	gitbackend "github.com/thiagokokada/gitk-sync/internal/git/backend"
)

type workflowOp uint8

const (
	opMerge workflowOp = iota
	opFastForward
	opRebase
	opMergeCommit
	opContinueRebase
	opAbort
	opStash
	opAmend
)

func (op workflowOp) String() string {
	switch op {
	case opMerge:
		return "merge"
	case opFastForward:
		return "fast-forward"
	case opRebase:
		return "rebase"
	case opMergeCommit:
		return "merge commit"
	case opContinueRebase:
		return "continue rebase"
	case opAbort:
		return "abort"
	case opStash:
		return "stash"
	case opAmend:
		return "amend"
	default:
		return fmt.Sprintf("workflowOp(%d)", uint8(op))
	}
}

// checkTransition reports whether op may start from a repository in state kind.
// It does not look at the repository; callers read the state fresh beforehand.
func checkTransition(kind StateKind, op workflowOp) error {
	switch op {
	case opMerge, opFastForward, opRebase, opStash, opAmend:
		if kind != StateClean {
			return fmt.Errorf("%s: %w (%s)", op, ErrOperationInProgress, kind)
		}
	case opMergeCommit:
		if kind != StateMerge {
			return fmt.Errorf("%s: repository is in %s state, want merge", op, kind)
		}
	case opContinueRebase:
		if kind != StateRebase {
			return fmt.Errorf("%s: repository is in %s state, want rebase", op, kind)
		}
	case opAbort:
		if kind == StateClean {
			return ErrNoOperationInProgress
		}
	default:
		return fmt.Errorf("unknown operation %s", op)
	}
	return nil
}

// abortOperation maps an in-progress state to the backend abort it needs.
func abortOperation(kind StateKind) (gitbackend.Operation, bool) {
	switch kind {
	case StateMerge:
		return gitbackend.OpMerge, true
	case StateRebase:
		return gitbackend.OpRebase, true
	case StateRevert:
		return gitbackend.OpRevert, true
	case StateCherryPick:
		return gitbackend.OpCherryPick, true
	case StateBisect:
		return gitbackend.OpBisect, true
	default:
		return 0, false
	}
}
