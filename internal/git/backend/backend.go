package backend

// Backend drives the multi-step workflows that need a full merge machinery.
//
// The default implementation shells out to the git executable, but the interface
// allows alternative implementations (e.g. pure-Go) without changing callers.
// Failed commands leave whatever state git left behind; callers re-read the
// repository state to tell a conflict apart from a hard failure.
type Backend interface {
	Merge(rev string, opts MergeOptions) error
	Rebase(upstream string) error
	RebaseContinue() error
	Abort(op Operation) error

	StashPush(opts StashOptions) error
	StashApply(rev string) error
	StashDrop(index int) error
}

type MergeOptions struct {
	FastForwardOnly bool
	NoFastForward   bool
}

type StashOptions struct {
	Message          string
	IncludeUntracked bool
	// KeepIndex leaves staged changes in place after stashing them.
	KeepIndex bool
}

// Operation names the workflow an abort applies to.
type Operation uint8

const (
	OpMerge Operation = iota
	OpRebase
	OpRevert
	OpCherryPick
	OpBisect
)

func (op Operation) String() string {
	switch op {
	case OpMerge:
		return "merge"
	case OpRebase:
		return "rebase"
	case OpRevert:
		return "revert"
	case OpCherryPick:
		return "cherry-pick"
	case OpBisect:
		return "bisect"
	default:
		return "unknown"
	}
}
