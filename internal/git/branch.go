package git

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	gitbackend "github.com/thiagokokada/gitk-sync/internal/git/backend"
)

type RebaseKind uint8

const (
	RebaseUpToDate RebaseKind = iota
	RebaseFastForward
	RebaseDone
	// RebaseConflicted leaves the repository in the rebase state with the
	// conflicting commit's changes applied for resolution.
	RebaseConflicted
)

func (k RebaseKind) String() string {
	switch k {
	case RebaseUpToDate:
		return "up-to-date"
	case RebaseFastForward:
		return "fast-forward"
	case RebaseDone:
		return "done"
	case RebaseConflicted:
		return "conflicted"
	default:
		return fmt.Sprintf("RebaseKind(%d)", uint8(k))
	}
}

type RebaseResult struct {
	Kind      RebaseKind
	Commit    CommitID
	Progress  *RebaseProgress
	Conflicts []string
}

// upstreamRef resolves branch.<name>.remote and branch.<name>.merge to the
// ref tracking the upstream locally.
func (r *repoHandle) upstreamRef(branch string) (plumbing.ReferenceName, error) {
	cfg, err := r.Config()
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	b, ok := cfg.Branches[branch]
	if !ok || b.Merge == "" {
		return "", fmt.Errorf("%s: %w", branch, ErrNoUpstream)
	}
	if b.Remote == "" || b.Remote == "." {
		return b.Merge, nil
	}
	return plumbing.NewRemoteReferenceName(b.Remote, b.Merge.Short()), nil
}

func (r *repoHandle) refCommit(name plumbing.ReferenceName) (*object.Commit, error) {
	ref, err := r.Reference(name, true)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", name.Short(), err)
	}
	c, err := r.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", name.Short(), err)
	}
	return c, nil
}

// branchAndUpstream returns the tips of a local branch and its upstream.
func (r *repoHandle) branchAndUpstream(branch string) (local, upstream *object.Commit, upName plumbing.ReferenceName, err error) {
	upName, err = r.upstreamRef(branch)
	if err != nil {
		return nil, nil, "", err
	}
	if local, err = r.refCommit(plumbing.NewBranchReferenceName(branch)); err != nil {
		return nil, nil, "", err
	}
	if upstream, err = r.refCommit(upName); err != nil {
		return nil, nil, "", err
	}
	return local, upstream, upName, nil
}

func (r *repoHandle) isCheckedOut(branch string) (bool, error) {
	head, err := r.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return false, fmt.Errorf("read HEAD: %w", err)
	}
	return head.Type() == plumbing.SymbolicReference && head.Target() == plumbing.NewBranchReferenceName(branch), nil
}

func (r *repoHandle) requireCheckedOut(branch string) error {
	ok, err := r.isCheckedOut(branch)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("branch %s is not checked out", branch)
	}
	return nil
}

// BranchCompareUpstream counts the commits branch has that its upstream does
// not (Ahead) and the reverse (Behind).
func BranchCompareUpstream(repoPath, branch string) (BranchCompare, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return BranchCompare{}, err
	}
	local, upstream, _, err := r.branchAndUpstream(branch)
	if err != nil {
		return BranchCompare{}, err
	}
	return aheadBehind(local, upstream)
}

func aheadBehind(local, upstream *object.Commit) (BranchCompare, error) {
	if local.Hash == upstream.Hash {
		return BranchCompare{}, nil
	}
	ours, err := ancestry(local)
	if err != nil {
		return BranchCompare{}, err
	}
	theirs, err := ancestry(upstream)
	if err != nil {
		return BranchCompare{}, err
	}
	var cmp BranchCompare
	for h := range ours {
		if !theirs[h] {
			cmp.Ahead++
		}
	}
	for h := range theirs {
		if !ours[h] {
			cmp.Behind++
		}
	}
	return cmp, nil
}

// ancestry collects c and every commit reachable from it.
func ancestry(c *object.Commit) (map[plumbing.Hash]bool, error) {
	seen := make(map[plumbing.Hash]bool)
	iter := object.NewCommitPreorderIter(c, nil, nil)
	defer iter.Close()
	err := iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) && !errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, err
	}
	return seen, nil
}

// BranchMergeUpstreamFastforward moves branch to its upstream tip without
// creating a commit. Diverged histories fail with ErrNotFastForwardable and
// leave the repository untouched; a branch already containing the upstream
// is left as is.
func BranchMergeUpstreamFastforward(repoPath, branch string) (MergeResult, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return MergeResult{}, err
	}
	st, err := r.state()
	if err != nil {
		return MergeResult{}, err
	}
	if err := checkTransition(st.Kind, opFastForward); err != nil {
		return MergeResult{}, err
	}
	local, upstream, upName, err := r.branchAndUpstream(branch)
	if err != nil {
		return MergeResult{}, err
	}
	if local.Hash == upstream.Hash {
		return MergeResult{Kind: MergeUpToDate, Commit: CommitID(local.Hash)}, nil
	}
	canFF, err := local.IsAncestor(upstream)
	if err != nil {
		return MergeResult{}, err
	}
	if !canFF {
		contained, err := upstream.IsAncestor(local)
		if err != nil {
			return MergeResult{}, err
		}
		if contained {
			return MergeResult{Kind: MergeUpToDate, Commit: CommitID(local.Hash)}, nil
		}
		return MergeResult{}, fmt.Errorf("%s onto %s: %w", branch, upName.Short(), ErrNotFastForwardable)
	}

	checkedOut, err := r.isCheckedOut(branch)
	if err != nil {
		return MergeResult{}, err
	}
	if checkedOut {
		err = r.fastForward(upstream, upName.String())
	} else {
		err = r.moveRef(plumbing.NewBranchReferenceName(branch), upstream.Hash)
	}
	if err != nil {
		return MergeResult{}, err
	}
	slog.Debug("fast-forward branch", slog.String("branch", branch), slog.String("to", upstream.Hash.String()))
	return MergeResult{Kind: MergeFastForward, Commit: CommitID(upstream.Hash)}, nil
}

// MergeUpstreamCommit merges the upstream of the checked-out branch with a
// merge commit, even when a fast-forward would do.
func MergeUpstreamCommit(repoPath, branch string) (MergeResult, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return MergeResult{}, err
	}
	st, err := r.state()
	if err != nil {
		return MergeResult{}, err
	}
	if err := checkTransition(st.Kind, opMerge); err != nil {
		return MergeResult{}, err
	}
	if err := r.requireCheckedOut(branch); err != nil {
		return MergeResult{}, err
	}
	_, upstream, upName, err := r.branchAndUpstream(branch)
	if err != nil {
		return MergeResult{}, err
	}
	return r.mergeInto(upstream, upName.String(), gitbackend.MergeOptions{NoFastForward: true})
}

// MergeUpstreamRebase replays the local commits of the checked-out branch on
// top of its upstream. It stops at the first conflicting commit, leaving the
// repository in the rebase state; ContinueRebase resumes after resolution.
func MergeUpstreamRebase(repoPath, branch string) (RebaseResult, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return RebaseResult{}, err
	}
	st, err := r.state()
	if err != nil {
		return RebaseResult{}, err
	}
	if err := checkTransition(st.Kind, opRebase); err != nil {
		return RebaseResult{}, err
	}
	if err := r.requireCheckedOut(branch); err != nil {
		return RebaseResult{}, err
	}
	local, upstream, upName, err := r.branchAndUpstream(branch)
	if err != nil {
		return RebaseResult{}, err
	}
	if local.Hash == upstream.Hash {
		return RebaseResult{Kind: RebaseUpToDate, Commit: CommitID(local.Hash)}, nil
	}
	if contained, err := upstream.IsAncestor(local); err != nil {
		return RebaseResult{}, err
	} else if contained {
		return RebaseResult{Kind: RebaseUpToDate, Commit: CommitID(local.Hash)}, nil
	}
	if canFF, err := local.IsAncestor(upstream); err != nil {
		return RebaseResult{}, err
	} else if canFF {
		if err := r.fastForward(upstream, upName.String()); err != nil {
			return RebaseResult{}, err
		}
		return RebaseResult{Kind: RebaseFastForward, Commit: CommitID(upstream.Hash)}, nil
	}

	b, err := r.backend()
	if err != nil {
		return RebaseResult{}, err
	}
	slog.Debug("rebase", slog.String("branch", branch), slog.String("onto", upName.Short()))
	return r.rebaseOutcome(b.Rebase(upName.String()))
}

// ContinueRebase commits the resolved step and replays the remaining commits.
// Unstaged conflicts fail with ErrUnresolvedConflicts.
func ContinueRebase(repoPath string) (RebaseResult, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return RebaseResult{}, err
	}
	st, err := r.state()
	if err != nil {
		return RebaseResult{}, err
	}
	if err := checkTransition(st.Kind, opContinueRebase); err != nil {
		return RebaseResult{}, err
	}
	if err := r.ensureNoConflicts(); err != nil {
		return RebaseResult{}, err
	}
	b, err := r.backend()
	if err != nil {
		return RebaseResult{}, err
	}
	return r.rebaseOutcome(b.RebaseContinue())
}

// rebaseOutcome classifies a finished backend call by the state it left.
func (r *repoHandle) rebaseOutcome(runErr error) (RebaseResult, error) {
	st, err := r.state()
	if err != nil {
		return RebaseResult{}, err
	}
	if st.Kind == StateRebase {
		conflicts, err := r.conflicts()
		if err != nil {
			return RebaseResult{}, err
		}
		if len(conflicts) == 0 && runErr != nil {
			return RebaseResult{}, runErr
		}
		return RebaseResult{Kind: RebaseConflicted, Progress: st.Rebase, Conflicts: conflicts}, nil
	}
	if runErr != nil {
		return RebaseResult{}, runErr
	}
	head, err := r.headCommit()
	if err != nil {
		return RebaseResult{}, err
	}
	return RebaseResult{Kind: RebaseDone, Commit: CommitID(head.Hash)}, nil
}

// currentBranch returns the checked-out branch name, or "" when detached.
func (r *repoHandle) currentBranch() (string, error) {
	head, err := r.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", nil
	}
	return strings.TrimPrefix(head.Target().String(), "refs/heads/"), nil
}

// CurrentBranch names the checked-out branch; "" for a detached HEAD.
func CurrentBranch(repoPath string) (string, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return "", err
	}
	return r.currentBranch()
}
