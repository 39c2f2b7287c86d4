package git

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	gitbackend "github.com/thiagokokada/gitk-sync/internal/git/backend"
)

type MergeKind uint8

const (
	MergeUpToDate MergeKind = iota
	MergeFastForward
	MergeCommitted
	// MergeConflicted leaves the repository in the merge state with conflict
	// markers in the working tree and stages 1-3 in the index.
	MergeConflicted
)

func (k MergeKind) String() string {
	switch k {
	case MergeUpToDate:
		return "up-to-date"
	case MergeFastForward:
		return "fast-forward"
	case MergeCommitted:
		return "committed"
	case MergeConflicted:
		return "conflicted"
	default:
		return fmt.Sprintf("MergeKind(%d)", uint8(k))
	}
}

type MergeResult struct {
	Kind MergeKind
	// Commit is HEAD after the merge; zero when conflicted.
	Commit    CommitID
	Conflicts []string
}

// merge markers removed once a merge is concluded.
var mergeStateFiles = []string{"MERGE_HEAD", "MERGE_MSG", "MERGE_MODE", "AUTO_MERGE"}

// MergeBranch merges name into the current branch. A fast-forward moves HEAD
// without a new commit; a clean three-way merge commits; overlapping edits
// leave the repository in the merge state and are reported as
// MergeConflicted, not as an error.
func MergeBranch(repoPath, name string) (MergeResult, error) {
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
	target, err := r.resolveCommit(name)
	if err != nil {
		return MergeResult{}, err
	}
	return r.mergeInto(target, name, gitbackend.MergeOptions{})
}

func (r *repoHandle) mergeInto(target *object.Commit, rev string, opts gitbackend.MergeOptions) (MergeResult, error) {
	head, err := r.headCommit()
	if err != nil {
		return MergeResult{}, err
	}
	if head != nil {
		if head.Hash == target.Hash {
			return MergeResult{Kind: MergeUpToDate, Commit: CommitID(head.Hash)}, nil
		}
		merged, err := target.IsAncestor(head)
		if err != nil {
			return MergeResult{}, err
		}
		if merged {
			return MergeResult{Kind: MergeUpToDate, Commit: CommitID(head.Hash)}, nil
		}
	}
	canFF := head == nil
	if !canFF {
		if canFF, err = head.IsAncestor(target); err != nil {
			return MergeResult{}, err
		}
	}
	if canFF && !opts.NoFastForward {
		if err := r.fastForward(target, rev); err != nil {
			return MergeResult{}, err
		}
		return MergeResult{Kind: MergeFastForward, Commit: CommitID(target.Hash)}, nil
	}
	if opts.FastForwardOnly {
		return MergeResult{}, ErrNotFastForwardable
	}

	b, err := r.backend()
	if err != nil {
		return MergeResult{}, err
	}
	slog.Debug("merge", slog.String("repo", r.root), slog.String("rev", rev))
	runErr := b.Merge(rev, opts)
	st, err := r.state()
	if err != nil {
		return MergeResult{}, err
	}
	if st.Kind == StateMerge {
		conflicts, err := r.conflicts()
		if err != nil {
			return MergeResult{}, err
		}
		return MergeResult{Kind: MergeConflicted, Conflicts: conflicts}, nil
	}
	if runErr != nil {
		return MergeResult{}, runErr
	}
	head, err = r.headCommit()
	if err != nil {
		return MergeResult{}, err
	}
	return MergeResult{Kind: MergeCommitted, Commit: CommitID(head.Hash)}, nil
}

// MergeCommit concludes a merge once every conflict is staged. An empty msg
// uses MERGE_MSG without its comment lines.
func MergeCommit(repoPath, msg string) (CommitID, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return CommitID{}, err
	}
	st, err := r.state()
	if err != nil {
		return CommitID{}, err
	}
	if err := checkTransition(st.Kind, opMergeCommit); err != nil {
		return CommitID{}, err
	}
	if msg == "" {
		msg = stripComments(st.Message)
	}
	return r.mergeCommit(msg, st.Heads)
}

func (r *repoHandle) mergeCommit(msg string, heads []CommitID) (CommitID, error) {
	head, err := r.headCommit()
	if err != nil {
		return CommitID{}, err
	}
	var parents []plumbing.Hash
	if head != nil {
		parents = append(parents, head.Hash)
	}
	for _, h := range heads {
		parents = append(parents, h.hash())
	}
	id, err := r.commit(msg, parents, true)
	if err != nil {
		return CommitID{}, err
	}
	for _, name := range mergeStateFiles {
		if err := r.removeGitFile(name); err != nil {
			return id, fmt.Errorf("clear merge state: %w", err)
		}
	}
	return id, nil
}

func stripComments(msg string) string {
	var kept []string
	for _, line := range strings.Split(msg, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")) + "\n"
}

// AbortMerge abandons whatever workflow is in progress, restoring the HEAD,
// index and working tree it started from. It fails with
// ErrNoOperationInProgress on a clean repository.
func AbortMerge(repoPath string) error {
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	st, err := r.state()
	if err != nil {
		return err
	}
	if err := checkTransition(st.Kind, opAbort); err != nil {
		return err
	}
	op, ok := abortOperation(st.Kind)
	if !ok {
		return fmt.Errorf("abort: unsupported state %s", st.Kind)
	}
	b, err := r.backend()
	if err != nil {
		return err
	}
	slog.Debug("abort", slog.String("repo", r.root), slog.String("state", st.Kind.String()))
	if err := b.Abort(op); err != nil {
		return err
	}
	after, err := r.state()
	if err != nil {
		return err
	}
	if after.Kind == st.Kind {
		return fmt.Errorf("abort %s: repository still in %s state", op, after.Kind)
	}
	return nil
}

// MergeHeadIDs lists the commits being merged; empty outside a merge.
func MergeHeadIDs(repoPath string) ([]CommitID, error) {
	st, err := RepoStateOf(repoPath)
	if err != nil {
		return nil, err
	}
	if st.Kind != StateMerge {
		return nil, nil
	}
	return st.Heads, nil
}

// MergeMsg returns the prepared merge message, or "" outside a merge.
func MergeMsg(repoPath string) (string, error) {
	st, err := RepoStateOf(repoPath)
	if err != nil {
		return "", err
	}
	return st.Message, nil
}

func (r *repoHandle) conflicts() ([]string, error) {
	idx, err := r.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return conflictedPaths(idx.Entries), nil
}

func conflictedPaths(entries []*gitindex.Entry) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, e := range entries {
		if e.Stage == stageMerged || seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		paths = append(paths, e.Name)
	}
	sort.Strings(paths)
	return paths
}
