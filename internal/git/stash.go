package git

import (
	"bytes"
	"fmt"
	"log/slog"

	gitbackend "github.com/thiagokokada/gitk-sync/internal/git/backend"
)

// stashLog is the reflog backing stash@{N}, oldest entry first.
const stashLog = "logs/refs/stash"

type StashInfo struct {
	// Index is N in stash@{N}; 0 is the newest entry.
	Index   int
	ID      CommitID
	Message string
}

type StashOptions struct {
	Message          string
	IncludeUntracked bool
	// KeepIndex leaves staged changes in place after stashing them.
	KeepIndex bool
}

// GetStashes lists the stash entries newest first.
func GetStashes(repoPath string) ([]StashInfo, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	return r.stashes()
}

func (r *repoHandle) stashes() ([]StashInfo, error) {
	data, ok, err := r.readGitFile(stashLog)
	if err != nil {
		return nil, fmt.Errorf("read stash log: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var entries []StashInfo
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		head, msg, _ := bytes.Cut(line, []byte("\t"))
		fields := bytes.Fields(head)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed stash log line %q", line)
		}
		id, err := ParseCommitID(string(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("stash log: %w", err)
		}
		entries = append(entries, StashInfo{ID: id, Message: string(msg)})
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	for i := range entries {
		entries[i].Index = i
	}
	return entries, nil
}

func (r *repoHandle) findStash(id CommitID) (StashInfo, error) {
	entries, err := r.stashes()
	if err != nil {
		return StashInfo{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return StashInfo{}, fmt.Errorf("%w: %s", ErrStashNotFound, id.Short())
}

// StashSave moves local changes onto a new stash entry and returns its id.
// A clean working tree fails with ErrNothingToStash.
func StashSave(repoPath string, opts StashOptions) (CommitID, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return CommitID{}, err
	}
	st, err := r.state()
	if err != nil {
		return CommitID{}, err
	}
	if err := checkTransition(st.Kind, opStash); err != nil {
		return CommitID{}, err
	}
	if err := r.ensureNoConflicts(); err != nil {
		return CommitID{}, err
	}
	before, err := r.stashes()
	if err != nil {
		return CommitID{}, err
	}
	b, err := r.backend()
	if err != nil {
		return CommitID{}, err
	}
	slog.Debug("stash push", slog.String("repo", r.root), slog.Bool("untracked", opts.IncludeUntracked))
	if err := b.StashPush(gitbackend.StashOptions(opts)); err != nil {
		return CommitID{}, err
	}
	after, err := r.stashes()
	if err != nil {
		return CommitID{}, err
	}
	if len(after) <= len(before) {
		return CommitID{}, ErrNothingToStash
	}
	return after[0].ID, nil
}

// StashApply restores a stash entry onto the working tree, keeping it on the
// list. Conflicting paths are returned, not reported as an error.
func StashApply(repoPath string, id CommitID) ([]string, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	_, conflicts, err := r.stashApply(id)
	return conflicts, err
}

// StashPop applies a stash entry and drops it unless the apply conflicted.
func StashPop(repoPath string, id CommitID) ([]string, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	entry, conflicts, err := r.stashApply(id)
	if err != nil || len(conflicts) > 0 {
		return conflicts, err
	}
	return nil, r.stashDrop(entry)
}

func (r *repoHandle) stashApply(id CommitID) (StashInfo, []string, error) {
	st, err := r.state()
	if err != nil {
		return StashInfo{}, nil, err
	}
	if err := checkTransition(st.Kind, opStash); err != nil {
		return StashInfo{}, nil, err
	}
	entry, err := r.findStash(id)
	if err != nil {
		return StashInfo{}, nil, err
	}
	b, err := r.backend()
	if err != nil {
		return StashInfo{}, nil, err
	}
	slog.Debug("stash apply", slog.String("repo", r.root), slog.Int("index", entry.Index))
	runErr := b.StashApply(fmt.Sprintf("stash@{%d}", entry.Index))
	conflicts, err := r.conflicts()
	if err != nil {
		return StashInfo{}, nil, err
	}
	if len(conflicts) > 0 {
		return entry, conflicts, nil
	}
	return entry, nil, runErr
}

// StashDrop removes a stash entry without applying it.
func StashDrop(repoPath string, id CommitID) error {
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	entry, err := r.findStash(id)
	if err != nil {
		return err
	}
	return r.stashDrop(entry)
}

func (r *repoHandle) stashDrop(entry StashInfo) error {
	b, err := r.backend()
	if err != nil {
		return err
	}
	slog.Debug("stash drop", slog.String("repo", r.root), slog.Int("index", entry.Index))
	return b.StashDrop(entry.Index)
}
