package git

import (
	"fmt"
	"log/slog"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit records the index as a new commit on HEAD.
func Commit(repoPath, msg string) (CommitID, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return CommitID{}, err
	}
	st, err := r.state()
	if err != nil {
		return CommitID{}, err
	}
	if st.Kind == StateMerge {
		return r.mergeCommit(msg, st.Heads)
	}
	return r.commit(msg, nil, false)
}

func (r *repoHandle) commit(msg string, parents []plumbing.Hash, allowEmpty bool) (CommitID, error) {
	if err := r.ensureNoConflicts(); err != nil {
		return CommitID{}, err
	}
	sig, err := r.signature()
	if err != nil {
		return CommitID{}, err
	}
	wt, err := r.Worktree()
	if err != nil {
		return CommitID{}, err
	}
	hash, err := wt.Commit(msg, &gitlib.CommitOptions{
		Author:            sig,
		Parents:           parents,
		AllowEmptyCommits: allowEmpty,
	})
	if err != nil {
		return CommitID{}, fmt.Errorf("commit: %w", err)
	}
	slog.Debug("commit", slog.String("id", hash.String()), slog.Int("parents", len(parents)))
	return CommitID(hash), nil
}

// Amend replaces HEAD with a commit of the current index, keeping HEAD's
// parents and author. An empty msg keeps the original message.
func Amend(repoPath, msg string) (CommitID, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return CommitID{}, err
	}
	st, err := r.state()
	if err != nil {
		return CommitID{}, err
	}
	if err := checkTransition(st.Kind, opAmend); err != nil {
		return CommitID{}, err
	}
	head, err := r.headCommit()
	if err != nil {
		return CommitID{}, err
	}
	if head == nil {
		return CommitID{}, fmt.Errorf("amend: %w", ErrUnbornHead)
	}
	if err := r.ensureNoConflicts(); err != nil {
		return CommitID{}, err
	}
	if msg == "" {
		msg = head.Message
	}
	committer, err := r.signature()
	if err != nil {
		return CommitID{}, err
	}
	author := head.Author
	opts := &gitlib.CommitOptions{
		Author:            &author,
		Committer:         committer,
		AllowEmptyCommits: true,
	}
	// go-git's Amend keeps only the first parent.
	if head.NumParents() > 1 {
		opts.Parents = head.ParentHashes
	} else {
		opts.Amend = true
	}
	wt, err := r.Worktree()
	if err != nil {
		return CommitID{}, err
	}
	hash, err := wt.Commit(msg, opts)
	if err != nil {
		return CommitID{}, fmt.Errorf("amend: %w", err)
	}
	slog.Debug("amend", slog.String("old", head.Hash.String()), slog.String("new", hash.String()))
	return CommitID(hash), nil
}

// signature reads user.name and user.email from the merged configuration.
func (r *repoHandle) signature() (*object.Signature, error) {
	cfg, err := r.ConfigScoped(config.SystemScope)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		return nil, fmt.Errorf("user.name and user.email must be configured")
	}
	return &object.Signature{Name: cfg.User.Name, Email: cfg.User.Email, When: time.Now()}, nil
}

func (r *repoHandle) ensureNoConflicts() error {
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	if paths := conflictedPaths(idx.Entries); len(paths) > 0 {
		return fmt.Errorf("%w: %d path(s)", ErrUnresolvedConflicts, len(paths))
	}
	return nil
}
