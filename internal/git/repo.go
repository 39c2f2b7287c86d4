// Package git is a synchronous facade over a repository's object store, index
// and working tree.
//
// Every exported operation takes the repository path, opens its own handle and
// releases it before returning; nothing is cached between calls. Callers are
// expected to serialize mutating calls per repository (see internal/jobs).
package git

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"

	gitbackend "github.com/thiagokokada/gitk-sync/internal/git/backend"
)

// CommitID is the content address of a commit.
type CommitID plumbing.Hash

// ParseCommitID parses a full hex commit id.
func ParseCommitID(s string) (CommitID, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2*len(plumbing.ZeroHash) {
		return CommitID{}, fmt.Errorf("invalid commit id %q", s)
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return CommitID{}, fmt.Errorf("invalid commit id %q", s)
		}
	}
	return CommitID(plumbing.NewHash(s)), nil
}

func (id CommitID) String() string { return plumbing.Hash(id).String() }

// Short returns the abbreviated 7 character form.
func (id CommitID) Short() string { return id.String()[:7] }

func (id CommitID) IsZero() bool { return plumbing.Hash(id) == plumbing.ZeroHash }

// Compare orders ids by address.
func (id CommitID) Compare(other CommitID) int {
	return strings.Compare(id.String(), other.String())
}

func (id CommitID) hash() plumbing.Hash { return plumbing.Hash(id) }

// repoHandle bundles what a single call needs. It must not outlive the call.
type repoHandle struct {
	*gitlib.Repository
	root string
	// dotgit is the .git directory; nil for storages without one (tests with memory storage).
	dotgit billy.Filesystem
}

func openRepo(repoPath string) (*repoHandle, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	h := &repoHandle{Repository: repo, root: abs}
	if wt, err := repo.Worktree(); err == nil {
		h.root = wt.Filesystem.Root()
	}
	if fs, ok := repo.Storer.(*filesystem.Storage); ok {
		h.dotgit = fs.Filesystem()
	}
	return h, nil
}

// backend returns the CLI engine used for the workflows go-git cannot drive.
func (r *repoHandle) backend() (gitbackend.Backend, error) {
	return newBackend(r.root)
}

// newBackend is swapped in tests.
var newBackend = func(root string) (gitbackend.Backend, error) {
	return gitbackend.OpenCLI(root)
}

// headCommit returns the commit HEAD points to, or nil for an unborn branch.
func (r *repoHandle) headCommit() (*object.Commit, error) {
	ref, err := r.Head()
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := r.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	return commit, nil
}

func (r *repoHandle) headTree() (*object.Tree, error) {
	commit, err := r.headCommit()
	if err != nil || commit == nil {
		return nil, err
	}
	return commit.Tree()
}

// resolveCommit accepts a branch name, any revision or a full id.
func (r *repoHandle) resolveCommit(rev string) (*object.Commit, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return nil, fmt.Errorf("revision not specified")
	}
	hash, err := r.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	commit, err := r.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", rev, err)
	}
	return commit, nil
}

// readGitFile reads a file relative to the .git directory. A missing file is
// reported as (nil, false, nil).
func (r *repoHandle) readGitFile(name string) ([]byte, bool, error) {
	if r.dotgit == nil {
		return nil, false, nil
	}
	f, err := r.dotgit.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *repoHandle) gitPathExists(name string) bool {
	if r.dotgit == nil {
		return false
	}
	_, err := r.dotgit.Stat(name)
	return err == nil
}

func (r *repoHandle) removeGitFile(name string) error {
	if r.dotgit == nil {
		return nil
	}
	if err := r.dotgit.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func toCommitIDs(hashes []plumbing.Hash) []CommitID {
	ids := make([]CommitID, 0, len(hashes))
	for _, h := range hashes {
		ids = append(ids, CommitID(h))
	}
	return ids
}
