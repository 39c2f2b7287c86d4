package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	gitbackend "github.com/thiagokokada/gitk-sync/internal/git/backend"
)

// fastForward moves HEAD, and the branch it points to, to target. When no
// tracked file has local changes the tree is checked out natively; otherwise
// git merge --ff-only carries the local changes over or refuses.
func (r *repoHandle) fastForward(target *object.Commit, rev string) error {
	done, err := r.nativeFastForward(target)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	b, err := r.backend()
	if err != nil {
		return err
	}
	slog.Debug("fast-forward via backend", slog.String("repo", r.root), slog.String("rev", rev))
	return b.Merge(rev, gitbackend.MergeOptions{FastForwardOnly: true})
}

// nativeFastForward reports false, without touching anything, when the
// checkout needs more than plain file writes: local changes, untracked files
// in the way or submodules.
func (r *repoHandle) nativeFastForward(target *object.Commit) (bool, error) {
	wt, err := r.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("worktree status: %w", err)
	}
	for _, st := range status {
		if !unchanged(st.Staging) || !unchanged(st.Worktree) {
			return false, nil
		}
	}
	from, err := r.headTree()
	if err != nil {
		return false, err
	}
	to, err := target.Tree()
	if err != nil {
		return false, err
	}
	changes, err := object.DiffTree(from, to)
	if err != nil {
		return false, fmt.Errorf("diff trees: %w", err)
	}
	for _, ch := range changes {
		if ch.From.TreeEntry.Mode == filemode.Submodule || ch.To.TreeEntry.Mode == filemode.Submodule {
			return false, nil
		}
		action, err := ch.Action()
		if err != nil {
			return false, err
		}
		if action == merkletrie.Insert {
			if st, ok := status[ch.To.Name]; ok && st.Worktree == gitlib.Untracked {
				return false, nil
			}
		}
	}

	idx, err := r.Storer.Index()
	if err != nil {
		return false, fmt.Errorf("read index: %w", err)
	}
	for _, ch := range changes {
		if err := r.checkoutChange(wt.Filesystem, idx, ch); err != nil {
			return false, err
		}
	}
	if err := r.writeIndex(idx); err != nil {
		return false, err
	}
	if err := r.moveHead(target.Hash); err != nil {
		return false, err
	}
	slog.Debug("fast-forward", slog.String("repo", r.root), slog.String("to", target.Hash.String()), slog.Int("files", len(changes)))
	return true, nil
}

func unchanged(code gitlib.StatusCode) bool {
	return code == gitlib.Unmodified || code == gitlib.Untracked
}

func (r *repoHandle) checkoutChange(fs billy.Filesystem, idx *gitindex.Index, ch *object.Change) error {
	if ch.From.Name != "" && ch.From.Name != ch.To.Name {
		if err := fs.Remove(ch.From.Name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", ch.From.Name, err)
		}
		removeEmptyParents(fs, ch.From.Name)
		removeIndexEntry(idx, ch.From.Name)
	}
	if ch.To.Name == "" {
		return nil
	}
	entry := ch.To.TreeEntry
	data, err := r.blobContent(entry.Hash)
	if err != nil {
		return err
	}
	if err := checkoutBlob(fs, ch.To.Name, data, entry.Mode); err != nil {
		return err
	}
	setIndexEntry(idx, &gitindex.Entry{Name: ch.To.Name, Hash: entry.Hash, Mode: entry.Mode, Size: uint32(len(data))})
	return nil
}

// checkoutBlob replaces path with a fresh file, or symlink, of the given mode.
func checkoutBlob(fs billy.Filesystem, name string, data []byte, mode filemode.FileMode) error {
	if err := fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	if mode == filemode.Symlink {
		if dir := path.Dir(name); dir != "." {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		return fs.Symlink(string(data), name)
	}
	perm := os.FileMode(0o644)
	if mode == filemode.Executable {
		perm = 0o755
	}
	if err := util.WriteFile(fs, name, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func removeEmptyParents(fs billy.Filesystem, name string) {
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		entries, err := fs.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := fs.Remove(dir); err != nil {
			return
		}
	}
}

// moveHead points HEAD's branch, or a detached HEAD itself, at hash. An
// existing branch is updated only if nobody moved it meanwhile.
func (r *repoHandle) moveHead(hash plumbing.Hash) error {
	head, err := r.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}
	name := plumbing.HEAD
	if head.Type() == plumbing.SymbolicReference {
		name = head.Target()
	}
	return r.moveRef(name, hash)
}

func (r *repoHandle) moveRef(name plumbing.ReferenceName, hash plumbing.Hash) error {
	next := plumbing.NewHashReference(name, hash)
	prev, err := r.Storer.Reference(name)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		err = r.Storer.SetReference(next)
	case err != nil:
		return fmt.Errorf("read %s: %w", name, err)
	case prev.Type() == plumbing.SymbolicReference:
		err = r.Storer.SetReference(next)
	default:
		err = r.Storer.CheckAndSetReference(next, prev)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}
	return nil
}
