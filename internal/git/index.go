package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
)

const (
	indexFile     = "index"
	indexLockFile = "index.lock"
)

// stageMerged is the stage of a resolved entry as decoded from disk. go-git's
// gitindex.Merged is 1, which collides with AncestorMode.
const stageMerged gitindex.Stage = 0

// stagedFile is the stage 0 content of a path.
type stagedFile struct {
	data []byte
	mode filemode.FileMode
	// tracked is false when the index has no stage 0 entry for the path.
	tracked bool
}

func lookupIndex(idx *gitindex.Index, path string) (entry *gitindex.Entry, conflicted bool) {
	for _, e := range idx.Entries {
		if e.Name != path {
			continue
		}
		if e.Stage == stageMerged {
			entry = e
		} else {
			conflicted = true
		}
	}
	return entry, conflicted
}

// stagedContent reads the stage 0 blob of path. Conflicted paths are refused.
func (r *repoHandle) stagedContent(idx *gitindex.Index, path string) (stagedFile, error) {
	entry, conflicted := lookupIndex(idx, path)
	if conflicted {
		return stagedFile{}, fmt.Errorf("%s: %w", path, ErrUnresolvedConflicts)
	}
	if entry == nil {
		return stagedFile{}, nil
	}
	data, err := r.blobContent(entry.Hash)
	if err != nil {
		return stagedFile{}, err
	}
	return stagedFile{data: data, mode: entry.Mode, tracked: true}, nil
}

func (r *repoHandle) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := r.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	hash, err := r.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	return hash, nil
}

// stageContent stores data as a blob and points the path's stage 0 entry at
// it, dropping any conflict stages. Stat fields are left zero so git
// rehashes the working file on its next status.
func (r *repoHandle) stageContent(idx *gitindex.Index, path string, data []byte, mode filemode.FileMode) error {
	hash, err := r.writeBlob(data)
	if err != nil {
		return err
	}
	if mode == filemode.Empty {
		mode = filemode.Regular
	}
	setIndexEntry(idx, &gitindex.Entry{
		Name: path,
		Hash: hash,
		Mode: mode,
		Size: uint32(len(data)),
	})
	return nil
}

func setIndexEntry(idx *gitindex.Index, entry *gitindex.Entry) {
	removeIndexEntry(idx, entry.Name)
	idx.Entries = append(idx.Entries, entry)
	sort.SliceStable(idx.Entries, func(i, j int) bool {
		a, b := idx.Entries[i], idx.Entries[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Stage < b.Stage
	})
}

// removeIndexEntry drops every stage of path. The cached tree extension is
// discarded since it no longer describes the entries.
func removeIndexEntry(idx *gitindex.Index, path string) {
	kept := make([]*gitindex.Entry, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		if e.Name != path {
			kept = append(kept, e)
		}
	}
	idx.Entries = kept
	idx.Cache = nil
	idx.ResolveUndo = nil
}

// writeIndex commits idx in one step: it is encoded into index.lock, which is
// created exclusively, and then renamed over the index. A lock held by another
// writer fails with ErrIndexLocked.
func (r *repoHandle) writeIndex(idx *gitindex.Index) error {
	if r.dotgit == nil {
		return r.Storer.SetIndex(idx)
	}
	f, err := r.dotgit.OpenFile(indexLockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrIndexLocked
		}
		return fmt.Errorf("lock index: %w", err)
	}
	if err := gitindex.NewEncoder(f).Encode(idx); err != nil {
		f.Close()
		_ = r.dotgit.Remove(indexLockFile)
		return fmt.Errorf("encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = r.dotgit.Remove(indexLockFile)
		return fmt.Errorf("write index: %w", err)
	}
	if err := r.dotgit.Rename(indexLockFile, indexFile); err != nil {
		_ = r.dotgit.Remove(indexLockFile)
		return fmt.Errorf("commit index: %w", err)
	}
	slog.Debug("index written", slog.String("repo", r.root), slog.Int("entries", len(idx.Entries)))
	return nil
}

// writeWorktreeFile replaces a working tree file, keeping its permissions
// when it already exists.
func writeWorktreeFile(fs billy.Filesystem, path string, data []byte, mode filemode.FileMode) error {
	perm := os.FileMode(0o644)
	if mode == filemode.Executable {
		perm = 0o755
	}
	if info, err := fs.Lstat(path); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%s: refusing to rewrite a symlink", path)
		}
		perm = info.Mode().Perm()
	}
	if err := util.WriteFile(fs, path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
