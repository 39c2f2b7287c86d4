package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// StageLines stages only the given added or removed lines of the unstaged
// diff of path. Lines come from a diff of the same snapshot; any that no
// longer match the current content fail the call with ErrHunkApply.
func StageLines(repoPath, path string, lines []DiffLine) error {
	if len(lines) == 0 {
		return nil
	}
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	staged, err := r.stagedContent(idx, path)
	if err != nil {
		return err
	}
	work, workExists, err := r.worktreeContent(path)
	if err != nil {
		return err
	}
	if isBinary(staged.data) || isBinary(work.data) {
		return fmt.Errorf("stage lines %s: %w", path, ErrBinaryFile)
	}
	full := fullDiffLines(splitLines(string(staged.data)), splitLines(string(work.data)))
	selected, err := selectLines(path, full, lines)
	if err != nil {
		return err
	}
	out, err := applySelection(path, full, selected, false)
	if err != nil {
		return err
	}
	if !workExists && len(out) == 0 {
		removeIndexEntry(idx, path)
	} else {
		mode := staged.mode
		if !staged.tracked {
			mode = work.mode
		}
		if err := r.stageContent(idx, path, []byte(joinLines(out)), mode); err != nil {
			return err
		}
	}
	slog.Debug("stage lines", slog.String("path", path), slog.Int("lines", len(selected)))
	return r.writeIndex(idx)
}

// UnstageLines reverts the given lines of the staged diff of path from the
// index.
func UnstageLines(repoPath, path string, lines []DiffLine) error {
	if len(lines) == 0 {
		return nil
	}
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	staged, err := r.stagedContent(idx, path)
	if err != nil {
		return err
	}
	headData, headMode, inHead, err := r.headContent(path)
	if err != nil {
		return err
	}
	if isBinary(staged.data) || isBinary(headData) {
		return fmt.Errorf("unstage lines %s: %w", path, ErrBinaryFile)
	}
	full := fullDiffLines(splitLines(string(headData)), splitLines(string(staged.data)))
	selected, err := selectLines(path, full, lines)
	if err != nil {
		return err
	}
	out, err := applySelection(path, full, selected, true)
	if err != nil {
		return err
	}
	if !inHead && len(out) == 0 {
		removeIndexEntry(idx, path)
	} else {
		mode := staged.mode
		if !staged.tracked {
			mode = headMode
		}
		if err := r.stageContent(idx, path, []byte(joinLines(out)), mode); err != nil {
			return err
		}
	}
	slog.Debug("unstage lines", slog.String("path", path), slog.Int("lines", len(selected)))
	return r.writeIndex(idx)
}

// DiscardLines reverts the given lines of the unstaged diff of path in the
// working tree. Unselected changes stay in the file.
func DiscardLines(repoPath, path string, lines []DiffLine) error {
	if len(lines) == 0 {
		return nil
	}
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	staged, err := r.stagedContent(idx, path)
	if err != nil {
		return err
	}
	work, _, err := r.worktreeContent(path)
	if err != nil {
		return err
	}
	if isBinary(staged.data) || isBinary(work.data) {
		return fmt.Errorf("discard lines %s: %w", path, ErrBinaryFile)
	}
	full := fullDiffLines(splitLines(string(staged.data)), splitLines(string(work.data)))
	selected, err := selectLines(path, full, lines)
	if err != nil {
		return err
	}
	out, err := applySelection(path, full, selected, true)
	if err != nil {
		return err
	}
	mode := work.mode
	if staged.tracked {
		mode = staged.mode
	}
	slog.Debug("discard lines", slog.String("path", path), slog.Int("lines", len(selected)))
	return r.replaceWorktreeFile(path, out, staged.tracked, mode)
}

// StageAddFile stages the whole working tree file, or its removal when the
// file is gone. A conflicted path is marked resolved.
func StageAddFile(repoPath, path string) error {
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	if err := r.stageWorktreePath(idx, path); err != nil {
		return err
	}
	return r.writeIndex(idx)
}

// StageAll stages every working tree change, untracked files included, in a
// single index write.
func StageAll(repoPath string) error {
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	var paths []string
	for path, st := range status {
		if st.Worktree != gitlib.Unmodified || st.Staging == gitlib.UpdatedButUnmerged {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	sort.Strings(paths)
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	for _, path := range paths {
		if err := r.stageWorktreePath(idx, path); err != nil {
			return err
		}
	}
	slog.Debug("stage all", slog.Int("paths", len(paths)))
	return r.writeIndex(idx)
}

func (r *repoHandle) stageWorktreePath(idx *gitindex.Index, path string) error {
	work, exists, err := r.worktreeContent(path)
	if err != nil {
		return err
	}
	if !exists {
		removeIndexEntry(idx, path)
		return nil
	}
	return r.stageContent(idx, path, work.data, work.mode)
}

// ResetStage points the index entry of path back at its HEAD content, or
// drops it when HEAD does not have the path. Conflict stages are cleared.
func ResetStage(repoPath, path string) error {
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	tree, err := r.headTree()
	if err != nil {
		return err
	}
	f, err := fileFromTree(tree, path)
	if err != nil {
		return err
	}
	if f == nil {
		removeIndexEntry(idx, path)
	} else {
		setIndexEntry(idx, &gitindex.Entry{Name: path, Hash: f.Hash, Mode: f.Mode, Size: uint32(f.Size)})
	}
	slog.Debug("reset stage", slog.String("path", path))
	return r.writeIndex(idx)
}

// ResetWorkdir restores path in the working tree from the index. A file the
// index does not track is deleted.
func ResetWorkdir(repoPath, path string) error {
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	staged, err := r.stagedContent(idx, path)
	if err != nil {
		return err
	}
	if !staged.tracked {
		wt, err := r.Worktree()
		if err != nil {
			return err
		}
		if err := wt.Filesystem.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%s: %w", path, ErrFileNotFound)
			}
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}
	slog.Debug("reset workdir", slog.String("path", path))
	return r.replaceWorktreeFile(path, splitLines(string(staged.data)), true, staged.mode)
}

// headContent reads path from HEAD; an unborn HEAD or a missing path reads as
// empty with ok=false.
func (r *repoHandle) headContent(path string) ([]byte, filemode.FileMode, bool, error) {
	tree, err := r.headTree()
	if err != nil {
		return nil, 0, false, err
	}
	f, err := fileFromTree(tree, path)
	if err != nil || f == nil {
		return nil, 0, false, err
	}
	data, err := r.blobContent(f.Hash)
	if err != nil {
		return nil, 0, false, err
	}
	return data, f.Mode, true, nil
}

func fileFromTree(tree *object.Tree, path string) (*object.File, error) {
	if tree == nil {
		return nil, nil
	}
	f, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
