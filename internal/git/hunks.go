package git

import (
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// StageHunk applies a hunk of the unstaged diff (index to working tree) to the
// index entry of path. The hunk must still describe the working tree; if it
// does not, or its old side is no longer in the index, the call fails with a
// *HunkApplyError and the index is left untouched.
func StageHunk(repoPath, path string, hunk Hunk) error {
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
		return fmt.Errorf("stage hunk %s: %w", path, ErrBinaryFile)
	}
	if locate(splitLines(string(work.data)), hunk.postImage(), hunk.newIndex()) < 0 {
		return hunkApplyErr(path, hunk.NewStart, "hunk no longer matches the working tree")
	}
	out, ok := applyHunk(splitLines(string(staged.data)), hunk, false)
	if !ok {
		return hunkApplyErr(path, hunk.OldStart, "hunk does not apply to the index")
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
	slog.Debug("stage hunk", slog.String("path", path), slog.String("hunk", hunk.Header()))
	return r.writeIndex(idx)
}

// UnstageHunk reverts a hunk of the staged diff (HEAD to index) from the index
// entry of path. A path HEAD does not know whose staged content becomes empty
// is dropped from the index again.
func UnstageHunk(repoPath, path string, hunk Hunk) error {
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
	headMode, inHead, err := r.headMode(path)
	if err != nil {
		return err
	}
	if isBinary(staged.data) {
		return fmt.Errorf("unstage hunk %s: %w", path, ErrBinaryFile)
	}
	out, ok := applyHunk(splitLines(string(staged.data)), hunk, true)
	if !ok {
		return hunkApplyErr(path, hunk.NewStart, "hunk does not apply to the index")
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
	slog.Debug("unstage hunk", slog.String("path", path), slog.String("hunk", hunk.Header()))
	return r.writeIndex(idx)
}

// ResetHunk discards a hunk of the unstaged diff from the working tree. An
// untracked file left empty is deleted. The index is not touched.
func ResetHunk(repoPath, path string, hunk Hunk) error {
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	work, _, err := r.worktreeContent(path)
	if err != nil {
		return err
	}
	if isBinary(work.data) {
		return fmt.Errorf("reset hunk %s: %w", path, ErrBinaryFile)
	}
	out, ok := applyHunk(splitLines(string(work.data)), hunk, true)
	if !ok {
		return hunkApplyErr(path, hunk.NewStart, "hunk no longer matches the working tree")
	}
	idx, err := r.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	entry, conflicted := lookupIndex(idx, path)
	mode := work.mode
	if entry != nil {
		mode = entry.Mode
	}
	slog.Debug("reset hunk", slog.String("path", path), slog.String("hunk", hunk.Header()))
	return r.replaceWorktreeFile(path, out, entry != nil || conflicted, mode)
}

type worktreeFile struct {
	data []byte
	mode filemode.FileMode
}

// worktreeContent reads path from the working tree. A missing file reads as
// empty with exists=false.
func (r *repoHandle) worktreeContent(path string) (worktreeFile, bool, error) {
	wt, err := r.Worktree()
	if err != nil {
		return worktreeFile{}, false, err
	}
	e, ok, err := readWorktreeEntry(wt.Filesystem, path)
	if err != nil || !ok {
		return worktreeFile{}, false, err
	}
	return worktreeFile{data: e.data, mode: e.mode}, true, nil
}

// replaceWorktreeFile writes lines to path, or removes the file when it is
// untracked and nothing is left of it.
func (r *repoHandle) replaceWorktreeFile(path string, lines []string, tracked bool, mode filemode.FileMode) error {
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	if !tracked && len(lines) == 0 {
		if err := wt.Filesystem.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}
	return writeWorktreeFile(wt.Filesystem, path, []byte(joinLines(lines)), mode)
}

// headMode reports the mode path has in HEAD and whether HEAD has it at all.
func (r *repoHandle) headMode(path string) (filemode.FileMode, bool, error) {
	tree, err := r.headTree()
	if err != nil {
		return filemode.Empty, false, err
	}
	f, err := fileFromTree(tree, path)
	if err != nil || f == nil {
		return filemode.Empty, false, err
	}
	return f.Mode, true, nil
}
