package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const gitignoreFile = ".gitignore"

// AddToIgnore appends path to the top-level .gitignore, creating the file when
// missing. A path some existing rule already ignores is left alone.
func AddToIgnore(repoPath, path string) error {
	path = strings.Trim(filepath.ToSlash(strings.TrimSpace(path)), "/")
	if path == "" {
		return errors.New("ignore: empty path")
	}
	if path == gitignoreFile {
		return fmt.Errorf("ignore: refusing to ignore %s", gitignoreFile)
	}
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	wt, err := r.Worktree()
	if err != nil {
		return err
	}
	fs := wt.Filesystem

	patterns, err := gitignore.ReadPatterns(fs, nil)
	if err != nil {
		return fmt.Errorf("read ignore rules: %w", err)
	}
	isDir := false
	if fi, err := fs.Lstat(path); err == nil {
		isDir = fi.IsDir()
	}
	if gitignore.NewMatcher(patterns).Match(strings.Split(path, "/"), isDir) {
		slog.Debug("already ignored", slog.String("path", path))
		return nil
	}

	data, err := util.ReadFile(fs, gitignoreFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", gitignoreFile, err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	data = append(data, path+"\n"...)
	if err := util.WriteFile(fs, gitignoreFile, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", gitignoreFile, err)
	}
	slog.Debug("ignore", slog.String("path", path))
	return nil
}
