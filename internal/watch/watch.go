// Package watch reports repository state changes made by any process.
package watch

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/thiagokokada/gitk-sync/internal/debounce"
	"github.com/thiagokokada/gitk-sync/internal/git"
)

const DefaultDelay = 350 * time.Millisecond

// Event carries the state read after a burst of filesystem changes.
type Event struct {
	State git.RepoState
	Err   error
}

type Watcher struct {
	repoPath string
	notify   func(Event)

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer
	done     chan struct{}
}

// New watches the .git directory of repoPath. notify runs on a timer
// goroutine, never concurrently with itself.
func New(repoPath string, delay time.Duration, notify func(Event)) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	for path := range watchPaths(repoPath) {
		slog.Debug("adding path to FS watcher", slog.String("path", path))
		if err := fw.Add(path); err != nil {
			err := errors.Join(err, fw.Close())
			return nil, fmt.Errorf("watch %s: %w", path, err)
		}
	}
	w := &Watcher{
		repoPath: repoPath,
		notify:   notify,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	var serial sync.Mutex
	w.debounce = debounce.New(delay, func() {
		serial.Lock()
		defer serial.Unlock()
		w.refresh()
	})
	go w.loop(fw)
	return w, nil
}

func (w *Watcher) refresh() {
	st, err := git.RepoStateOf(w.repoPath)
	if err != nil {
		slog.Error("read repository state", slog.String("repo", w.repoPath), slog.Any("error", err))
	}
	slog.Debug("repository changed", slog.String("repo", w.repoPath), slog.String("state", st.Kind.String()))
	w.notify(Event{State: st, Err: err})
}

func (w *Watcher) loop(fw *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if shouldIgnoreWatchPath(ev.Name) {
				continue
			}
			slog.Debug("fsnotify event",
				slog.String("op", ev.Op.String()),
				slog.String("path", ev.Name),
			)
			w.schedule()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}
	w.debounce.Trigger()
}

// Close stops watching. Pending notifications are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	fw := w.watcher
	w.watcher = nil
	w.debounce.Stop()
	w.mu.Unlock()
	if fw == nil {
		return nil
	}
	err := fw.Close()
	<-w.done
	return err
}

// watchPaths yields the .git directory and its refs/heads. A repository whose
// .git is a file (worktrees) is watched at its root.
func watchPaths(root string) iter.Seq[string] {
	uniquePaths := map[string]struct{}{}
	appendUnique := func(p string) { uniquePaths[p] = struct{}{} }
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
		appendUnique(gitDir)
		if info, err := os.Stat(filepath.Join(gitDir, "refs", "heads")); err == nil && info.IsDir() {
			appendUnique(filepath.Join(gitDir, "refs", "heads"))
		}
		return maps.Keys(uniquePaths)
	}
	appendUnique(root)
	return maps.Keys(uniquePaths)
}

func shouldIgnoreWatchPath(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".lock" || ext == ".ipc"
}
