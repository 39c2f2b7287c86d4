package git

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type LogSearchField uint8

const (
	SearchMessage LogSearchField = 1 << iota
	SearchFilenames
	SearchAuthors

	SearchAll = SearchMessage | SearchFilenames | SearchAuthors
)

// LogSearch matches Term against the selected commit fields. Filenames are
// those changed relative to the first parent.
type LogSearch struct {
	Term          string
	Fields        LogSearchField
	CaseSensitive bool
}

type LogOptions struct {
	// Limit caps the number of commits produced. Zero means no limit.
	Limit int
	// Starts defaults to HEAD.
	Starts []CommitID
	// After resumes a previous walk: commits up to and including After are
	// skipped and do not count toward Limit.
	After CommitID
	// Author keeps commits whose author name or email contains it, ignoring case.
	Author string
	// Path keeps commits that change the file or directory.
	Path   string
	Search *LogSearch
}

// LogWalker yields commit ids newest first by committer time, each commit
// once. Commits with equal times come out in the order they were reached, so
// a parent never precedes its first child. A walker cannot be restarted and
// holds its repository handle until it is dropped.
type LogWalker struct {
	r        *repoHandle
	opts     LogOptions
	queue    *binaryheap.Heap
	seen     map[plumbing.Hash]bool
	seq      uint64
	count    int
	skipping bool
}

type logItem struct {
	commit *object.Commit
	seq    uint64
}

func logItemOrder(a, b any) int {
	x, y := a.(*logItem), b.(*logItem)
	tx, ty := x.commit.Committer.When, y.commit.Committer.When
	switch {
	case tx.After(ty):
		return -1
	case tx.Before(ty):
		return 1
	case x.seq < y.seq:
		return -1
	case x.seq > y.seq:
		return 1
	default:
		return 0
	}
}

// NewLogWalker prepares a walk. A start or After that is not a commit in the
// repository fails with ErrInvalidStartPoint. An unborn HEAD walks nothing.
func NewLogWalker(repoPath string, opts LogOptions) (*LogWalker, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	w := &LogWalker{
		r:        r,
		opts:     opts,
		queue:    binaryheap.NewWith(logItemOrder),
		seen:     make(map[plumbing.Hash]bool),
		skipping: !opts.After.IsZero(),
	}
	if w.skipping {
		if _, err := r.CommitObject(opts.After.hash()); err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				return nil, fmt.Errorf("%w: after %s", ErrInvalidStartPoint, opts.After)
			}
			return nil, fmt.Errorf("read commit %s: %w", opts.After.Short(), err)
		}
	}
	starts := opts.Starts
	if len(starts) == 0 {
		head, err := r.headCommit()
		if err != nil {
			return nil, err
		}
		if head != nil {
			w.push(head)
		}
		return w, nil
	}
	for _, id := range starts {
		if w.seen[id.hash()] {
			continue
		}
		c, err := r.CommitObject(id.hash())
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidStartPoint, id)
			}
			return nil, fmt.Errorf("read commit %s: %w", id.Short(), err)
		}
		w.push(c)
	}
	return w, nil
}

func (w *LogWalker) push(c *object.Commit) {
	w.seen[c.Hash] = true
	w.queue.Push(&logItem{commit: c, seq: w.seq})
	w.seq++
}

// Next returns the next matching commit. It returns io.EOF once the history
// or the limit is exhausted, and ErrInvalidStartPoint when the history ends
// without reaching After.
func (w *LogWalker) Next() (CommitID, error) {
	for {
		if w.opts.Limit > 0 && w.count >= w.opts.Limit {
			return CommitID{}, io.EOF
		}
		v, ok := w.queue.Pop()
		if !ok {
			if w.skipping {
				return CommitID{}, fmt.Errorf("%w: after %s is not reachable from the start points", ErrInvalidStartPoint, w.opts.After.Short())
			}
			return CommitID{}, io.EOF
		}
		c := v.(*logItem).commit
		if err := w.enqueueParents(c); err != nil {
			return CommitID{}, err
		}
		if w.skipping {
			if c.Hash == w.opts.After.hash() {
				w.skipping = false
			}
			continue
		}
		ok, err := w.matches(c)
		if err != nil {
			return CommitID{}, err
		}
		if !ok {
			continue
		}
		w.count++
		return CommitID(c.Hash), nil
	}
}

// Read returns up to n further commits; fewer means the walk is over.
func (w *LogWalker) Read(n int) ([]CommitID, error) {
	var ids []CommitID
	for len(ids) < n {
		id, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LogCommits runs a whole walk.
func LogCommits(repoPath string, opts LogOptions) ([]CommitID, error) {
	w, err := NewLogWalker(repoPath, opts)
	if err != nil {
		return nil, err
	}
	var ids []CommitID
	for {
		id, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	slog.Debug("log", slog.String("repo", w.r.root), slog.Int("commits", len(ids)))
	return ids, nil
}

func (w *LogWalker) enqueueParents(c *object.Commit) error {
	for _, h := range c.ParentHashes {
		if w.seen[h] {
			continue
		}
		parent, err := w.r.CommitObject(h)
		if err != nil {
			// Shallow clones end at commits whose parents are absent.
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				w.seen[h] = true
				continue
			}
			return fmt.Errorf("read commit %s: %w", h, err)
		}
		w.push(parent)
	}
	return nil
}

func (w *LogWalker) matches(c *object.Commit) (bool, error) {
	if w.opts.Author != "" {
		who := strings.ToLower(c.Author.Name + " <" + c.Author.Email + ">")
		if !strings.Contains(who, strings.ToLower(w.opts.Author)) {
			return false, nil
		}
	}
	if w.opts.Path != "" {
		ok, err := w.touches(c, w.opts.Path)
		if err != nil || !ok {
			return false, err
		}
	}
	if s := w.opts.Search; s != nil && s.Term != "" {
		return w.searchMatches(c, s)
	}
	return true, nil
}

// touches reports whether c changes path relative to its parents. A merge
// counts only when it differs from every parent.
func (w *LogWalker) touches(c *object.Commit, path string) (bool, error) {
	own, err := pathHash(c, path)
	if err != nil {
		return false, err
	}
	if c.NumParents() == 0 {
		return !own.IsZero(), nil
	}
	for _, h := range c.ParentHashes {
		parent, err := w.r.CommitObject(h)
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				return !own.IsZero(), nil
			}
			return false, err
		}
		theirs, err := pathHash(parent, path)
		if err != nil {
			return false, err
		}
		if theirs == own {
			return false, nil
		}
	}
	return true, nil
}

// pathHash returns the tree or blob hash at path, zero when absent.
func pathHash(c *object.Commit, path string) (plumbing.Hash, error) {
	tree, err := c.Tree()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	entry, err := tree.FindEntry(strings.Trim(path, "/"))
	if err != nil {
		if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return plumbing.ZeroHash, nil
		}
		return plumbing.ZeroHash, err
	}
	return entry.Hash, nil
}

func (w *LogWalker) searchMatches(c *object.Commit, s *LogSearch) (bool, error) {
	fields := s.Fields
	if fields == 0 {
		fields = SearchMessage
	}
	term := s.Term
	norm := func(v string) string { return v }
	if !s.CaseSensitive {
		term = strings.ToLower(term)
		norm = strings.ToLower
	}
	if fields&SearchMessage != 0 && strings.Contains(norm(c.Message), term) {
		return true, nil
	}
	if fields&SearchAuthors != 0 &&
		(strings.Contains(norm(c.Author.Name), term) || strings.Contains(norm(c.Author.Email), term)) {
		return true, nil
	}
	if fields&SearchFilenames != 0 {
		names, err := w.changedFiles(c)
		if err != nil {
			return false, err
		}
		for _, name := range names {
			if strings.Contains(norm(name), term) {
				return true, nil
			}
		}
	}
	return false, nil
}

// changedFiles lists the paths c changes relative to its first parent.
func (w *LogWalker) changedFiles(c *object.Commit) ([]string, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	if c.NumParents() == 0 {
		var names []string
		err := tree.Files().ForEach(func(f *object.File) error {
			names = append(names, f.Name)
			return nil
		})
		return names, err
	}
	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(changes))
	for _, ch := range changes {
		if ch.To.Name != "" {
			names = append(names, ch.To.Name)
		} else {
			names = append(names, ch.From.Name)
		}
	}
	return names, nil
}
