package git

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/go-git/go-billy/v5"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/binary"
)

type DeltaStatus uint8

const (
	DeltaUnmodified DeltaStatus = iota
	DeltaAdded
	DeltaDeleted
	DeltaModified
	DeltaRenamed
	DeltaUntracked
	DeltaConflicted
)

func (s DeltaStatus) String() string {
	switch s {
	case DeltaUnmodified:
		return "unmodified"
	case DeltaAdded:
		return "added"
	case DeltaDeleted:
		return "deleted"
	case DeltaModified:
		return "modified"
	case DeltaRenamed:
		return "renamed"
	case DeltaUntracked:
		return "untracked"
	case DeltaConflicted:
		return "conflicted"
	default:
		return fmt.Sprintf("DeltaStatus(%d)", uint8(s))
	}
}

// FileDiff is the comparison of one file between two sides. OldPath is empty
// for added files and NewPath for deleted ones. Binary diffs carry no hunks.
type FileDiff struct {
	OldPath    string
	NewPath    string
	Status     DeltaStatus
	Binary     bool
	Similarity int
	OldMode    filemode.FileMode
	NewMode    filemode.FileMode
	Hunks      []Hunk
	Additions  int
	Deletions  int
}

func (d FileDiff) Path() string {
	if d.NewPath != "" {
		return d.NewPath
	}
	return d.OldPath
}

type DiffOptions struct {
	ContextLines int
	// RenameThreshold is the minimum similarity percentage for two files to be
	// reported as a rename. Zero disables rename detection.
	RenameThreshold int
	// RenameLimit caps the number of delete/add pairs scored for similarity.
	// Exact renames are always detected.
	RenameLimit      int
	IncludeUntracked bool
}

func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		ContextLines:     3,
		RenameThreshold:  50,
		RenameLimit:      1000,
		IncludeUntracked: true,
	}
}

type sideKind uint8

const (
	sideEmpty sideKind = iota
	sideWorkdir
	sideIndex
	sideHead
	sideCommit
)

// Side is one end of a comparison.
type Side struct {
	kind sideKind
	id   CommitID
}

var (
	SideWorkdir = Side{kind: sideWorkdir}
	SideIndex   = Side{kind: sideIndex}
	// SideHead is resolved when the diff runs; an unborn HEAD is empty.
	SideHead = Side{kind: sideHead}
)

func SideCommit(id CommitID) Side { return Side{kind: sideCommit, id: id} }

func (s Side) String() string {
	switch s.kind {
	case sideWorkdir:
		return "workdir"
	case sideIndex:
		return "index"
	case sideHead:
		return "HEAD"
	case sideCommit:
		return s.id.Short()
	default:
		return "empty"
	}
}

// GetDiff diffs one file: HEAD against the index when staged, otherwise the
// index against the working tree. An unchanged file yields a FileDiff with
// DeltaUnmodified and no hunks.
func GetDiff(repoPath, path string, staged bool, opts DiffOptions) (FileDiff, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return FileDiff{}, err
	}
	from, to := SideIndex, SideWorkdir
	if staged {
		from, to = SideHead, SideIndex
	}
	diffs, err := r.diffSides(from, to, path, opts)
	if err != nil {
		return FileDiff{}, err
	}
	if len(diffs) == 0 {
		return FileDiff{OldPath: path, NewPath: path}, nil
	}
	return diffs[0], nil
}

// GetDiffCommit diffs a commit against its first parent. An empty path
// returns every changed file.
func GetDiffCommit(repoPath string, id CommitID, path string, opts DiffOptions) ([]FileDiff, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	commit, err := r.CommitObject(id.hash())
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", id.Short(), err)
	}
	from := Side{kind: sideEmpty}
	if commit.NumParents() > 0 {
		from = SideCommit(CommitID(commit.ParentHashes[0]))
	}
	return r.diffSides(from, SideCommit(id), path, opts)
}

// DiffTrees compares any two sides, returning one entry per changed file
// sorted by path.
func DiffTrees(repoPath string, from, to Side, opts DiffOptions) ([]FileDiff, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	return r.diffSides(from, to, "", opts)
}

type sideEntry struct {
	hash plumbing.Hash
	mode filemode.FileMode
	// data is set for working tree files; blobs are read on demand.
	data       []byte
	loaded     bool
	untracked  bool
	conflicted bool
}

func (e *sideEntry) same(other *sideEntry) bool {
	return !e.conflicted && !other.conflicted && e.hash == other.hash && e.mode == other.mode
}

type snapshot map[string]*sideEntry

func (r *repoHandle) diffSides(from, to Side, only string, opts DiffOptions) ([]FileDiff, error) {
	a, err := r.snapshot(from, only, opts)
	if err != nil {
		return nil, err
	}
	b, err := r.snapshot(to, only, opts)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{}, len(a)+len(b))
	for p := range a {
		paths[p] = struct{}{}
	}
	for p := range b {
		paths[p] = struct{}{}
	}
	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var diffs []FileDiff
	var deleted, added []string
	for _, p := range sorted {
		ea, okA := a[p]
		eb, okB := b[p]
		switch {
		case okA && okB:
			if ea.same(eb) {
				continue
			}
			status := DeltaModified
			if ea.conflicted || eb.conflicted {
				status = DeltaConflicted
			}
			d, err := r.fileDiff(p, p, ea, eb, status, opts)
			if err != nil {
				return nil, err
			}
			diffs = append(diffs, d)
		case okA:
			deleted = append(deleted, p)
		case okB:
			added = append(added, p)
		}
	}

	if only == "" && opts.RenameThreshold > 0 {
		var pairs []renamePair
		if from.hasTree() && to.hasTree() {
			pairs, err = r.treeRenames(from, to, a, b, deleted, added, opts)
		} else {
			pairs, err = r.detectRenames(a, b, deleted, added, opts)
		}
		if err != nil {
			return nil, err
		}
		renamedFrom := make(map[string]bool, len(pairs))
		renamedTo := make(map[string]bool, len(pairs))
		for _, pair := range pairs {
			d, err := r.fileDiff(pair.from, pair.to, a[pair.from], b[pair.to], DeltaRenamed, opts)
			if err != nil {
				return nil, err
			}
			d.Similarity = pair.score
			diffs = append(diffs, d)
			renamedFrom[pair.from] = true
			renamedTo[pair.to] = true
		}
		deleted = without(deleted, renamedFrom)
		added = without(added, renamedTo)
	}

	for _, p := range deleted {
		d, err := r.fileDiff(p, "", a[p], nil, DeltaDeleted, opts)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, d)
	}
	for _, p := range added {
		status := DeltaAdded
		if b[p].untracked {
			status = DeltaUntracked
		}
		d, err := r.fileDiff("", p, nil, b[p], status, opts)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, d)
	}
	sort.SliceStable(diffs, func(i, j int) bool { return diffs[i].Path() < diffs[j].Path() })
	slog.Debug("diff", slog.String("from", from.String()), slog.String("to", to.String()), slog.Int("files", len(diffs)))
	return diffs, nil
}

func without(paths []string, drop map[string]bool) []string {
	out := paths[:0]
	for _, p := range paths {
		if !drop[p] {
			out = append(out, p)
		}
	}
	return out
}

func (r *repoHandle) fileDiff(oldPath, newPath string, ea, eb *sideEntry, status DeltaStatus, opts DiffOptions) (FileDiff, error) {
	d := FileDiff{OldPath: oldPath, NewPath: newPath, Status: status}
	var oldData, newData []byte
	var err error
	if ea != nil {
		d.OldMode = ea.mode
		if oldData, err = r.entryContent(ea); err != nil {
			return FileDiff{}, err
		}
	}
	if eb != nil {
		d.NewMode = eb.mode
		if newData, err = r.entryContent(eb); err != nil {
			return FileDiff{}, err
		}
	}
	if isBinary(oldData) || isBinary(newData) {
		d.Binary = true
		return d, nil
	}
	d.Hunks = computeHunks(splitLines(string(oldData)), splitLines(string(newData)), opts.ContextLines)
	for _, h := range d.Hunks {
		added, removed := h.counts()
		d.Additions += added
		d.Deletions += removed
	}
	return d, nil
}

func isBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	bin, err := binary.IsBinary(bytes.NewReader(data))
	return err == nil && bin
}

func (r *repoHandle) entryContent(e *sideEntry) ([]byte, error) {
	if e.loaded {
		return e.data, nil
	}
	data, err := r.blobContent(e.hash)
	if err != nil {
		return nil, err
	}
	e.data, e.loaded = data, true
	return data, nil
}

func (r *repoHandle) blobContent(hash plumbing.Hash) ([]byte, error) {
	if hash.IsZero() {
		return nil, nil
	}
	blob, err := object.GetBlob(r.Storer, hash)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", hash, err)
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

func (r *repoHandle) snapshot(side Side, only string, opts DiffOptions) (snapshot, error) {
	switch side.kind {
	case sideEmpty:
		return snapshot{}, nil
	case sideHead, sideCommit:
		tree, err := r.sideTree(side)
		if err != nil {
			return nil, err
		}
		return treeSnapshot(tree, only)
	case sideIndex:
		snap, _, err := r.indexSnapshot(only)
		return snap, err
	case sideWorkdir:
		index, _, err := r.indexSnapshot(only)
		if err != nil {
			return nil, err
		}
		return r.workdirSnapshot(index, only, opts.IncludeUntracked)
	default:
		return nil, fmt.Errorf("unknown diff side %d", side.kind)
	}
}

// sideTree returns the tree behind a HEAD or commit side; nil for an unborn
// HEAD.
func (r *repoHandle) sideTree(side Side) (*object.Tree, error) {
	if side.kind == sideHead {
		return r.headTree()
	}
	commit, err := r.CommitObject(side.id.hash())
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", side.id.Short(), err)
	}
	return commit.Tree()
}

func (s Side) hasTree() bool { return s.kind == sideHead || s.kind == sideCommit }

func treeSnapshot(tree *object.Tree, only string) (snapshot, error) {
	snap := snapshot{}
	if tree == nil {
		return snap, nil
	}
	if only != "" {
		f, err := tree.File(only)
		if err != nil {
			if errors.Is(err, object.ErrFileNotFound) {
				return snap, nil
			}
			return nil, err
		}
		snap[only] = &sideEntry{hash: f.Hash, mode: f.Mode}
		return snap, nil
	}
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if !entry.Mode.IsFile() {
			continue
		}
		snap[name] = &sideEntry{hash: entry.Hash, mode: entry.Mode}
	}
	return snap, nil
}

// indexSnapshot lists stage 0 entries. A conflicted path is represented by
// our side, falling back to theirs when ours was deleted.
func (r *repoHandle) indexSnapshot(only string) (snapshot, *gitindex.Index, error) {
	idx, err := r.Storer.Index()
	if err != nil {
		return nil, nil, fmt.Errorf("read index: %w", err)
	}
	snap := snapshot{}
	for _, e := range idx.Entries {
		if only != "" && e.Name != only {
			continue
		}
		if e.Stage == stageMerged {
			snap[e.Name] = &sideEntry{hash: e.Hash, mode: e.Mode}
			continue
		}
		cur, ok := snap[e.Name]
		if !ok {
			cur = &sideEntry{conflicted: true}
			snap[e.Name] = cur
		}
		if e.Stage == gitindex.OurMode || (e.Stage == gitindex.TheirMode && cur.hash.IsZero()) {
			cur.hash, cur.mode = e.Hash, e.Mode
		}
	}
	return snap, idx, nil
}

// workdirSnapshot overlays working tree changes on the index. Files the status
// reports unmodified reuse the index hash; everything else is read from disk.
func (r *repoHandle) workdirSnapshot(index snapshot, only string, untracked bool) (snapshot, error) {
	wt, err := r.Worktree()
	if err != nil {
		return nil, err
	}
	snap := snapshot{}
	if only != "" {
		e, ok, err := readWorktreeEntry(wt.Filesystem, only)
		if err != nil || !ok {
			return snap, err
		}
		_, tracked := index[only]
		e.untracked = !tracked
		if tracked || untracked {
			snap[only] = e
		}
		return snap, nil
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}
	for path, ie := range index {
		st, changed := status[path]
		if !ie.conflicted && (!changed || st.Worktree == gitlib.Unmodified) {
			snap[path] = &sideEntry{hash: ie.hash, mode: ie.mode}
			continue
		}
		e, ok, err := readWorktreeEntry(wt.Filesystem, path)
		if err != nil {
			return nil, err
		}
		if ok {
			snap[path] = e
		}
	}
	if untracked {
		for path, st := range status {
			if st.Worktree != gitlib.Untracked {
				continue
			}
			e, ok, err := readWorktreeEntry(wt.Filesystem, path)
			if err != nil {
				return nil, err
			}
			if ok {
				e.untracked = true
				snap[path] = e
			}
		}
	}
	return snap, nil
}

// readWorktreeEntry reads a file or symlink from the working tree. Missing
// paths and directories report ok=false.
func readWorktreeEntry(fs billy.Filesystem, path string) (*sideEntry, bool, error) {
	info, err := fs.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if info.IsDir() {
		return nil, false, nil
	}
	mode, err := filemode.NewFromOSFileMode(info.Mode())
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	var data []byte
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := fs.Readlink(path)
		if err != nil {
			return nil, false, err
		}
		data = []byte(target)
	} else {
		f, err := fs.Open(path)
		if err != nil {
			return nil, false, err
		}
		data, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, false, err
		}
	}
	return &sideEntry{
		hash:   plumbing.ComputeHash(plumbing.BlobObject, data),
		mode:   mode,
		data:   data,
		loaded: true,
	}, true, nil
}
