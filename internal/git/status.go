package git

import (
	"fmt"
	"sort"

	gitlib "github.com/go-git/go-git/v5"
)

type StatusType uint8

const (
	// StatusWorkdir compares the index with the working tree.
	StatusWorkdir StatusType = iota
	// StatusStage compares HEAD with the index.
	StatusStage
	StatusBoth
)

type StatusItemType uint8

const (
	StatusNew StatusItemType = iota
	StatusModified
	StatusDeleted
	StatusRenamed
	StatusConflicted
)

func (t StatusItemType) String() string {
	switch t {
	case StatusNew:
		return "new"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	case StatusRenamed:
		return "renamed"
	case StatusConflicted:
		return "conflicted"
	default:
		return fmt.Sprintf("StatusItemType(%d)", uint8(t))
	}
}

type StatusItem struct {
	Path   string
	Status StatusItemType
}

// GetStatus lists changed paths sorted by path.
func GetStatus(repoPath string, typ StatusType) ([]StatusItem, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}
	var items []StatusItem
	for path, st := range status {
		if item, ok := statusItem(path, st, typ); ok {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func statusItem(path string, st *gitlib.FileStatus, typ StatusType) (StatusItem, bool) {
	if st.Staging == gitlib.UpdatedButUnmerged || st.Worktree == gitlib.UpdatedButUnmerged {
		return StatusItem{Path: path, Status: StatusConflicted}, true
	}
	var code gitlib.StatusCode
	switch typ {
	case StatusWorkdir:
		code = st.Worktree
	case StatusStage:
		code = st.Staging
		if code == gitlib.Untracked {
			return StatusItem{}, false
		}
	case StatusBoth:
		code = st.Worktree
		if code == gitlib.Unmodified {
			code = st.Staging
		}
	}
	kind, ok := statusKind(code)
	if !ok {
		return StatusItem{}, false
	}
	return StatusItem{Path: path, Status: kind}, true
}

func statusKind(code gitlib.StatusCode) (StatusItemType, bool) {
	switch code {
	case gitlib.Untracked, gitlib.Added:
		return StatusNew, true
	case gitlib.Modified, gitlib.Copied:
		return StatusModified, true
	case gitlib.Deleted:
		return StatusDeleted, true
	case gitlib.Renamed:
		return StatusRenamed, true
	default:
		return 0, false
	}
}
