package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

func GetCommitInfo(repoPath string, id CommitID) (CommitInfo, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return CommitInfo{}, err
	}
	return r.commitInfo(id)
}

// GetCommitsInfo copies out the given commits in the order requested.
func GetCommitsInfo(repoPath string, ids []CommitID) ([]CommitInfo, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	infos := make([]CommitInfo, 0, len(ids))
	for _, id := range ids {
		info, err := r.commitInfo(id)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (r *repoHandle) commitInfo(id CommitID) (CommitInfo, error) {
	c, err := r.CommitObject(id.hash())
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return CommitInfo{}, fmt.Errorf("commit %s: %w", id.Short(), ErrInvalidStartPoint)
		}
		return CommitInfo{}, fmt.Errorf("read commit %s: %w", id.Short(), err)
	}
	return newCommitInfo(c), nil
}

// GetCommitFiles lists the paths a commit changed against its first parent,
// sorted by path. Renamed files are listed under their new path.
func GetCommitFiles(repoPath string, id CommitID) ([]StatusItem, error) {
	diffs, err := GetDiffCommit(repoPath, id, "", DefaultDiffOptions())
	if err != nil {
		return nil, err
	}
	items := make([]StatusItem, 0, len(diffs))
	for _, d := range diffs {
		item := StatusItem{Path: d.Path()}
		switch d.Status {
		case DeltaAdded, DeltaUntracked:
			item.Status = StatusNew
		case DeltaDeleted:
			item.Status = StatusDeleted
		case DeltaRenamed:
			item.Status = StatusRenamed
		default:
			item.Status = StatusModified
		}
		items = append(items, item)
	}
	return items, nil
}
