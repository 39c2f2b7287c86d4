package git

import (
	"context"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var emptyBlobHash = plumbing.ComputeHash(plumbing.BlobObject, nil)

type renamePair struct {
	from  string
	to    string
	score int
}

type renameFile struct {
	path string
	hash plumbing.Hash
	data []byte
}

// detectRenames pairs deleted and added paths. Identical content pairs first;
// the rest are scored by line similarity when the candidate matrix stays
// within opts.RenameLimit.
func (r *repoHandle) detectRenames(a, b snapshot, deleted, added []string, opts DiffOptions) ([]renamePair, error) {
	if len(deleted) == 0 || len(added) == 0 {
		return nil, nil
	}
	dels := make([]renameFile, 0, len(deleted))
	for _, p := range deleted {
		dels = append(dels, renameFile{path: p, hash: a[p].hash})
	}
	adds := make([]renameFile, 0, len(added))
	for _, p := range added {
		adds = append(adds, renameFile{path: p, hash: b[p].hash})
	}
	pairs, dels, adds := exactRenames(dels, adds)
	if len(dels) == 0 || len(adds) == 0 {
		return pairs, nil
	}
	if opts.RenameLimit > 0 && len(dels)*len(adds) > opts.RenameLimit {
		return pairs, nil
	}
	for i := range dels {
		data, err := r.entryContent(a[dels[i].path])
		if err != nil {
			return nil, err
		}
		dels[i].data = data
	}
	for i := range adds {
		data, err := r.entryContent(b[adds[i].path])
		if err != nil {
			return nil, err
		}
		adds[i].data = data
	}
	return append(pairs, similarRenames(dels, adds, opts.RenameThreshold)...), nil
}

// treeRenames lets go-git's tree diff pick the renames between two trees.
// Scores are recomputed with similarity so they match the other sides.
func (r *repoHandle) treeRenames(from, to Side, a, b snapshot, deleted, added []string, opts DiffOptions) ([]renamePair, error) {
	if len(deleted) == 0 || len(added) == 0 {
		return nil, nil
	}
	ta, err := r.sideTree(from)
	if err != nil {
		return nil, err
	}
	tb, err := r.sideTree(to)
	if err != nil {
		return nil, err
	}
	treeOpts := &object.DiffTreeOptions{
		DetectRenames: true,
		RenameScore:   uint(opts.RenameThreshold),
	}
	if opts.RenameLimit > 0 && len(deleted)*len(added) > opts.RenameLimit {
		treeOpts.OnlyExactRenames = true
	}
	changes, err := object.DiffTreeWithOptions(context.Background(), ta, tb, treeOpts)
	if err != nil {
		return nil, err
	}
	isDeleted := make(map[string]bool, len(deleted))
	for _, p := range deleted {
		isDeleted[p] = true
	}
	isAdded := make(map[string]bool, len(added))
	for _, p := range added {
		isAdded[p] = true
	}
	var pairs []renamePair
	for _, ch := range changes {
		src, dst := ch.From.Name, ch.To.Name
		if src == dst || !isDeleted[src] || !isAdded[dst] {
			continue
		}
		score := 100
		if a[src].hash != b[dst].hash {
			oldData, err := r.entryContent(a[src])
			if err != nil {
				return nil, err
			}
			newData, err := r.entryContent(b[dst])
			if err != nil {
				return nil, err
			}
			score = similarity(string(oldData), string(newData))
		}
		pairs = append(pairs, renamePair{from: src, to: dst, score: score})
	}
	return pairs, nil
}

// exactRenames pairs files with identical non-empty content, both sides taken
// in path order. It returns the pairs and the files left unmatched.
func exactRenames(dels, adds []renameFile) ([]renamePair, []renameFile, []renameFile) {
	byHash := make(map[plumbing.Hash][]int)
	for i, d := range dels {
		if d.hash == emptyBlobHash {
			continue
		}
		byHash[d.hash] = append(byHash[d.hash], i)
	}
	usedDel := make(map[int]bool)
	var pairs []renamePair
	var restAdds []renameFile
	for _, ad := range adds {
		matched := false
		for _, i := range byHash[ad.hash] {
			if usedDel[i] {
				continue
			}
			usedDel[i] = true
			pairs = append(pairs, renamePair{from: dels[i].path, to: ad.path, score: 100})
			matched = true
			break
		}
		if !matched {
			restAdds = append(restAdds, ad)
		}
	}
	var restDels []renameFile
	for i, d := range dels {
		if !usedDel[i] {
			restDels = append(restDels, d)
		}
	}
	return pairs, restDels, restAdds
}

// similarRenames scores every pair and assigns greedily, best score first,
// ties broken by source then destination path.
func similarRenames(dels, adds []renameFile, threshold int) []renamePair {
	var candidates []renamePair
	for _, d := range dels {
		if len(d.data) == 0 || isBinary(d.data) {
			continue
		}
		for _, ad := range adds {
			if len(ad.data) == 0 || isBinary(ad.data) {
				continue
			}
			score := similarity(string(d.data), string(ad.data))
			if score >= threshold {
				candidates = append(candidates, renamePair{from: d.path, to: ad.path, score: score})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.score != cj.score {
			return ci.score > cj.score
		}
		if ci.from != cj.from {
			return ci.from < cj.from
		}
		return ci.to < cj.to
	})
	usedFrom := make(map[string]bool)
	usedTo := make(map[string]bool)
	var pairs []renamePair
	for _, c := range candidates {
		if usedFrom[c.from] || usedTo[c.to] {
			continue
		}
		usedFrom[c.from] = true
		usedTo[c.to] = true
		pairs = append(pairs, c)
	}
	return pairs
}
