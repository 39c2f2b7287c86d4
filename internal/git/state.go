package git

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

type StateKind uint8

const (
	StateClean StateKind = iota
	StateMerge
	StateRebase
	StateRevert
	StateCherryPick
	StateBisect
)

func (k StateKind) String() string {
	switch k {
	case StateClean:
		return "clean"
	case StateMerge:
		return "merge"
	case StateRebase:
		return "rebase"
	case StateRevert:
		return "revert"
	case StateCherryPick:
		return "cherry-pick"
	case StateBisect:
		return "bisect"
	default:
		return fmt.Sprintf("StateKind(%d)", uint8(k))
	}
}

// RebaseProgress describes an in-progress rebase. Step is 1-based; both Step and
// Total are zero when git has not recorded them yet.
type RebaseProgress struct {
	HeadName    string
	Onto        CommitID
	OrigHead    CommitID
	Step        int
	Total       int
	Interactive bool
}

// RepoState is the workflow currently in progress. Only the payload matching
// Kind is populated: Heads for merge, cherry-pick and revert, Message for merge,
// Rebase for rebase.
type RepoState struct {
	Kind    StateKind
	Heads   []CommitID
	Message string
	Rebase  *RebaseProgress
}

func (s RepoState) IsClean() bool { return s.Kind == StateClean }

// RepoStateOf derives the state from the on-disk markers. It is recomputed on
// every call since any git command, including external ones, may change it.
func RepoStateOf(repoPath string) (RepoState, error) {
	r, err := openRepo(repoPath)
	if err != nil {
		return RepoState{}, err
	}
	return r.state()
}

func (r *repoHandle) state() (RepoState, error) {
	st, err := r.readState()
	if err != nil {
		return RepoState{}, fmt.Errorf("read repository state: %w", err)
	}
	slog.Debug("repo state", slog.String("path", r.root), slog.String("state", st.Kind.String()))
	return st, nil
}

func (r *repoHandle) readState() (RepoState, error) {
	switch {
	case r.gitPathExists("rebase-merge"):
		progress, err := r.rebaseProgress("rebase-merge", "msgnum", "end")
		if err != nil {
			return RepoState{}, err
		}
		progress.Interactive = r.gitPathExists("rebase-merge/interactive")
		return RepoState{Kind: StateRebase, Rebase: progress}, nil
	case r.gitPathExists("rebase-apply"):
		progress, err := r.rebaseProgress("rebase-apply", "next", "last")
		if err != nil {
			return RepoState{}, err
		}
		return RepoState{Kind: StateRebase, Rebase: progress}, nil
	}

	if heads, ok, err := r.readHeadsFile("MERGE_HEAD"); err != nil {
		return RepoState{}, err
	} else if ok {
		msg, _, err := r.readGitFile("MERGE_MSG")
		if err != nil {
			return RepoState{}, err
		}
		return RepoState{Kind: StateMerge, Heads: heads, Message: string(msg)}, nil
	}
	if heads, ok, err := r.readHeadsFile("REVERT_HEAD"); err != nil {
		return RepoState{}, err
	} else if ok {
		return RepoState{Kind: StateRevert, Heads: heads}, nil
	}
	if heads, ok, err := r.readHeadsFile("CHERRY_PICK_HEAD"); err != nil {
		return RepoState{}, err
	} else if ok {
		return RepoState{Kind: StateCherryPick, Heads: heads}, nil
	}
	if r.gitPathExists("BISECT_LOG") {
		return RepoState{Kind: StateBisect}, nil
	}
	return RepoState{Kind: StateClean}, nil
}

func (r *repoHandle) readHeadsFile(name string) ([]CommitID, bool, error) {
	data, ok, err := r.readGitFile(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	heads, err := parseHeads(data)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return heads, true, nil
}

func parseHeads(data []byte) ([]CommitID, error) {
	var heads []CommitID
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := ParseCommitID(line)
		if err != nil {
			return nil, err
		}
		heads = append(heads, id)
	}
	return heads, scanner.Err()
}

func (r *repoHandle) rebaseProgress(dir, stepFile, totalFile string) (*RebaseProgress, error) {
	p := &RebaseProgress{}
	readTrimmed := func(name string) (string, error) {
		data, _, err := r.readGitFile(dir + "/" + name)
		return strings.TrimSpace(string(data)), err
	}
	headName, err := readTrimmed("head-name")
	if err != nil {
		return nil, err
	}
	p.HeadName = strings.TrimPrefix(headName, "refs/heads/")
	if onto, err := readTrimmed("onto"); err != nil {
		return nil, err
	} else if onto != "" {
		p.Onto = CommitID(plumbing.NewHash(onto))
	}
	if orig, err := readTrimmed("orig-head"); err != nil {
		return nil, err
	} else if orig != "" {
		p.OrigHead = CommitID(plumbing.NewHash(orig))
	}
	if step, err := readTrimmed(stepFile); err != nil {
		return nil, err
	} else if n, convErr := strconv.Atoi(step); convErr == nil {
		p.Step = n
	}
	if total, err := readTrimmed(totalFile); err != nil {
		return nil, err
	} else if n, convErr := strconv.Atoi(total); convErr == nil {
		p.Total = n
	}
	return p, nil
}
