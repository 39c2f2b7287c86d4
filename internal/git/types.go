package git

import (
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"
)

type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitInfo is a snapshot of a commit copied out of the object store.
type CommitInfo struct {
	ID        CommitID
	Author    Signature
	Committer Signature
	Message   string
	Parents   []CommitID
}

// Time is the committer time, which drives log ordering.
func (c CommitInfo) Time() time.Time { return c.Committer.When }

// Summary is the first line of the message.
func (c CommitInfo) Summary() string {
	for i := 0; i < len(c.Message); i++ {
		if c.Message[i] == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}

func newCommitInfo(c *object.Commit) CommitInfo {
	return CommitInfo{
		ID:        CommitID(c.Hash),
		Author:    Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer: Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
		Message:   c.Message,
		Parents:   toCommitIDs(c.ParentHashes),
	}
}

// BranchCompare counts commits between a branch and its upstream.
type BranchCompare struct {
	Ahead  int
	Behind int
}
