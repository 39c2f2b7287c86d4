package git

import (
	"errors"
	"slices"
	"testing"
)

func TestAmend_KeepsParentAndAuthor(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	base := commitAll(t, dir, "base")
	writeFile(t, dir, "a.txt", "b\n")
	runGitEnv(t, dir, []string{"GIT_AUTHOR_NAME=Original Author", "GIT_AUTHOR_EMAIL=original@example.com"},
		"commit", "-q", "-am", "typo")
	old := headID(t, dir)

	writeFile(t, dir, "b.txt", "b\n")
	runGit(t, dir, "add", "b.txt")
	id, err := Amend(dir, "fixed\n")
	if err != nil {
		t.Fatalf("Amend: %v", err)
	}
	if id == old || headID(t, dir) != id {
		t.Fatalf("HEAD = %s, amended %s, old %s", headID(t, dir), id, old)
	}
	info, err := GetCommitInfo(dir, id)
	if err != nil {
		t.Fatalf("GetCommitInfo: %v", err)
	}
	if info.Summary() != "fixed" || len(info.Parents) != 1 || info.Parents[0] != base {
		t.Fatalf("amended commit %+v", info)
	}
	if info.Author.Email != "original@example.com" {
		t.Fatalf("author = %+v", info.Author)
	}
	if got := runGit(t, dir, "show", "-s", "--format=%ce", "HEAD"); got != "test@example.com" {
		t.Fatalf("committer = %q", got)
	}
	if got := runGit(t, dir, "ls-tree", "--name-only", "HEAD"); got != "a.txt\nb.txt" {
		t.Fatalf("tree = %q", got)
	}
}

func TestAmend_EmptyMessageKeepsOriginal(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	commitAll(t, dir, "subject\n\nbody")

	id, err := Amend(dir, "")
	if err != nil {
		t.Fatalf("Amend: %v", err)
	}
	info, err := GetCommitInfo(dir, id)
	if err != nil {
		t.Fatalf("GetCommitInfo: %v", err)
	}
	if info.Summary() != "subject" || len(info.Parents) != 0 {
		t.Fatalf("amended root commit %+v", info)
	}
}

func TestAmend_MergeCommitKeepsParents(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	commitAll(t, dir, "base")
	runGit(t, dir, "checkout", "-q", "-b", "topic")
	writeFile(t, dir, "b.txt", "b\n")
	topic := commitAll(t, dir, "topic")
	runGit(t, dir, "checkout", "-q", "main")
	writeFile(t, dir, "c.txt", "c\n")
	ours := commitAll(t, dir, "main")
	runGit(t, dir, "merge", "-q", "--no-edit", "topic")

	id, err := Amend(dir, "merge topic\n")
	if err != nil {
		t.Fatalf("Amend: %v", err)
	}
	info, err := GetCommitInfo(dir, id)
	if err != nil {
		t.Fatalf("GetCommitInfo: %v", err)
	}
	if len(info.Parents) != 2 || info.Parents[0] != ours || info.Parents[1] != topic {
		t.Fatalf("parents = %v, want [%s %s]", info.Parents, ours.Short(), topic.Short())
	}
}

func TestAmend_Refused(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	if _, err := Amend(dir, "msg"); !errors.Is(err, ErrUnbornHead) {
		t.Fatalf("unborn HEAD: got %v", err)
	}

	merging, _ := conflictRepo(t)
	if _, err := MergeBranch(merging, "topic"); err != nil {
		t.Fatalf("MergeBranch: %v", err)
	}
	if _, err := Amend(merging, "msg"); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("during merge: got %v", err)
	}
}

func TestGetCommitFiles(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "keep.txt", "keep\n")
	writeFile(t, dir, "gone.txt", "gone\n")
	writeFile(t, dir, "old.txt", numberedLines(10))
	commitAll(t, dir, "init")
	writeFile(t, dir, "keep.txt", "kept\n")
	writeFile(t, dir, "new.txt", "new\n")
	runGit(t, dir, "rm", "-q", "gone.txt")
	runGit(t, dir, "mv", "old.txt", "renamed.txt")
	id := commitAll(t, dir, "change")

	got, err := GetCommitFiles(dir, id)
	if err != nil {
		t.Fatalf("GetCommitFiles: %v", err)
	}
	want := []StatusItem{
		{Path: "gone.txt", Status: StatusDeleted},
		{Path: "keep.txt", Status: StatusModified},
		{Path: "new.txt", Status: StatusNew},
		{Path: "renamed.txt", Status: StatusRenamed},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("GetCommitFiles = %+v, want %+v", got, want)
	}
}
