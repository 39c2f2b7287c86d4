package git

import (
	"errors"
	"slices"
	"strings"
	"testing"

	gitbackend "github.com/thiagokokada/gitk-sync/internal/git/backend"
)

func TestStashSave_ListAndPop(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "one\n")
	commitAll(t, dir, "init")

	if got, err := GetStashes(dir); err != nil || len(got) != 0 {
		t.Fatalf("GetStashes on fresh repo = %v, %v", got, err)
	}

	writeFile(t, dir, "a.txt", "first\n")
	first, err := StashSave(dir, StashOptions{Message: "first"})
	if err != nil {
		t.Fatalf("StashSave: %v", err)
	}
	if got := readFile(t, dir, "a.txt"); got != "one\n" {
		t.Fatalf("working tree after stash = %q", got)
	}
	writeFile(t, dir, "a.txt", "second\n")
	second, err := StashSave(dir, StashOptions{Message: "second"})
	if err != nil {
		t.Fatalf("StashSave: %v", err)
	}

	stashes, err := GetStashes(dir)
	if err != nil {
		t.Fatalf("GetStashes: %v", err)
	}
	if len(stashes) != 2 {
		t.Fatalf("stashes = %+v", stashes)
	}
	if stashes[0].ID != second || stashes[0].Index != 0 || stashes[1].ID != first || stashes[1].Index != 1 {
		t.Fatalf("stashes not newest first: %+v", stashes)
	}
	if stashes[0].ID != revID(t, dir, "stash@{0}") {
		t.Fatalf("stash@{0} mismatch")
	}
	if !strings.HasSuffix(stashes[1].Message, "first") {
		t.Fatalf("message = %q", stashes[1].Message)
	}

	conflicts, err := StashPop(dir, first)
	if err != nil || len(conflicts) != 0 {
		t.Fatalf("StashPop = %v, %v", conflicts, err)
	}
	if got := readFile(t, dir, "a.txt"); got != "first\n" {
		t.Fatalf("working tree after pop = %q", got)
	}
	stashes, err = GetStashes(dir)
	if err != nil {
		t.Fatalf("GetStashes: %v", err)
	}
	if len(stashes) != 1 || stashes[0].ID != second {
		t.Fatalf("stashes after pop = %+v", stashes)
	}
}

func TestStashSave_IncludeUntracked(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "one\n")
	commitAll(t, dir, "init")
	writeFile(t, dir, "new.txt", "new\n")

	if _, err := StashSave(dir, StashOptions{}); !errors.Is(err, ErrNothingToStash) {
		t.Fatalf("untracked only without IncludeUntracked: got %v", err)
	}
	id, err := StashSave(dir, StashOptions{IncludeUntracked: true})
	if err != nil {
		t.Fatalf("StashSave: %v", err)
	}
	if status, err := GetStatus(dir, StatusWorkdir); err != nil || len(status) != 0 {
		t.Fatalf("status after stash = %v, %v", status, err)
	}
	if _, err := StashApply(dir, id); err != nil {
		t.Fatalf("StashApply: %v", err)
	}
	if got := readFile(t, dir, "new.txt"); got != "new\n" {
		t.Fatalf("new.txt = %q", got)
	}
	if stashes, _ := GetStashes(dir); len(stashes) != 1 {
		t.Fatalf("apply must keep the entry, got %+v", stashes)
	}
}

func TestStashApply_Conflict(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "one\n")
	commitAll(t, dir, "init")
	writeFile(t, dir, "a.txt", "stashed\n")
	id, err := StashSave(dir, StashOptions{})
	if err != nil {
		t.Fatalf("StashSave: %v", err)
	}
	writeFile(t, dir, "a.txt", "head\n")
	commitAll(t, dir, "head")

	conflicts, err := StashPop(dir, id)
	if err != nil {
		t.Fatalf("StashPop: %v", err)
	}
	if !slices.Equal(conflicts, []string{"a.txt"}) {
		t.Fatalf("conflicts = %v", conflicts)
	}
	if stashes, _ := GetStashes(dir); len(stashes) != 1 {
		t.Fatalf("conflicted pop must keep the entry, got %+v", stashes)
	}

	runGit(t, dir, "reset", "-q", "--hard")
	if err := StashDrop(dir, id); err != nil {
		t.Fatalf("StashDrop: %v", err)
	}
	if stashes, err := GetStashes(dir); err != nil || len(stashes) != 0 {
		t.Fatalf("stashes after drop = %v, %v", stashes, err)
	}
	if err := StashDrop(dir, id); !errors.Is(err, ErrStashNotFound) {
		t.Fatalf("second drop: got %v", err)
	}
}

func TestStashSave_NothingToStash(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "one\n")
	commitAll(t, dir, "init")
	if _, err := StashSave(dir, StashOptions{}); !errors.Is(err, ErrNothingToStash) {
		t.Fatalf("expected ErrNothingToStash, got %v", err)
	}
}

func TestStashSave_RefusedDuringMerge(t *testing.T) {
	t.Parallel()

	dir, _ := conflictRepo(t)
	res, err := MergeBranch(dir, "topic")
	if err != nil || res.Kind != MergeConflicted {
		t.Fatalf("MergeBranch = %+v, %v", res, err)
	}
	if _, err := StashSave(dir, StashOptions{}); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("expected ErrOperationInProgress, got %v", err)
	}
}

func TestStashSave_PassesOptions(t *testing.T) {
	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "one\n")
	commitAll(t, dir, "init")

	var got gitbackend.StashOptions
	useFakeBackend(t, &fakeBackend{
		stashPushFunc: func(opts gitbackend.StashOptions) error {
			got = opts
			return nil
		},
	})
	want := StashOptions{Message: "wip", IncludeUntracked: true, KeepIndex: true}
	if _, err := StashSave(dir, want); !errors.Is(err, ErrNothingToStash) {
		t.Fatalf("push that adds no entry: got %v", err)
	}
	if got != gitbackend.StashOptions(want) {
		t.Fatalf("backend options = %+v", got)
	}
}
