package git

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, ".git"), name, content)
}

func TestParseHeads(t *testing.T) {
	t.Parallel()

	a := "1111111111111111111111111111111111111111"
	b := "2222222222222222222222222222222222222222"
	heads, err := parseHeads([]byte(a + "\n\n" + b + "\n"))
	if err != nil {
		t.Fatalf("parseHeads: %v", err)
	}
	if len(heads) != 2 || heads[0].String() != a || heads[1].String() != b {
		t.Fatalf("unexpected heads %v", heads)
	}
	if _, err := parseHeads([]byte("not-a-hash\n")); err == nil {
		t.Fatalf("expected malformed head to fail")
	}
}

func TestRepoStateOf_Clean(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	commitAll(t, dir, "init")

	if st := mustState(t, dir); !st.IsClean() {
		t.Fatalf("expected clean state, got %s", st.Kind)
	}
}

func TestRepoStateOf_Markers(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	head := commitAll(t, dir, "init")

	writeGitFile(t, dir, "MERGE_HEAD", head.String()+"\n")
	writeGitFile(t, dir, "MERGE_MSG", "Merge branch 'topic'\n")
	st := mustState(t, dir)
	if st.Kind != StateMerge || len(st.Heads) != 1 || st.Heads[0] != head {
		t.Fatalf("unexpected merge state %+v", st)
	}
	if st.Message != "Merge branch 'topic'\n" {
		t.Fatalf("unexpected merge message %q", st.Message)
	}
	os.Remove(filepath.Join(dir, ".git", "MERGE_HEAD"))

	writeGitFile(t, dir, "REVERT_HEAD", head.String()+"\n")
	if st := mustState(t, dir); st.Kind != StateRevert || len(st.Heads) != 1 {
		t.Fatalf("unexpected revert state %+v", st)
	}
	os.Remove(filepath.Join(dir, ".git", "REVERT_HEAD"))

	writeGitFile(t, dir, "CHERRY_PICK_HEAD", head.String()+"\n")
	if st := mustState(t, dir); st.Kind != StateCherryPick {
		t.Fatalf("unexpected cherry-pick state %+v", st)
	}
	os.Remove(filepath.Join(dir, ".git", "CHERRY_PICK_HEAD"))

	writeGitFile(t, dir, "BISECT_LOG", "# bisect log\n")
	if st := mustState(t, dir); st.Kind != StateBisect {
		t.Fatalf("unexpected bisect state %+v", st)
	}
	os.Remove(filepath.Join(dir, ".git", "BISECT_LOG"))

	if st := mustState(t, dir); !st.IsClean() {
		t.Fatalf("expected clean state after removing markers, got %s", st.Kind)
	}
}

func TestRepoStateOf_RebaseProgress(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	head := commitAll(t, dir, "init")

	writeGitFile(t, dir, "rebase-merge/head-name", "refs/heads/topic\n")
	writeGitFile(t, dir, "rebase-merge/onto", head.String()+"\n")
	writeGitFile(t, dir, "rebase-merge/msgnum", "2\n")
	writeGitFile(t, dir, "rebase-merge/end", "5\n")
	// A merge marker left behind by a conflicting pick must not hide the rebase.
	writeGitFile(t, dir, "MERGE_HEAD", head.String()+"\n")

	st := mustState(t, dir)
	if st.Kind != StateRebase || st.Rebase == nil {
		t.Fatalf("unexpected state %+v", st)
	}
	want := RebaseProgress{HeadName: "topic", Onto: head, Step: 2, Total: 5}
	if *st.Rebase != want {
		t.Fatalf("rebase progress = %+v, want %+v", *st.Rebase, want)
	}
}

func TestRepoStateOf_RebaseApply(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "a.txt", "a\n")
	commitAll(t, dir, "init")

	writeGitFile(t, dir, "rebase-apply/next", "1\n")
	writeGitFile(t, dir, "rebase-apply/last", "3\n")
	st := mustState(t, dir)
	if st.Kind != StateRebase || st.Rebase.Step != 1 || st.Rebase.Total != 3 {
		t.Fatalf("unexpected state %+v", st)
	}
}
