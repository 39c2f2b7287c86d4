package git

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
)

// commitAt commits everything with fixed author and committer dates so the
// walk order does not depend on the clock.
func commitAt(t *testing.T, dir, msg string, ts int64, extraEnv ...string) CommitID {
	t.Helper()
	date := fmt.Sprintf("%d +0000", ts)
	env := append([]string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date}, extraEnv...)
	runGit(t, dir, "add", "-A")
	runGitEnv(t, dir, env, "commit", "-q", "--allow-empty", "-m", msg)
	return headID(t, dir)
}

func linearHistory(t *testing.T, n int) (string, []CommitID) {
	t.Helper()
	dir := createTestRepo(t)
	ids := make([]CommitID, 0, n)
	for i := 1; i <= n; i++ {
		writeFile(t, dir, "f.txt", numberedLines(i))
		ids = append(ids, commitAt(t, dir, fmt.Sprintf("commit %d", i), int64(1_700_000_000+i*60)))
	}
	slices.Reverse(ids)
	return dir, ids
}

func TestLogCommits_Linear(t *testing.T) {
	t.Parallel()

	dir, ids := linearHistory(t, 5)
	got, err := LogCommits(dir, LogOptions{})
	if err != nil {
		t.Fatalf("LogCommits: %v", err)
	}
	if !slices.Equal(got, ids) {
		t.Fatalf("LogCommits = %v, want %v", got, ids)
	}

	limited, err := LogCommits(dir, LogOptions{Limit: 2})
	if err != nil {
		t.Fatalf("LogCommits: %v", err)
	}
	if !slices.Equal(limited, ids[:2]) {
		t.Fatalf("limited walk must be a prefix: %v", limited)
	}
}

func TestLogWalker_PagesWithAfter(t *testing.T) {
	t.Parallel()

	dir, ids := linearHistory(t, 5)
	w, err := NewLogWalker(dir, LogOptions{})
	if err != nil {
		t.Fatalf("NewLogWalker: %v", err)
	}
	first, err := w.Read(2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	next, err := LogCommits(dir, LogOptions{After: first[len(first)-1], Limit: 2})
	if err != nil {
		t.Fatalf("LogCommits: %v", err)
	}
	if got := append(first, next...); !slices.Equal(got, ids[:4]) {
		t.Fatalf("paged walk = %v, want %v", got, ids[:4])
	}

	rest, err := w.Read(10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(rest) != 3 {
		t.Fatalf("expected the remaining 3 commits, got %d", len(rest))
	}
	if _, err := w.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestNewLogWalker_InvalidStart(t *testing.T) {
	t.Parallel()

	dir, _ := linearHistory(t, 1)
	missing := CommitID(plumbing.NewHash("0123456789012345678901234567890123456789"))
	if _, err := NewLogWalker(dir, LogOptions{Starts: []CommitID{missing}}); !errors.Is(err, ErrInvalidStartPoint) {
		t.Fatalf("expected ErrInvalidStartPoint, got %v", err)
	}
}

func TestLogCommits_InvalidAfter(t *testing.T) {
	t.Parallel()

	dir, ids := linearHistory(t, 5)
	missing := CommitID(plumbing.NewHash("0123456789012345678901234567890123456789"))
	if _, err := NewLogWalker(dir, LogOptions{After: missing, Limit: 2}); !errors.Is(err, ErrInvalidStartPoint) {
		t.Fatalf("missing After: expected ErrInvalidStartPoint, got %v", err)
	}

	// ids[0] is newer than the start, so the walk never reaches it.
	got, err := LogCommits(dir, LogOptions{Starts: []CommitID{ids[3]}, After: ids[0]})
	if !errors.Is(err, ErrInvalidStartPoint) {
		t.Fatalf("unreachable After: expected ErrInvalidStartPoint, got %v, %v", got, err)
	}
}

func TestLogCommits_EmptyRepository(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	got, err := LogCommits(dir, LogOptions{})
	if err != nil {
		t.Fatalf("LogCommits: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no commits, got %v", got)
	}
}

func TestLogCommits_MergeVisitsEachCommitOnce(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "base.txt", "base\n")
	base := commitAt(t, dir, "base", 1_700_000_000)
	runGit(t, dir, "checkout", "-q", "-b", "topic")
	writeFile(t, dir, "topic.txt", "topic\n")
	topic := commitAt(t, dir, "topic", 1_700_000_100)
	runGit(t, dir, "checkout", "-q", "main")
	writeFile(t, dir, "main.txt", "main\n")
	main := commitAt(t, dir, "main", 1_700_000_200)
	date := "1700000300 +0000"
	runGitEnv(t, dir, []string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date}, "merge", "-q", "--no-ff", "-m", "merge topic", "topic")
	merge := headID(t, dir)

	got, err := LogCommits(dir, LogOptions{})
	if err != nil {
		t.Fatalf("LogCommits: %v", err)
	}
	want := []CommitID{merge, main, topic, base}
	if !slices.Equal(got, want) {
		t.Fatalf("LogCommits = %v, want %v", got, want)
	}

	// Both branch heads as starts still yield each commit once.
	got, err = LogCommits(dir, LogOptions{Starts: []CommitID{topic, merge, topic}})
	if err != nil {
		t.Fatalf("LogCommits: %v", err)
	}
	if !slices.Equal(got, want) {
		t.Fatalf("LogCommits with starts = %v, want %v", got, want)
	}
}

func TestLogCommits_Filters(t *testing.T) {
	t.Parallel()

	dir := createTestRepo(t)
	writeFile(t, dir, "docs/readme.md", "hello\n")
	c1 := commitAt(t, dir, "add docs", 1_700_000_000)
	writeFile(t, dir, "src/main.go", "package main\n")
	c2 := commitAt(t, dir, "add code", 1_700_000_060,
		"GIT_AUTHOR_NAME=Alice Example", "GIT_AUTHOR_EMAIL=alice@example.com")
	writeFile(t, dir, "docs/readme.md", "hello again\n")
	c3 := commitAt(t, dir, "Fix typo", 1_700_000_120)

	tests := []struct {
		name string
		opts LogOptions
		want []CommitID
	}{
		{name: "author", opts: LogOptions{Author: "ALICE"}, want: []CommitID{c2}},
		{name: "path", opts: LogOptions{Path: "docs"}, want: []CommitID{c3, c1}},
		{name: "file_path", opts: LogOptions{Path: "src/main.go"}, want: []CommitID{c2}},
		{name: "message", opts: LogOptions{Search: &LogSearch{Term: "fix"}}, want: []CommitID{c3}},
		{name: "message_case_sensitive", opts: LogOptions{Search: &LogSearch{Term: "fix", CaseSensitive: true}}, want: nil},
		{name: "filenames", opts: LogOptions{Search: &LogSearch{Term: "main.go", Fields: SearchFilenames}}, want: []CommitID{c2}},
		{name: "authors", opts: LogOptions{Search: &LogSearch{Term: "alice@", Fields: SearchAuthors}}, want: []CommitID{c2}},
		{name: "combined", opts: LogOptions{Path: "docs", Search: &LogSearch{Term: "add", Fields: SearchAll}}, want: []CommitID{c1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := LogCommits(dir, tt.opts)
			if err != nil {
				t.Fatalf("LogCommits: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("LogCommits = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCommitsInfo(t *testing.T) {
	t.Parallel()

	dir, ids := linearHistory(t, 2)
	infos, err := GetCommitsInfo(dir, ids)
	if err != nil {
		t.Fatalf("GetCommitsInfo: %v", err)
	}
	if len(infos) != 2 || infos[0].Summary() != "commit 2" || infos[1].Summary() != "commit 1" {
		t.Fatalf("unexpected infos %+v", infos)
	}
	if len(infos[0].Parents) != 1 || infos[0].Parents[0] != ids[1] {
		t.Fatalf("unexpected parents %v", infos[0].Parents)
	}

	missing := CommitID(plumbing.NewHash("0123456789012345678901234567890123456789"))
	if _, err := GetCommitInfo(dir, missing); !errors.Is(err, ErrInvalidStartPoint) {
		t.Fatalf("expected ErrInvalidStartPoint, got %v", err)
	}
}
