package backend

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestMergeArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rev  string
		opts MergeOptions
		want []string
	}{
		{name: "default", rev: "feature", want: []string{"merge", "--no-edit", "--no-stat", "feature"}},
		{name: "ff_only", rev: " origin/main ", opts: MergeOptions{FastForwardOnly: true}, want: []string{"merge", "--no-edit", "--no-stat", "--ff-only", "origin/main"}},
		{name: "no_ff", rev: "topic", opts: MergeOptions{NoFastForward: true}, want: []string{"merge", "--no-edit", "--no-stat", "--no-ff", "topic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := mergeArgs(tt.rev, tt.opts); !slices.Equal(got, tt.want) {
				t.Fatalf("mergeArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStashPushArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts StashOptions
		want []string
	}{
		{name: "default", want: []string{"stash", "push"}},
		{name: "untracked", opts: StashOptions{IncludeUntracked: true}, want: []string{"stash", "push", "--include-untracked"}},
		{
			name: "all",
			opts: StashOptions{Message: "wip", IncludeUntracked: true, KeepIndex: true},
			want: []string{"stash", "push", "--include-untracked", "--keep-index", "-m", "wip"},
		},
	}
	for _, tt := range tests {
		if got := stashPushArgs(tt.opts); !slices.Equal(got, tt.want) {
			t.Fatalf("%s: stashPushArgs() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestAbortArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   Operation
		want []string
	}{
		{op: OpMerge, want: []string{"merge", "--abort"}},
		{op: OpRebase, want: []string{"rebase", "--abort"}},
		{op: OpRevert, want: []string{"revert", "--abort"}},
		{op: OpCherryPick, want: []string{"cherry-pick", "--abort"}},
		{op: OpBisect, want: []string{"bisect", "reset"}},
	}
	for _, tt := range tests {
		got, err := abortArgs(tt.op)
		if err != nil {
			t.Fatalf("abortArgs(%s) error = %v", tt.op, err)
		}
		if !slices.Equal(got, tt.want) {
			t.Fatalf("abortArgs(%s) = %q, want %q", tt.op, got, tt.want)
		}
	}
	if _, err := abortArgs(Operation(42)); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestCommandErrorKeepsStderr(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	cmd := exec.Command("git", "init", "--quiet", dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init: %v: %s", err, out)
	}

	b, err := OpenCLI(dir)
	if err != nil {
		t.Fatalf("OpenCLI: %v", err)
	}
	err = b.Merge("does-not-exist", MergeOptions{})
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %T: %v", err, err)
	}
	if cmdErr.ExitCode() <= 0 {
		t.Fatalf("expected non-zero exit code, got %d", cmdErr.ExitCode())
	}
	if !strings.Contains(cmdErr.Error(), "git merge") {
		t.Fatalf("error lacks context: %v", cmdErr)
	}
}

func TestOpenCLI_ResolvesRoot(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	if out, err := exec.Command("git", "init", "--quiet", dir).CombinedOutput(); err != nil {
		t.Fatalf("git init: %v: %s", err, out)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	b, err := OpenCLI(sub)
	if err != nil {
		t.Fatalf("OpenCLI: %v", err)
	}
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := filepath.EvalSymlinks(b.(*gitCLI).path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("repository root = %q, want %q", got, want)
	}
}
