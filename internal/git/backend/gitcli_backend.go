package backend

import (
	"fmt"
	"strings"
)

func (g *gitCLI) Merge(rev string, opts MergeOptions) error {
	_, err := g.runGitCommand(mergeArgs(rev, opts), "git merge")
	return err
}

func (g *gitCLI) Rebase(upstream string) error {
	upstream = strings.TrimSpace(upstream)
	if upstream == "" {
		return fmt.Errorf("upstream not specified")
	}
	_, err := g.runGitCommand([]string{"rebase", "--no-autostash", upstream}, "git rebase")
	return err
}

func (g *gitCLI) RebaseContinue() error {
	_, err := g.runGitCommand([]string{"-c", "core.editor=true", "rebase", "--continue"}, "git rebase --continue")
	return err
}

func (g *gitCLI) Abort(op Operation) error {
	args, err := abortArgs(op)
	if err != nil {
		return err
	}
	_, err = g.runGitCommand(args, "git "+strings.Join(args, " "))
	return err
}

func mergeArgs(rev string, opts MergeOptions) []string {
	args := []string{"merge", "--no-edit", "--no-stat"}
	switch {
	case opts.FastForwardOnly:
		args = append(args, "--ff-only")
	case opts.NoFastForward:
		args = append(args, "--no-ff")
	}
	return append(args, strings.TrimSpace(rev))
}

func (g *gitCLI) StashPush(opts StashOptions) error {
	_, err := g.runGitCommand(stashPushArgs(opts), "git stash push")
	return err
}

func (g *gitCLI) StashApply(rev string) error {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return fmt.Errorf("stash not specified")
	}
	_, err := g.runGitCommand([]string{"stash", "apply", rev}, "git stash apply")
	return err
}

func (g *gitCLI) StashDrop(index int) error {
	if index < 0 {
		return fmt.Errorf("invalid stash index %d", index)
	}
	_, err := g.runGitCommand([]string{"stash", "drop", fmt.Sprintf("stash@{%d}", index)}, "git stash drop")
	return err
}

func stashPushArgs(opts StashOptions) []string {
	args := []string{"stash", "push"}
	if opts.IncludeUntracked {
		args = append(args, "--include-untracked")
	}
	if opts.KeepIndex {
		args = append(args, "--keep-index")
	}
	if opts.Message != "" {
		args = append(args, "-m", opts.Message)
	}
	return args
}

func abortArgs(op Operation) ([]string, error) {
	switch op {
	case OpMerge:
		return []string{"merge", "--abort"}, nil
	case OpRebase:
		return []string{"rebase", "--abort"}, nil
	case OpRevert:
		return []string{"revert", "--abort"}, nil
	case OpCherryPick:
		return []string{"cherry-pick", "--abort"}, nil
	case OpBisect:
		return []string{"bisect", "reset"}, nil
	default:
		return nil, fmt.Errorf("abort: unsupported operation %s", op)
	}
}
