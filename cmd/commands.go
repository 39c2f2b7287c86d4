package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-sync/internal/buildinfo"
	"github.com/thiagokokada/gitk-sync/internal/git"
	"github.com/thiagokokada/gitk-sync/internal/git/backend"
	"github.com/thiagokokada/gitk-sync/internal/jobs"
	"github.com/thiagokokada/gitk-sync/internal/watch"
)

func versionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(out, "gitk-sync %s\n", buildinfo.VersionWithTags())
			if v, err := backend.GitVersion(); err != nil {
				fmt.Fprintf(out, "git: %v\n", err)
			} else {
				fmt.Fprintf(out, "%s (minimum %s)\n", v, backend.MinGitVersion())
			}
		},
	}
}

func (a *app) read(ctx context.Context, fn func() error) error {
	return a.pool.Do(ctx, a.repoPath, jobs.Read, fn)
}

func (a *app) stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the workflow in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st git.RepoState
			err := a.read(cmd.Context(), func() (err error) {
				st, err = git.RepoStateOf(a.repoPath)
				return err
			})
			if err != nil {
				return err
			}
			printState(a.out, st)
			return nil
		},
	}
}

func printState(out io.Writer, st git.RepoState) {
	fmt.Fprintln(out, st.Kind)
	for _, h := range st.Heads {
		fmt.Fprintf(out, "head %s\n", h)
	}
	if r := st.Rebase; r != nil {
		fmt.Fprintf(out, "rebasing %s onto %s (%d/%d)\n", r.HeadName, r.Onto.Short(), r.Step, r.Total)
	}
}

func (a *app) logCmd() *cobra.Command {
	var (
		opts   git.LogOptions
		after  string
		search string
		fields []string
	)
	cmd := &cobra.Command{
		Use:   "log [commit...]",
		Short: "List commits newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				opts.Limit = a.cfg.Log.Limit
			}
			for _, arg := range args {
				id, err := git.ParseCommitID(arg)
				if err != nil {
					return err
				}
				opts.Starts = append(opts.Starts, id)
			}
			if after != "" {
				id, err := git.ParseCommitID(after)
				if err != nil {
					return err
				}
				opts.After = id
			}
			if search != "" {
				f, err := parseSearchFields(fields)
				if err != nil {
					return err
				}
				opts.Search = &git.LogSearch{Term: search, Fields: f}
			}
			var infos []git.CommitInfo
			err := a.read(cmd.Context(), func() error {
				ids, err := git.LogCommits(a.repoPath, opts)
				if err != nil {
					return err
				}
				infos, err = git.GetCommitsInfo(a.repoPath, ids)
				return err
			})
			if err != nil {
				return err
			}
			for _, info := range infos {
				fmt.Fprintf(a.out, "%s %s %s\n", info.ID.Short(), info.Time().Format("2006-01-02"), info.Summary())
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of commits (0 = all)")
	flags.StringVar(&after, "after", "", "continue a previous listing after this commit")
	flags.StringVar(&opts.Author, "author", "", "only commits whose author contains this text")
	flags.StringVar(&opts.Path, "path", "", "only commits changing this file or directory")
	flags.StringVar(&search, "grep", "", "only commits matching this text")
	flags.StringSliceVar(&fields, "grep-in", []string{"message"}, "fields searched by --grep: message, files, authors")
	return cmd
}

func parseSearchFields(names []string) (git.LogSearchField, error) {
	var f git.LogSearchField
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "message":
			f |= git.SearchMessage
		case "files", "filenames":
			f |= git.SearchFilenames
		case "authors", "author":
			f |= git.SearchAuthors
		case "all":
			f |= git.SearchAll
		default:
			return 0, fmt.Errorf("unknown search field %q", name)
		}
	}
	return f, nil
}

func (a *app) diffCmd() *cobra.Command {
	var (
		staged       bool
		contextLines int
	)
	cmd := &cobra.Command{
		Use:   "diff [path...]",
		Short: "Show unstaged, or with --staged staged, changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.diffOptions()
			if cmd.Flags().Changed("unified") {
				opts.ContextLines = contextLines
			}
			diffs, err := a.diffPaths(cmd.Context(), args, staged, opts)
			if err != nil {
				return err
			}
			for _, d := range diffs {
				printFileDiff(a.out, d)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&staged, "staged", false, "compare HEAD with the index")
	cmd.Flags().IntVarP(&contextLines, "unified", "U", 3, "lines of context")
	return cmd
}

// diffPaths diffs every path as its own pool job, keeping argument order.
func (a *app) diffPaths(ctx context.Context, paths []string, staged bool, opts git.DiffOptions) ([]git.FileDiff, error) {
	if len(paths) == 0 {
		from, to := git.SideIndex, git.SideWorkdir
		if staged {
			from, to = git.SideHead, git.SideIndex
		}
		var diffs []git.FileDiff
		err := a.read(ctx, func() (err error) {
			diffs, err = git.DiffTrees(a.repoPath, from, to, opts)
			return err
		})
		return diffs, err
	}
	diffs := make([]git.FileDiff, len(paths))
	results := make([]<-chan error, len(paths))
	for i, p := range paths {
		results[i] = a.pool.Go(ctx, a.repoPath, jobs.Read, func() (err error) {
			diffs[i], err = git.GetDiff(a.repoPath, p, staged, opts)
			return err
		})
	}
	var errs []error
	for _, ch := range results {
		errs = append(errs, <-ch)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	changed := diffs[:0]
	for _, d := range diffs {
		if d.Status != git.DeltaUnmodified {
			changed = append(changed, d)
		}
	}
	return changed, nil
}

func printFileDiff(out io.Writer, d git.FileDiff) {
	switch d.Status {
	case git.DeltaRenamed:
		fmt.Fprintf(out, "%s %s -> %s (%d%%)\n", d.Status, d.OldPath, d.NewPath, d.Similarity)
	default:
		fmt.Fprintf(out, "%s %s\n", d.Status, d.Path())
	}
	if d.Binary {
		fmt.Fprintln(out, "Binary files differ")
		return
	}
	for _, h := range d.Hunks {
		fmt.Fprintln(out, h.Header())
		for _, l := range h.Lines {
			fmt.Fprintf(out, "%s%s\n", l.Origin, l.Content)
			if l.NoNewline {
				fmt.Fprintln(out, `\ No newline at end of file`)
			}
		}
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List staged and unstaged paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var staged, unstaged []git.StatusItem
			err := a.read(cmd.Context(), func() (err error) {
				if staged, err = git.GetStatus(a.repoPath, git.StatusStage); err != nil {
					return err
				}
				unstaged, err = git.GetStatus(a.repoPath, git.StatusWorkdir)
				return err
			})
			if err != nil {
				return err
			}
			for _, it := range staged {
				fmt.Fprintf(a.out, "staged   %-10s %s\n", it.Status, it.Path)
			}
			for _, it := range unstaged {
				fmt.Fprintf(a.out, "unstaged %-10s %s\n", it.Status, it.Path)
			}
			return nil
		},
	}
}

func (a *app) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare [branch]",
		Short: "Count commits ahead of and behind the upstream",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var branch string
			var cmp git.BranchCompare
			err := a.read(cmd.Context(), func() (err error) {
				if len(args) > 0 {
					branch = args[0]
				} else if branch, err = git.CurrentBranch(a.repoPath); err != nil {
					return err
				}
				if branch == "" {
					return errors.New("HEAD is detached; name a branch")
				}
				cmp, err = git.BranchCompareUpstream(a.repoPath, branch)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s: ahead %d, behind %d\n", branch, cmp.Ahead, cmp.Behind)
			return nil
		},
	}
}

func (a *app) fetchCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "fetch [remote]",
		Short: "Fetch a remote, origin by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote := ""
			if len(args) > 0 {
				remote = args[0]
			}
			progress := func(ev git.ProgressEvent) git.ProgressDecision {
				if !quiet {
					if ev.Total > 0 {
						fmt.Fprintf(a.errOut, "%s %d/%d\n", ev.Phase, ev.Current, ev.Total)
					} else {
						fmt.Fprintf(a.errOut, "%s %d\n", ev.Phase, ev.Current)
					}
				}
				return git.ProgressContinue
			}
			return a.pool.Do(cmd.Context(), a.repoPath, jobs.Write, func() error {
				return git.FetchRemote(cmd.Context(), a.repoPath, remote, nil, progress)
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report progress")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the repository state whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var last *git.StateKind
			w, err := watch.New(a.repoPath, watch.DefaultDelay, func(ev watch.Event) {
				if ev.Err != nil {
					fmt.Fprintf(a.errOut, "error: %v\n", ev.Err)
					return
				}
				if last != nil && *last == ev.State.Kind {
					return
				}
				kind := ev.State.Kind
				last = &kind
				printState(a.out, ev.State)
			})
			if err != nil {
				return err
			}
			<-cmd.Context().Done()
			return w.Close()
		},
	}
}

func (a *app) stashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stash",
		Short: "List stash entries newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var stashes []git.StashInfo
			err := a.read(cmd.Context(), func() (err error) {
				stashes, err = git.GetStashes(a.repoPath)
				return err
			})
			if err != nil {
				return err
			}
			for _, s := range stashes {
				fmt.Fprintf(a.out, "stash@{%d} %s %s\n", s.Index, s.ID.Short(), s.Message)
			}
			return nil
		},
	}
}

func (a *app) filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files <commit>",
		Short: "List the paths a commit changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := git.ParseCommitID(args[0])
			if err != nil {
				return err
			}
			var items []git.StatusItem
			err = a.read(cmd.Context(), func() (err error) {
				items, err = git.GetCommitFiles(a.repoPath, id)
				return err
			})
			if err != nil {
				return err
			}
			for _, it := range items {
				fmt.Fprintf(a.out, "%-10s %s\n", it.Status, it.Path)
			}
			return nil
		},
	}
}
