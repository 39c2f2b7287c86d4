package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/gitk-sync/internal/buildinfo"
	"github.com/thiagokokada/gitk-sync/internal/jobs"
)

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// app is what every subcommand shares once flags are parsed.
type app struct {
	repoPath string
	cfg      config
	pool     *jobs.Pool
	out      io.Writer
	errOut   io.Writer
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	var (
		configPath string
		verbose    bool
		workers    int
	)
	root := &cobra.Command{
		Use:           "gitk-sync",
		Short:         "Inspect repository state, history and diffs",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildinfo.VersionWithTags(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})))

			explicit := cmd.Flags().Changed("config")
			if !explicit {
				configPath = defaultConfigPath()
			}
			cfg, err := loadConfig(configPath, explicit)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.pool = jobs.NewPool(workers)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.pool != nil {
				a.pool.Close()
			}
		},
	}
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.repoPath, "repo", "C", ".", "path to the repository")
	flags.StringVar(&configPath, "config", "", "YAML configuration file")
	flags.BoolVar(&verbose, "verbose", false, "enable verbose logging")
	flags.IntVar(&workers, "jobs", 4, "number of repository operations run in parallel")

	root.AddCommand(
		a.stateCmd(),
		a.logCmd(),
		a.diffCmd(),
		a.statusCmd(),
		a.compareCmd(),
		a.fetchCmd(),
		a.watchCmd(),
		a.stashCmd(),
		a.filesCmd(),
		versionCmd(out),
	)
	return root.ExecuteContext(ctx)
}
