package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// FetchRemote fetches remote, reporting progress through fn. Credentials are
// the caller's concern; auth may be nil for anonymous and local remotes. A
// cancelled fetch, through fn or ctx, returns ErrCancelled with no ref
// updated.
func FetchRemote(ctx context.Context, repoPath, remote string, auth transport.AuthMethod, fn ProgressFunc) error {
	r, err := openRepo(repoPath)
	if err != nil {
		return err
	}
	if remote == "" {
		remote = gitlib.DefaultRemoteName
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	progress := newProgressWriter(fn, cancel)
	slog.Debug("fetch", slog.String("repo", r.root), slog.String("remote", remote))
	err = r.FetchContext(ctx, &gitlib.FetchOptions{
		RemoteName: remote,
		Auth:       auth,
		Progress:   progress,
	})
	switch {
	case err == nil, errors.Is(err, gitlib.NoErrAlreadyUpToDate):
		return nil
	case progress.wasCancelled(), errors.Is(err, context.Canceled):
		return ErrCancelled
	default:
		return fmt.Errorf("fetch %s: %w", remote, err)
	}
}
