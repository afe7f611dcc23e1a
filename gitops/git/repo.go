package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/byte4ever/image_updater/gitops/exec"
)

// Repo is a git working tree driven through the git
// command line. Create with OpenRepo.
type Repo struct {
	// Dir is the filesystem location of the work tree.
	Dir string

	git exec.Runner
}

// gitEnv keeps git from prompting on a terminal the
// service does not have.
var gitEnv = []string{"GIT_TERMINAL_PROMPT=0"}

// OpenRepo checks that dir is inside a git work tree and
// returns a Repo for it.
func OpenRepo(ctx context.Context, dir string) (*Repo, error) {
	const errCtx = "opening repository"

	run := exec.Runner{Dir: dir, Env: gitEnv}

	out, err := run.Output(
		ctx, "git", "rev-parse", "--is-inside-work-tree",
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if strings.TrimSpace(out) != "true" {
		return nil, fmt.Errorf(
			"%s: %s is not a work tree", errCtx, dir,
		)
	}

	return &Repo{Dir: dir, git: run}, nil
}

// CommitFile stages path and records a commit with
// message. A commit is created even when the content
// did not change.
func (r *Repo) CommitFile(
	ctx context.Context,
	path string,
	message string,
) error {
	const errCtx = "committing file"

	if _, err := r.git.Output(
		ctx, "git", "add", "--", path,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := r.git.Output(
		ctx, "git", "commit", "--allow-empty", "-m", message,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// HeadCommit returns the id of the current HEAD commit.
func (r *Repo) HeadCommit(ctx context.Context) (string, error) {
	const errCtx = "resolving head commit"

	out, err := r.git.Output(ctx, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return strings.TrimSpace(out), nil
}
