// Package local implements git.Store over a directory. Writes are guarded by
// a content digest. When the directory is a git work tree and Config.Commit is
// set, every write is also recorded as a git commit, which makes it suitable
// for development runs and end-to-end tests without a hosting platform.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/byte4ever/image_updater/gitops/digester"
	"github.com/byte4ever/image_updater/gitops/git"
)

// Config holds the settings needed to create a local
// file store.
type Config struct {
	// Dir is the directory acting as repository root.
	Dir string
	// Commit records each write as a git commit. Dir
	// must then be the top of a git work tree.
	Commit bool
}

// Provider serves files from a directory. The
// content-identity token is the SHA256 digest of the
// file content.
//
// Pattern: Strategy -- implements git.Store.
type Provider struct {
	mu   sync.Mutex
	dir  string
	repo *git.Repo
}

// NewProvider validates cfg and returns a Provider
// rooted at cfg.Dir.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating local provider"

	if cfg.Dir == "" {
		return nil, fmt.Errorf(
			"%s: dir must be set", errCtx,
		)
	}

	st, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if !st.IsDir() {
		return nil, fmt.Errorf(
			"%s: %s is not a directory", errCtx, cfg.Dir,
		)
	}

	pv := &Provider{dir: cfg.Dir}

	if cfg.Commit {
		pv.repo, err = git.OpenRepo(context.Background(), cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	return pv, nil
}

// ListFiles returns the directory entries of the root
// in lexical order.
func (p *Provider) ListFiles(
	ctx context.Context,
) ([]git.Entry, error) {
	const errCtx = "listing local repository root"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	des, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.Platform(err),
		)
	}

	entries := make([]git.Entry, 0, len(des))

	for _, de := range des {
		entries = append(entries, git.Entry{
			Path: de.Name(),
			Dir:  de.IsDir(),
		})
	}

	return entries, nil
}

// ReadFile returns the content of path relative to the
// root and its digest.
func (p *Provider) ReadFile(
	ctx context.Context,
	path string,
) (*git.File, error) {
	const errCtx = "reading local file"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	full, err := p.resolve(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	st, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.Platform(err),
		)
	}

	if st.IsDir() {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, git.ErrNotAFile,
		)
	}

	content, err := os.ReadFile(full) //nolint:gosec // resolved under root
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.Platform(err),
		)
	}

	return &git.File{
		Path:    path,
		Content: content,
		Token:   digester.Digest(content),
	}, nil
}

// WriteFile replaces the content of change.Path when
// its current digest still equals change.Token.
func (p *Provider) WriteFile(
	ctx context.Context,
	change git.Change,
) error {
	const errCtx = "writing local file"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	full, err := p.resolve(change.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ok, err := digester.Matches(full, change.Token)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !ok {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, change.Path, git.ErrConflict,
		)
	}

	if err := os.WriteFile(
		full, change.Content, 0o600,
	); err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, git.Platform(err),
		)
	}

	if p.repo == nil {
		slog.Info(
			"wrote file",
			"path", change.Path,
			"message", change.Message,
		)

		return nil
	}

	if err := p.repo.CommitFile(
		ctx, change.Path, change.Message,
	); err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx, git.Platform(err),
		)
	}

	sha, err := p.repo.HeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	slog.Info(
		"committed file",
		"path", change.Path,
		"commit", sha,
	)

	return nil
}

func (p *Provider) resolve(path string) (string, error) {
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf(
			"path %q escapes repository root", path,
		)
	}

	return filepath.Join(p.dir, path), nil
}
