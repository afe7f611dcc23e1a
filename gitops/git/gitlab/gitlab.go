package gitlab

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/image_updater/gitops/git"
)

// treePageSize is the page size requested when listing
// the repository tree.
const treePageSize = 100

// Config holds the settings needed to create a GitLab
// file store.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// Repo is the full project path
	// (e.g. "org/project").
	Repo string
	// Branch is read from and committed to. Defaults
	// to "main".
	Branch string
	// AccessToken is a personal or project access
	// token used for authentication. When empty
	// every call fails with git.ErrNoCredential.
	AccessToken string
}

// Provider reads and commits repository files on
// GitLab. The content-identity token is the file's
// last_commit_id.
//
// Pattern: Strategy -- implements git.Store.
type Provider struct {
	client   *gl.Client
	repo     string
	branch   string
	hasToken bool
}

// NewProvider validates cfg and returns a Provider
// ready to read and commit files.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab provider"

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	return &Provider{
		client:   client,
		repo:     cfg.Repo,
		branch:   branch,
		hasToken: cfg.AccessToken != "",
	}, nil
}

// ListFiles returns the entries at the repository
// root on the configured branch, following pagination.
func (p *Provider) ListFiles(
	ctx context.Context,
) ([]git.Entry, error) {
	const errCtx = "listing gitlab repository root"

	if !p.hasToken {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	ref := p.branch

	opts := &gl.ListTreeOptions{Ref: &ref}
	opts.PerPage = treePageSize
	opts.Page = 1

	var entries []git.Entry

	for {
		nodes, _, err := p.client.Repositories.ListTree(
			p.repo, opts, gl.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, git.Platform(err),
			)
		}

		for _, nd := range nodes {
			entries = append(entries, git.Entry{
				Path: nd.Path,
				Dir:  nd.Type == "tree",
			})
		}

		if len(nodes) < treePageSize {
			break
		}

		opts.Page++
	}

	return entries, nil
}

// ReadFile returns the decoded content of path and its
// last commit id.
func (p *Provider) ReadFile(
	ctx context.Context,
	path string,
) (*git.File, error) {
	const errCtx = "reading gitlab file"

	if !p.hasToken {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	ref := p.branch

	fi, _, err := p.client.RepositoryFiles.GetFile(
		p.repo,
		path,
		&gl.GetFileOptions{Ref: &ref},
		gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, git.Platform(err),
		)
	}

	content := []byte(fi.Content)

	if fi.Encoding == "base64" {
		content, err = base64.StdEncoding.DecodeString(
			fi.Content,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s: decode: %w", errCtx, path, err,
			)
		}
	}

	return &git.File{
		Path:    path,
		Content: content,
		Token:   fi.LastCommitID,
	}, nil
}

// WriteFile commits change to the configured branch.
// GitLab rejects a stale last_commit_id with HTTP 400
// and a "has changed since" message, which is reported
// as git.ErrConflict.
func (p *Provider) WriteFile(
	ctx context.Context,
	change git.Change,
) error {
	const errCtx = "committing gitlab file"

	if !p.hasToken {
		return fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	branch := p.branch
	content := string(change.Content)
	message := change.Message
	lastCommit := change.Token

	opts := &gl.UpdateFileOptions{
		Branch:        &branch,
		Content:       &content,
		CommitMessage: &message,
		LastCommitID:  &lastCommit,
	}

	_, resp, err := p.client.RepositoryFiles.UpdateFile(
		p.repo, change.Path, opts, gl.WithContext(ctx),
	)
	if err != nil {
		if isConflict(resp, err) {
			return fmt.Errorf(
				"%s: %s: %w",
				errCtx, change.Path, git.Conflict(err),
			)
		}

		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, change.Path, git.Platform(err),
		)
	}

	slog.Info(
		"committed file",
		"path", change.Path,
		"branch", branch,
	)

	return nil
}

func isConflict(resp *gl.Response, err error) bool {
	if resp == nil {
		return false
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		return strings.Contains(
			err.Error(), "has changed since",
		)
	default:
		return false
	}
}
