package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/image_updater/gitops/git"
)

// Config holds the settings needed to create a GitHub
// file store.
type Config struct {
	// RepoOwner is the GitHub user or organisation
	// that owns the repository.
	RepoOwner string
	// Repo is the repository name (without owner).
	Repo string
	// Branch is read from and committed to. Defaults
	// to "main".
	Branch string
	// AccessToken is a personal access token or
	// GitHub App token used for authentication. When
	// empty every call fails with git.ErrNoCredential.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// BaseURL overrides the REST API root
	// (e.g. "http://127.0.0.1:8080/"). It takes
	// precedence over EnterpriseHost.
	BaseURL string
}

// Provider reads and commits repository files on
// GitHub.
//
// Pattern: Strategy -- implements git.Store.
type Provider struct {
	client    *gh.Client
	repoOwner string
	repo      string
	branch    string
	hasToken  bool
}

// NewProvider validates cfg and returns a Provider
// ready to read and commit files.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.RepoOwner == "" {
		return nil, fmt.Errorf(
			"%s: repo owner must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	client := gh.NewClient(nil)
	if cfg.AccessToken != "" {
		client = client.WithAuthToken(cfg.AccessToken)
	}

	switch {
	case cfg.BaseURL != "":
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: base url: %w", errCtx, err,
			)
		}

		client.BaseURL = u

	case cfg.EnterpriseHost != "":
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	return &Provider{
		client:    client,
		repoOwner: cfg.RepoOwner,
		repo:      cfg.Repo,
		branch:    branch,
		hasToken:  cfg.AccessToken != "",
	}, nil
}

// ListFiles returns the entries at the repository
// root on the configured branch.
func (p *Provider) ListFiles(
	ctx context.Context,
) ([]git.Entry, error) {
	const errCtx = "listing github repository root"

	if !p.hasToken {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	_, dir, resp, err := p.client.Repositories.GetContents(
		ctx, p.repoOwner, p.repo, "", p.refOptions(),
	)
	if err != nil {
		logResponse(resp)

		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.Platform(err),
		)
	}

	entries := make([]git.Entry, 0, len(dir))

	for _, rc := range dir {
		entries = append(entries, git.Entry{
			Path: rc.GetPath(),
			Dir:  rc.GetType() == "dir",
		})
	}

	return entries, nil
}

// ReadFile returns the decoded content of path and its
// blob sha.
func (p *Provider) ReadFile(
	ctx context.Context,
	path string,
) (*git.File, error) {
	const errCtx = "reading github file"

	if !p.hasToken {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	fc, _, resp, err := p.client.Repositories.GetContents(
		ctx, p.repoOwner, p.repo, path, p.refOptions(),
	)
	if err != nil {
		logResponse(resp)

		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, git.Platform(err),
		)
	}

	if fc == nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, git.ErrNotAFile,
		)
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: decode: %w", errCtx, path, err,
		)
	}

	return &git.File{
		Path:    path,
		Content: []byte(content),
		Token:   fc.GetSHA(),
	}, nil
}

// WriteFile commits change to the configured branch.
// An HTTP 409 (sha mismatch) is reported as
// git.ErrConflict.
func (p *Provider) WriteFile(
	ctx context.Context,
	change git.Change,
) error {
	const errCtx = "committing github file"

	if !p.hasToken {
		return fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	message := change.Message
	sha := change.Token
	branch := p.branch

	opts := &gh.RepositoryContentFileOptions{
		Message: &message,
		Content: change.Content,
		SHA:     &sha,
		Branch:  &branch,
	}

	res, resp, err := p.client.Repositories.UpdateFile(
		ctx, p.repoOwner, p.repo, change.Path, opts,
	)
	if err != nil {
		if resp != nil &&
			resp.StatusCode == http.StatusConflict {
			return fmt.Errorf(
				"%s: %s: %w",
				errCtx, change.Path, git.Conflict(err),
			)
		}

		logResponse(resp)

		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, change.Path, git.Platform(err),
		)
	}

	slog.Info(
		"committed file",
		"path", change.Path,
		"commit", res.Commit.GetSHA(),
	)

	return nil
}

func (p *Provider) refOptions() *gh.RepositoryContentGetOptions {
	return &gh.RepositoryContentGetOptions{Ref: p.branch}
}

// logResponse logs the response body for debugging.
func logResponse(resp *gh.Response) {
	if resp == nil || resp.Body == nil {
		return
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn(
			"cannot read response body",
			"error", err,
		)

		return
	}

	if len(rb) > 0 {
		slog.Warn(
			"github response",
			"status", resp.StatusCode,
			"body", string(rb),
		)
	}
}
