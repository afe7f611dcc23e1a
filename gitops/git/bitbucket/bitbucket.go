package bitbucket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"resty.dev/v3"

	"github.com/byte4ever/image_updater/gitops/git"
)

const (
	requestTimeout = 30 * time.Second
	browsePageSize = "500"
)

// Config holds the settings needed to create a
// Bitbucket Server file store.
type Config struct {
	// APIEndpoint is the Bitbucket Server REST API
	// root (e.g. "https://bb.example.com/rest/api/1.0").
	APIEndpoint string
	// Project is the project key (e.g. "TM").
	Project string
	// Repo is the repository slug.
	Repo string
	// Branch is read from and committed to. Defaults
	// to "main".
	Branch string
	// User is the Bitbucket API username.
	User string
	// Password is the Bitbucket API password (or
	// personal access token). When empty every call
	// fails with git.ErrNoCredential.
	Password string
}

// Provider reads and commits repository files on
// Bitbucket Server. The content-identity token is the
// id of the latest commit touching the file.
//
// Pattern: Strategy -- implements git.Store.
type Provider struct {
	client      *resty.Client
	branch      string
	hasPassword bool
}

type browsePage struct {
	Children struct {
		Values []struct {
			Path struct {
				ToString string `json:"toString"`
			} `json:"path"`
			Type string `json:"type"`
		} `json:"values"`
		IsLastPage    bool `json:"isLastPage"`
		NextPageStart int  `json:"nextPageStart"`
	} `json:"children"`
}

type commitPage struct {
	Values []struct {
		ID string `json:"id"`
	} `json:"values"`
}

// NewProvider validates cfg and returns a Provider
// ready to read and commit files.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating bitbucket provider"

	if cfg.APIEndpoint == "" {
		return nil, fmt.Errorf(
			"%s: api endpoint must be set",
			errCtx,
		)
	}

	if cfg.Project == "" {
		return nil, fmt.Errorf(
			"%s: project must be set", errCtx,
		)
	}

	if cfg.Repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be set", errCtx,
		)
	}

	if cfg.User == "" {
		return nil, fmt.Errorf(
			"%s: user must be set", errCtx,
		)
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	base := fmt.Sprintf(
		"%s/projects/%s/repos/%s",
		strings.TrimSuffix(cfg.APIEndpoint, "/"),
		cfg.Project,
		cfg.Repo,
	)

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(requestTimeout).
		SetBasicAuth(cfg.User, cfg.Password)

	return &Provider{
		client:      client,
		branch:      branch,
		hasPassword: cfg.Password != "",
	}, nil
}

// Close releases the underlying HTTP client.
func (p *Provider) Close() error {
	return p.client.Close()
}

// ListFiles returns the entries at the repository
// root on the configured branch, following pagination.
func (p *Provider) ListFiles(
	ctx context.Context,
) ([]git.Entry, error) {
	const errCtx = "listing bitbucket repository root"

	if !p.hasPassword {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	var (
		entries []git.Entry
		start   = "0"
	)

	for {
		resp, err := p.client.R().
			SetContext(ctx).
			SetQueryParam("at", p.ref()).
			SetQueryParam("start", start).
			SetQueryParam("limit", browsePageSize).
			Get("/browse")
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, git.Platform(err),
			)
		}

		if err := checkResponse(resp); err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		var page browsePage

		if err := json.Unmarshal(
			resp.Bytes(), &page,
		); err != nil {
			return nil, fmt.Errorf(
				"%s: decode: %w", errCtx, err,
			)
		}

		for _, ch := range page.Children.Values {
			entries = append(entries, git.Entry{
				Path: ch.Path.ToString,
				Dir:  ch.Type == "DIRECTORY",
			})
		}

		if page.Children.IsLastPage {
			break
		}

		start = fmt.Sprint(page.Children.NextPageStart)
	}

	return entries, nil
}

// ReadFile returns the raw content of path as of the
// latest commit touching it on the configured branch.
func (p *Provider) ReadFile(
	ctx context.Context,
	path string,
) (*git.File, error) {
	const errCtx = "reading bitbucket file"

	if !p.hasPassword {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	commitID, err := p.latestCommit(ctx, path)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("path", path).
		SetQueryParam("at", commitID).
		Get("/raw/{path}")
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, git.Platform(err),
		)
	}

	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return &git.File{
		Path:    path,
		Content: resp.Bytes(),
		Token:   commitID,
	}, nil
}

// WriteFile commits change to the configured branch
// through the browse edit endpoint. Bitbucket answers
// 409 when the source commit is no longer the latest
// for the file, which is reported as git.ErrConflict.
func (p *Provider) WriteFile(
	ctx context.Context,
	change git.Change,
) error {
	const errCtx = "committing bitbucket file"

	if !p.hasPassword {
		return fmt.Errorf(
			"%s: %w", errCtx, git.ErrNoCredential,
		)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("path", change.Path).
		SetMultipartFormData(map[string]string{
			"content":        string(change.Content),
			"message":        change.Message,
			"branch":         p.branch,
			"sourceCommitId": change.Token,
		}).
		Put("/browse/{path}")
	if err != nil {
		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, change.Path, git.Platform(err),
		)
	}

	if resp.StatusCode() == http.StatusConflict {
		return fmt.Errorf(
			"%s: %s: %w",
			errCtx, change.Path, git.Conflict(statusError(resp)),
		)
	}

	if err := checkResponse(resp); err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, change.Path, err,
		)
	}

	slog.Info(
		"committed file",
		"path", change.Path,
		"branch", p.branch,
	)

	return nil
}

func (p *Provider) latestCommit(
	ctx context.Context,
	path string,
) (string, error) {
	const errCtx = "resolving latest commit"

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetQueryParam("until", p.ref()).
		SetQueryParam("limit", "1").
		Get("/commits")
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, git.Platform(err),
		)
	}

	if err := checkResponse(resp); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	var page commitPage

	if err := json.Unmarshal(
		resp.Bytes(), &page,
	); err != nil {
		return "", fmt.Errorf(
			"%s: decode: %w", errCtx, err,
		)
	}

	if len(page.Values) == 0 {
		return "", fmt.Errorf(
			"%s: no commit found", errCtx,
		)
	}

	return page.Values[0].ID, nil
}

func (p *Provider) ref() string {
	return "refs/heads/" + p.branch
}

// checkResponse turns a non-2xx response into a
// git.PlatformError carrying the status and body.
func checkResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	slog.Info(
		"bitbucket response",
		"status", resp.Status(),
		"body", resp.String(),
	)

	return git.Platform(statusError(resp))
}

func statusError(resp *resty.Response) error {
	if body := resp.String(); body != "" {
		return fmt.Errorf(
			"unexpected status %d: %s", resp.StatusCode(), body,
		)
	}

	return fmt.Errorf("unexpected status %d", resp.StatusCode())
}
