// Package main runs the image updater HTTP service. It selects a git hosting
// backend from flags, reads the platform credential from the environment and
// serves POST /update-image until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/byte4ever/image_updater/gitops/commitmsg"
	"github.com/byte4ever/image_updater/gitops/git"
	"github.com/byte4ever/image_updater/gitops/git/bitbucket"
	"github.com/byte4ever/image_updater/gitops/git/github"
	"github.com/byte4ever/image_updater/gitops/git/gitlab"
	"github.com/byte4ever/image_updater/gitops/git/local"
	"github.com/byte4ever/image_updater/server"
	"github.com/byte4ever/image_updater/updater"
)

const (
	readHeaderTimeout       = 10 * time.Second
	gracefulShutdownTimeout = 15 * time.Second
)

// storeFlags carries the backend-specific settings.
type storeFlags struct {
	branch       string
	ghRepoOwner  string
	ghRepo       string
	ghToken      string
	ghEnterprise string
	glHost       string
	glRepo       string
	glToken      string
	bbEndpoint   string
	bbProject    string
	bbRepo       string
	bbUser       string
	bbPassword   string
	localDir     string
	localCommit  bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running image_updater"

	listen := flag.String(
		"listen", ":8000",
		"HTTP listen address",
	)
	logLevel := flag.String(
		"log_level", "info",
		"Log level: debug, info, warn or error",
	)
	commitMessage := flag.String(
		"commit_message", commitmsg.DefaultTemplate,
		"Commit message template; {image}, {version} "+
			"and {path} are substituted",
	)
	rateLimit := flag.Int(
		"rate_limit", 0,
		"Update requests per minute per client IP, "+
			"0 disables limiting",
	)

	// Git provider selection.
	gitServer := flag.String(
		"git_server", "github",
		"Git hosting platform: github, gitlab, "+
			"bitbucket, or local",
	)
	branch := flag.String(
		"branch", "main",
		"Branch read from and committed to",
	)

	// GitHub-specific flags.
	ghRepoOwner := flag.String(
		"github_repo_owner", "",
		"GitHub repository owner",
	)
	ghRepo := flag.String(
		"github_repo", "",
		"GitHub repository name",
	)
	ghEnterprise := flag.String(
		"github_enterprise_host", "",
		"GitHub Enterprise hostname",
	)

	// GitLab-specific flags.
	glHost := flag.String(
		"gitlab_host", "",
		"GitLab instance URL",
	)
	glRepo := flag.String(
		"gitlab_repo", "",
		"GitLab project path (org/project)",
	)

	// Bitbucket-specific flags.
	bbEndpoint := flag.String(
		"bitbucket_api_endpoint", "",
		"Bitbucket Server REST API root "+
			"(e.g. https://bb.example.com/rest/api/1.0)",
	)
	bbProject := flag.String(
		"bitbucket_project", "",
		"Bitbucket project key",
	)
	bbRepo := flag.String(
		"bitbucket_repo", "",
		"Bitbucket repository slug",
	)
	bbUser := flag.String(
		"bitbucket_user", "",
		"Bitbucket API username",
	)

	localDir := flag.String(
		"local_dir", "",
		"Directory used as repository by the local backend",
	)
	localCommit := flag.Bool(
		"local_commit", false,
		"Record each local write as a git commit",
	)

	flag.Parse()

	level, err := parseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	log := slog.New(slog.NewJSONHandler(
		os.Stderr, &slog.HandlerOptions{Level: level},
	))
	slog.SetDefault(log)

	// Credentials only come from the environment.
	store, err := newStore(*gitServer, storeFlags{
		branch:       *branch,
		ghRepoOwner:  *ghRepoOwner,
		ghRepo:       *ghRepo,
		ghToken:      os.Getenv("GITHUB_TOKEN"),
		ghEnterprise: *ghEnterprise,
		glHost:       *glHost,
		glRepo:       *glRepo,
		glToken:      os.Getenv("GITLAB_TOKEN"),
		bbEndpoint:   *bbEndpoint,
		bbProject:    *bbProject,
		bbRepo:       *bbRepo,
		bbUser:       *bbUser,
		bbPassword:   os.Getenv("BITBUCKET_PASSWORD"),
		localDir:     *localDir,
		localCommit:  *localCommit,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	defer closeStore(log, store)

	svc, err := updater.NewService(updater.Config{
		Store:         store,
		CommitMessage: *commitMessage,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	handler, err := server.New(server.Config{
		Updater:   svc,
		RateLimit: *rateLimit,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	httpServer := &http.Server{
		Addr:              *listen,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info(
			"listening",
			"addr", *listen,
			"git_server", *gitServer,
			"branch", *branch,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: serve: %w", errCtx, err)
		}

		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), gracefulShutdownTimeout,
	)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", errCtx, err)
	}

	return nil
}

// closeStore releases the connections held by stores
// that own a client.
func closeStore(log *slog.Logger, store git.Store) {
	cl, ok := store.(io.Closer)
	if !ok {
		return
	}

	if err := cl.Close(); err != nil {
		log.Warn("closing git store", "error", err)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText(
		[]byte(strings.ToUpper(s)),
	); err != nil {
		return 0, fmt.Errorf("parsing log level: %w", err)
	}

	return level, nil
}

// newStore creates a git.Store based on the server
// name. A missing credential is not an error here:
// the store then fails every call with
// git.ErrNoCredential. Pattern: Factory -- selects
// platform implementation at runtime.
func newStore(
	server string,
	sf storeFlags,
) (git.Store, error) {
	const errCtx = "creating git store"

	switch server {
	case "github":
		p, err := github.NewProvider(github.Config{
			RepoOwner:      sf.ghRepoOwner,
			Repo:           sf.ghRepo,
			Branch:         sf.branch,
			AccessToken:    sf.ghToken,
			EnterpriseHost: sf.ghEnterprise,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "gitlab":
		p, err := gitlab.NewProvider(gitlab.Config{
			Host:        sf.glHost,
			Repo:        sf.glRepo,
			Branch:      sf.branch,
			AccessToken: sf.glToken,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "bitbucket":
		p, err := bitbucket.NewProvider(
			bitbucket.Config{
				APIEndpoint: sf.bbEndpoint,
				Project:     sf.bbProject,
				Repo:        sf.bbRepo,
				Branch:      sf.branch,
				User:        sf.bbUser,
				Password:    sf.bbPassword,
			},
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	case "local":
		p, err := local.NewProvider(local.Config{
			Dir:    sf.localDir,
			Commit: sf.localCommit,
		})
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return p, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown server %q", errCtx, server,
		)
	}
}
