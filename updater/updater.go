package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/byte4ever/image_updater/gitops/commitmsg"
	"github.com/byte4ever/image_updater/gitops/git"
)

var (
	// ErrNoManifests is returned when the repository
	// root holds no .yaml or .yml file.
	ErrNoManifests = errors.New(".yaml or .yml files not found")

	// ErrImageNotFound is returned when no manifest
	// was committed.
	ErrImageNotFound = errors.New("Image not found in files") //nolint:staticcheck // wire message

	// ErrInvalidRequest is returned by Request.Validate.
	ErrInvalidRequest = errors.New("invalid request")
)

// Status is the per-file result of an update run.
type Status string

// Statuses reported in Outcome.
const (
	StatusCommitted Status = "committed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Request asks for every container running Image to be
// moved to Version.
type Request struct {
	Image   string `json:"image"`
	Version string `json:"version"`
}

// Validate checks that both fields are set.
func (r Request) Validate() error {
	if r.Image == "" {
		return fmt.Errorf(
			"%w: image must be set", ErrInvalidRequest,
		)
	}

	if r.Version == "" {
		return fmt.Errorf(
			"%w: version must be set", ErrInvalidRequest,
		)
	}

	return nil
}

// Outcome records what happened to one candidate file.
type Outcome struct {
	Path   string
	Status Status
	Reason string
}

// Result aggregates the outcomes of an update run.
type Result struct {
	// UpdatedPaths lists committed files in listing
	// order.
	UpdatedPaths []string
	Outcomes     []Outcome
}

// Message renders the success message returned to
// callers, e.g. "Image version updated in ['a.yaml']".
func (r *Result) Message() string {
	quoted := make([]string, len(r.UpdatedPaths))

	for i, pa := range r.UpdatedPaths {
		quoted[i] = pyQuote(pa)
	}

	return "Image version updated in [" +
		strings.Join(quoted, ", ") + "]"
}

// pyQuote renders s the way Python's repr renders a
// str. Single quotes are used unless s holds a single
// quote and no double quote.
func pyQuote(s string) string {
	quote := '\''
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var b strings.Builder

	b.WriteRune(quote)

	for _, r := range s {
		switch {
		case r == quote || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case unicode.IsPrint(r):
			b.WriteRune(r)
		case r < 0x100:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r < 0x10000:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}

	b.WriteRune(quote)

	return b.String()
}

// Config holds the dependencies of a Service.
type Config struct {
	// Store is the repository to update.
	Store git.Store
	// CommitMessage is the commitmsg template used for
	// each commit. Defaults to
	// commitmsg.DefaultTemplate.
	CommitMessage string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Service applies image updates to a repository. It is
// safe for concurrent use when its Store is.
type Service struct {
	store   git.Store
	message string
	log     *slog.Logger
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config) (*Service, error) {
	const errCtx = "creating updater service"

	if cfg.Store == nil {
		return nil, fmt.Errorf(
			"%s: store must be set", errCtx,
		)
	}

	msg := cfg.CommitMessage
	if msg == "" {
		msg = commitmsg.DefaultTemplate
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		store:   cfg.Store,
		message: msg,
		log:     log,
	}, nil
}

// Update rewrites req.Image to req.Version in every
// root-level manifest and commits each changed file.
//
// It returns ErrNoManifests when the root holds no
// manifest and ErrImageNotFound, together with the
// per-file outcomes, when nothing was committed. A stale
// content token or a canceled context aborts the run.
func (s *Service) Update(
	ctx context.Context,
	req Request,
) (*Result, error) {
	const errCtx = "updating image"

	if err := req.Validate(); err != nil {
		return nil, err
	}

	entries, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	paths := manifestPaths(entries)
	if len(paths) == 0 {
		return nil, ErrNoManifests
	}

	res := &Result{}

	for _, pa := range paths {
		out, err := s.updateFile(ctx, pa, req)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, pa, err,
			)
		}

		res.Outcomes = append(res.Outcomes, out)

		if out.Status == StatusCommitted {
			res.UpdatedPaths = append(res.UpdatedPaths, pa)
		}
	}

	if len(res.UpdatedPaths) == 0 {
		return res, ErrImageNotFound
	}

	return res, nil
}

// updateFile runs the read, rewrite and commit steps for
// one file. Failures local to the file become a skipped
// or failed Outcome. Only stale-token rejections and
// context errors are returned.
func (s *Service) updateFile(
	ctx context.Context,
	path string,
	req Request,
) (Outcome, error) {
	log := s.log.With("path", path)

	log.Info("processing manifest")

	fi, err := s.store.ReadFile(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}

		log.Warn("cannot read manifest", "error", err)

		return failed(path, err), nil
	}

	doc, err := decodeManifest(fi.Content)
	if err != nil {
		log.Warn("cannot parse manifest", "error", err)

		return skipped(path, err.Error()), nil
	}

	obj, containers, err := locateContainers(doc)
	if err != nil {
		log.Info("skipping manifest", "reason", err)

		return skipped(path, err.Error()), nil
	}

	if RewriteContainers(log, containers, req) == 0 {
		return skipped(path, "no matching container"), nil
	}

	content, err := encodeManifest(obj)
	if err != nil {
		log.Warn("cannot encode manifest", "error", err)

		return failed(path, err), nil
	}

	err = s.store.WriteFile(ctx, git.Change{
		Path:    path,
		Content: content,
		Message: commitmsg.Render(s.message, commitmsg.Fields{
			Image:   req.Image,
			Version: req.Version,
			Path:    path,
		}),
		Token: fi.Token,
	})
	if err != nil {
		if errors.Is(err, git.ErrConflict) {
			return Outcome{}, err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}

		log.Warn("cannot commit manifest", "error", err)

		return failed(path, err), nil
	}

	log.Info("manifest updated", "version", req.Version)

	return Outcome{Path: path, Status: StatusCommitted}, nil
}

func manifestPaths(entries []git.Entry) []string {
	var paths []string

	for _, en := range entries {
		if en.Dir {
			continue
		}

		if strings.HasSuffix(en.Path, ".yaml") ||
			strings.HasSuffix(en.Path, ".yml") {
			paths = append(paths, en.Path)
		}
	}

	return paths
}

func skipped(path, reason string) Outcome {
	return Outcome{
		Path:   path,
		Status: StatusSkipped,
		Reason: reason,
	}
}

func failed(path string, err error) Outcome {
	return Outcome{
		Path:   path,
		Status: StatusFailed,
		Reason: err.Error(),
	}
}
