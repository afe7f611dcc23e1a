package git

import (
	"context"
	"errors"
)

// Pattern: Strategy -- swap git platform without
// changing update logic.

var (
	// ErrNoCredential is returned by every Store call
	// when no access token was configured.
	ErrNoCredential = errors.New(
		"no access token configured",
	)
	// ErrConflict is returned by WriteFile when the
	// file changed since its token was read.
	ErrConflict = errors.New(
		"file changed since it was read",
	)
	// ErrNotAFile is returned by ReadFile when the
	// path names a directory or other non-file entry.
	ErrNotAFile = errors.New("not a file")
)

// PlatformError carries an error reported by a hosting
// platform client, unchanged. Stores wrap it in their
// own context; Cause recovers it for callers that must
// show the platform's text as-is.
type PlatformError struct {
	Err error
	// Conflict marks a write rejected for a stale
	// token. Such errors match ErrConflict.
	Conflict bool
}

// Platform wraps err as a PlatformError.
func Platform(err error) error {
	return &PlatformError{Err: err}
}

// Conflict wraps err as a PlatformError matching
// ErrConflict.
func Conflict(err error) error {
	return &PlatformError{Err: err, Conflict: true}
}

func (e *PlatformError) Error() string {
	return e.Err.Error()
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Is reports conflicts as ErrConflict.
func (e *PlatformError) Is(target error) bool {
	return e.Conflict && target == ErrConflict
}

// Cause returns the platform error wrapped in err. When
// there is none it returns the innermost error of the
// chain, such as ErrNoCredential.
func Cause(err error) error {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Err
	}

	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}

		err = next
	}
}

// Store reads and commits files at the root of one
// repository branch on a git hosting platform.
type Store interface {
	// ListFiles returns the entries at the repository
	// root, in platform listing order.
	ListFiles(ctx context.Context) ([]Entry, error)
	// ReadFile returns the content of path and its
	// current content-identity token.
	ReadFile(ctx context.Context, path string) (*File, error)
	// WriteFile commits new content for an existing
	// file. The commit is rejected with ErrConflict
	// when the change token is stale.
	WriteFile(ctx context.Context, change Change) error
}

// Entry is one item of a repository root listing.
type Entry struct {
	// Path is the entry path relative to the
	// repository root.
	Path string
	// Dir reports whether the entry is a directory.
	Dir bool
}

// File is the content of a repository file as read
// from the platform.
type File struct {
	Path    string
	Content []byte
	// Token identifies the exact content that was
	// read (blob sha, last commit id, digest). It is
	// opaque to callers.
	Token string
}

// Change describes a single-file commit.
type Change struct {
	Path    string
	Content []byte
	Message string
	// Token is the File.Token the new content is
	// based on.
	Token string
}
