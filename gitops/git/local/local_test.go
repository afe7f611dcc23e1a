package local_test

import (
	"context"
	"os"
	oe "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/image_updater/gitops/digester"
	"github.com/byte4ever/image_updater/gitops/git"
	"github.com/byte4ever/image_updater/gitops/git/local"
)

func TestNewProvider_invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	tests := []struct {
		name string
		dir  string
		want string
	}{
		{name: "empty", dir: "", want: "dir must be set"},
		{name: "missing", dir: filepath.Join(dir, "nope"), want: "no such file"},
		{name: "file", dir: file, want: "not a directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pv, err := local.NewProvider(local.Config{Dir: tt.dir})

			assert.Nil(t, pv)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestProvider_ListFiles(t *testing.T) {
	t.Parallel()

	pv, dir := newTestProvider(t)
	writeFile(t, dir, "b.yml", "x: 1\n")
	writeFile(t, dir, "a.yaml", "x: 1\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "base"), 0o700))

	entries, err := pv.ListFiles(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []git.Entry{
		{Path: "a.yaml"},
		{Path: "b.yml"},
		{Path: "base", Dir: true},
	}, entries)
}

func TestProvider_ReadFile(t *testing.T) {
	t.Parallel()

	pv, dir := newTestProvider(t)
	writeFile(t, dir, "a.yaml", "hello")

	fi, err := pv.ReadFile(context.Background(), "a.yaml")

	require.NoError(t, err)
	assert.Equal(t, "hello", string(fi.Content))
	assert.Equal(t, digester.Digest([]byte("hello")), fi.Token)
}

func TestProvider_ReadFile_rejects(t *testing.T) {
	t.Parallel()

	pv, dir := newTestProvider(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "base"), 0o700))

	_, err := pv.ReadFile(context.Background(), "base")
	assert.ErrorIs(t, err, git.ErrNotAFile)

	_, err = pv.ReadFile(context.Background(), "../etc/passwd")
	assert.ErrorContains(t, err, "escapes repository root")
}

func TestProvider_WriteFile(t *testing.T) {
	t.Parallel()

	pv, dir := newTestProvider(t)
	writeFile(t, dir, "a.yaml", "old")

	fi, err := pv.ReadFile(context.Background(), "a.yaml")
	require.NoError(t, err)

	err = pv.WriteFile(context.Background(), git.Change{
		Path:    "a.yaml",
		Content: []byte("new"),
		Message: "bump",
		Token:   fi.Token,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "a.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestProvider_WriteFile_conflict(t *testing.T) {
	t.Parallel()

	pv, dir := newTestProvider(t)
	writeFile(t, dir, "a.yaml", "old")

	fi, err := pv.ReadFile(context.Background(), "a.yaml")
	require.NoError(t, err)

	writeFile(t, dir, "a.yaml", "changed elsewhere")

	err = pv.WriteFile(context.Background(), git.Change{
		Path:    "a.yaml",
		Content: []byte("new"),
		Token:   fi.Token,
	})

	assert.ErrorIs(t, err, git.ErrConflict)
}

func TestProvider_canceled_context(t *testing.T) {
	t.Parallel()

	pv, _ := newTestProvider(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pv.ListFiles(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_WriteFile_commits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	gitCmd(t, dir, "init", "-b", "main")
	gitCmd(t, dir, "config", "user.email", "test@test.com")
	gitCmd(t, dir, "config", "user.name", "Test")
	gitCmd(t, dir, "config", "core.hooksPath", "/dev/null")
	writeFile(t, dir, "a.yaml", "old")
	gitCmd(t, dir, "add", "a.yaml")
	gitCmd(t, dir, "commit", "-m", "initial")

	pv, err := local.NewProvider(local.Config{Dir: dir, Commit: true})
	require.NoError(t, err)

	fi, err := pv.ReadFile(context.Background(), "a.yaml")
	require.NoError(t, err)

	err = pv.WriteFile(context.Background(), git.Change{
		Path:    "a.yaml",
		Content: []byte("new"),
		Message: "Image version updated to 2.0",
		Token:   fi.Token,
	})
	require.NoError(t, err)

	assert.Contains(
		t,
		gitCmd(t, dir, "log", "-1", "--pretty=%B"),
		"Image version updated to 2.0",
	)
	assert.Empty(t, gitCmd(t, dir, "status", "--porcelain"))
}

func TestNewProvider_commit_requires_work_tree(t *testing.T) {
	t.Parallel()

	pv, err := local.NewProvider(local.Config{
		Dir:    t.TempDir(),
		Commit: true,
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "opening repository")
}

func newTestProvider(tb testing.TB) (*local.Provider, string) {
	tb.Helper()

	dir := tb.TempDir()

	pv, err := local.NewProvider(local.Config{Dir: dir})
	require.NoError(tb, err)

	return pv, dir
}

// gitCmd runs a git command in dir and returns its
// output.
func gitCmd(tb testing.TB, dir string, args ...string) string {
	tb.Helper()

	//nolint:gosec // test helper
	cmd := oe.CommandContext(context.Background(), "git", args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		tb.Fatalf("git %v failed: %s: %v", args, string(out), err)
	}

	return string(out)
}

func writeFile(tb testing.TB, dir, name, content string) {
	tb.Helper()

	require.NoError(tb, os.WriteFile(
		filepath.Join(dir, name), []byte(content), 0o600,
	))
}
