package digester_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/byte4ever/image_updater/gitops/digester"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha256("hello")
const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestDigest_returns_sha256(t *testing.T) {
	t.Parallel()

	assert.Equal(t, helloDigest, digester.Digest([]byte("hello")))
}

func TestCalculateDigest_returns_sha256(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pa := filepath.Join(dir, "test.txt")
	require.NoError(t, os.WriteFile(pa, []byte("hello"), 0o600))

	got, err := digester.CalculateDigest(pa)

	require.NoError(t, err)
	assert.Equal(t, helloDigest, got)
}

func TestCalculateDigest_nonexistent_file(t *testing.T) {
	t.Parallel()

	got, err := digester.CalculateDigest("/nonexistent")

	assert.Empty(t, got)
	assert.NoError(t, err)
}

func TestMatches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pa := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(pa, []byte("hello"), 0o600))

	ok, err := digester.Matches(pa, helloDigest)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(pa, []byte("tampered"), 0o600))

	ok, err = digester.Matches(pa, helloDigest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func FuzzDigest_agrees_with_file(f *testing.F) {
	f.Add([]byte("hello"))
	f.Add([]byte(""))
	f.Add([]byte("\x00\xff"))

	f.Fuzz(func(t *testing.T, data []byte) {
		dir := t.TempDir()
		pa := filepath.Join(dir, "fuzz.bin")
		require.NoError(t, os.WriteFile(pa, data, 0o600))

		dg, err := digester.CalculateDigest(pa)

		require.NoError(t, err)
		assert.Len(t, dg, 64) // sha256 hex is always 64 chars
		assert.Equal(t, digester.Digest(data), dg)
	})
}
