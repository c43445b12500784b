package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func setupStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "policies"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policies", "refunds.md"), []byte("# Refunds\n"), 0o600))

	store, err := NewStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewStore(t *testing.T) {
	_, err := NewStore("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewStore(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = NewStore(file)
	assert.Error(t, err)
}

func TestStore_Fetch(t *testing.T) {
	store, dir := setupStore(t)
	ctx := context.Background()

	for _, ref := range []string{
		"policies/refunds.md",
		"./policies/../policies/refunds.md",
		"file://" + filepath.Join(dir, "policies", "refunds.md"),
	} {
		data, err := store.Fetch(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, "# Refunds\n", string(data))
	}
}

func TestStore_Fetch_Errors(t *testing.T) {
	store, dir := setupStore(t)
	ctx := context.Background()

	_, err := store.Fetch(ctx, "policies/missing.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Fetch(ctx, "../outside.txt")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = store.Fetch(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = store.Fetch(ctx, "policies")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(dir, "link.txt")))
	_, err = store.Fetch(ctx, "link.txt")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Fetch(cancelled, "policies/refunds.md")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Rel(t *testing.T) {
	store, dir := setupStore(t)

	rel, err := store.Rel(filepath.Join(dir, "policies", "refunds.md"))
	require.NoError(t, err)
	assert.Equal(t, "policies/refunds.md", rel)

	rel, err = store.Rel("file://policies/refunds.md")
	require.NoError(t, err)
	assert.Equal(t, "policies/refunds.md", rel)
}
