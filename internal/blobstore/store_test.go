package blobstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	content := []byte("hello, regulatory world!")
	name, err := store.Put(ctx, "docs/file.pdf", content, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "docs/file.pdf", name)

	dst := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, store.Get(ctx, "docs/file.pdf", dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMemoryStore_PutStream(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	content := []byte("streamed content")
	name, err := store.PutStream(ctx, "docs/stream.pdf", bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "docs/stream.pdf", name)

	dst := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, store.Get(ctx, "docs/stream.pdf", dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Get(ctx, "nonexistent", filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "to-delete", []byte("data"), "")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "to-delete"))

	err = store.Get(ctx, "to-delete", filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DeleteMissingIsNotError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	assert.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestMemoryStore_PresignedGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Put(ctx, "doc.pdf", []byte("x"), "application/pdf")
	require.NoError(t, err)

	url, err := store.PresignedGet(ctx, "doc.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	_, err = store.PresignedGet(ctx, "missing.pdf", 15*time.Minute)
	assert.ErrorIs(t, err, ErrNotFound)
}
