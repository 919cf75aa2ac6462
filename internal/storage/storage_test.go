package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agora.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStorePutGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NamespaceSession, "current", []byte(`{"token":"abc"}`)))

	got, err := s.Get(ctx, NamespaceSession, "current")
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"abc"}`, string(got))

	// replace in place
	require.NoError(t, s.Put(ctx, NamespaceSession, "current", []byte(`{"token":"def"}`)))
	got, err = s.Get(ctx, NamespaceSession, "current")
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"def"}`, string(got))
}

func TestStoreNamespacesAreDisjoint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NamespaceSession, "current", []byte("a")))
	require.NoError(t, s.Put(ctx, NamespaceRoster, "current", []byte("b")))

	got, err := s.Get(ctx, NamespaceSession, "current")
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)

	got, err = s.Get(ctx, NamespaceRoster, "current")
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got)
}

func TestStoreMissingKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, NamespaceRoster, "nope")
	require.ErrorIs(t, err, ErrNoRows)

	// deleting a missing key is fine
	require.NoError(t, s.Delete(ctx, NamespaceRoster, "nope"))
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, NamespaceSession, "current", []byte("x")))
	require.NoError(t, s.Delete(ctx, NamespaceSession, "current"))

	_, err := s.Get(ctx, NamespaceSession, "current")
	require.ErrorIs(t, err, ErrNoRows)
}
