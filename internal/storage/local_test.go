package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	appErr "github.com/updrift/engine/pkg/errors"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	path, size, err := store.Save("tok123", strings.NewReader("bundle contents"))
	require.NoError(t, err)
	require.Equal(t, int64(len("bundle contents")), size)

	rc, err := store.Open(path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "bundle contents", string(data))

	require.NoError(t, store.Remove(path))
	_, err = store.Open(path)
	require.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestLocalStoreRefusesOverwrite(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Save("dup", strings.NewReader("a"))
	require.NoError(t, err)
	_, _, err = store.Save("dup", strings.NewReader("b"))
	require.Error(t, err, "artifacts are immutable, second write must fail")
}

func TestLocalStoreRemoveMissingIsNoop(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Remove("bundles/never-existed.zip"))
}
