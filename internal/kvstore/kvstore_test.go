package kvstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores_SetGetRemove(t *testing.T) {
	sqliteStore, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	stores := map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqliteStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.GetItem("auth.session")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.SetItem("auth.session", `{"access_token":"abc"}`))

			value, ok, err := store.GetItem("auth.session")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `{"access_token":"abc"}`, value)

			// Overwrite replaces the whole value
			require.NoError(t, store.SetItem("auth.session", `{"access_token":"def"}`))
			value, _, err = store.GetItem("auth.session")
			require.NoError(t, err)
			assert.Equal(t, `{"access_token":"def"}`, value)

			require.NoError(t, store.RemoveItem("auth.session"))
			_, ok, err = store.GetItem("auth.session")
			require.NoError(t, err)
			assert.False(t, ok)

			// Removing an absent key is not an error
			require.NoError(t, store.RemoveItem("auth.session"))
		})
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.SetItem("auth.user", `{"id":1}`))
	require.NoError(t, store.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	value, ok, err := reopened.GetItem("auth.user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"id":1}`, value)
}
