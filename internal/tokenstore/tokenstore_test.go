package tokenstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-ledger-client/internal/kvstore"
	"go-ledger-client/internal/model"
)

func newSession() model.Session {
	return model.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         model.User{ID: 7, Username: "amina", RoleName: "Accountant"},
		ExpiresAt:    time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	kv := kvstore.NewMemory()
	store := New(kv, nil)

	_, ok := store.Get()
	assert.False(t, ok)

	require.NoError(t, store.Set(newSession()))

	got, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "amina", got.User.Username)
	assert.Equal(t, "Accountant", got.User.RoleName)
}

func TestStore_LoadsPersistedSession(t *testing.T) {
	kv := kvstore.NewMemory()
	require.NoError(t, New(kv, nil).Set(newSession()))

	// A fresh store over the same kv sees the persisted session.
	fresh := New(kv, nil)
	got, ok := fresh.Get()
	require.True(t, ok)
	assert.Equal(t, 7, got.User.ID)
	assert.Equal(t, "refresh-1", got.RefreshToken)
}

func TestStore_CorruptDataDegradesToUnauthenticated(t *testing.T) {
	kv := kvstore.NewMemory()
	require.NoError(t, kv.SetItem("auth.session", "{not json"))

	store := New(kv, nil)
	_, ok := store.Get()
	assert.False(t, ok)

	// The corrupt entry is cleared, not left behind.
	_, present, err := kv.GetItem("auth.session")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestStore_EmptyAccessTokenMeansUnauthenticated(t *testing.T) {
	store := New(kvstore.NewMemory(), nil)
	require.NoError(t, store.Set(model.Session{User: model.User{ID: 1}}))

	_, ok := store.Get()
	assert.False(t, ok)
}

func TestStore_SetAccessTokenKeepsUserAndRefreshToken(t *testing.T) {
	store := New(kvstore.NewMemory(), nil)
	require.NoError(t, store.Set(newSession()))

	require.NoError(t, store.SetAccessToken("access-2"))

	got, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.Equal(t, "amina", got.User.Username)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	store := New(kvstore.NewMemory(), nil)
	require.NoError(t, store.Set(newSession()))

	store.Clear()
	store.Clear()

	_, ok := store.Get()
	assert.False(t, ok)
	_, ok = store.AccessToken()
	assert.False(t, ok)
}
