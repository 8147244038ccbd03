package store_test

import (
	"context"
	"path/filepath"
	"testing"

	auth "github.com/autoresum/autoresum-go"
	"github.com/autoresum/autoresum-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCredentialRoundTrip(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	cred, err := s.Credential(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)

	require.NoError(t, s.SetCredential(ctx, auth.Credential{AccessToken: "a1", RefreshToken: "r1"}))

	cred, err = s.Credential(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "a1", cred.AccessToken)
	assert.Equal(t, "r1", cred.RefreshToken)
}

func TestMemoryUserRoundTrip(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, s.SetUser(ctx, &auth.UserProfile{Email: "casey@example.com", Username: "casey"}))

	user, err := s.User(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "casey@example.com", user.Email)

	// A nil user removes the cached profile.
	require.NoError(t, s.SetUser(ctx, nil))
	user, err = s.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestMemoryCorruptValuesReadAsMissing(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	s.Seed(store.TokenKey(), "{not json")
	s.Seed(store.UserKey(), "[3]")

	cred, err := s.Credential(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)

	user, err := s.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	// A credential without an access token is as good as missing.
	s.Seed(store.TokenKey(), `{"refresh_token":"r"}`)
	cred, err = s.Credential(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestMemoryClear(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, s.SetCredential(ctx, auth.Credential{AccessToken: "a"}))
	require.NoError(t, s.SetUser(ctx, &auth.UserProfile{Email: "casey@example.com"}))
	require.NoError(t, s.Clear(ctx))

	cred, err := s.Credential(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)

	user, err := s.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.db")

	s, err := store.OpenSQLite(ctx, path)
	require.NoError(t, err)

	require.NoError(t, s.SetCredential(ctx, auth.Credential{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, s.SetUser(ctx, &auth.UserProfile{Email: "casey@example.com"}))
	require.NoError(t, s.Close())

	s, err = store.OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	cred, err := s.Credential(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "a1", cred.AccessToken)

	user, err := s.User(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "casey@example.com", user.Email)
}

func TestSQLiteSetCredentialOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetCredential(ctx, auth.Credential{AccessToken: "first"}))
	require.NoError(t, s.SetCredential(ctx, auth.Credential{AccessToken: "second"}))

	cred, err := s.Credential(ctx)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "second", cred.AccessToken)
}

func TestSQLiteClear(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetCredential(ctx, auth.Credential{AccessToken: "a"}))
	require.NoError(t, s.SetUser(ctx, &auth.UserProfile{Email: "casey@example.com"}))
	require.NoError(t, s.Clear(ctx))

	cred, err := s.Credential(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)

	user, err := s.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}
