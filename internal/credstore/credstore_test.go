package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	return New(filepath.Join(dir, "secret.key"), filepath.Join(dir, "credentials.enc"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	creds := Credentials{Username: "dealer01", Password: "s3cret"}
	require.NoError(t, s.Save(creds))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, creds, got)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, s.Exists())
}

func TestKeyGeneratedOnFirstUse(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(Credentials{Username: "a", Password: "b"}))

	info, err := os.Stat(s.keyFile)
	require.NoError(t, err)
	assert.Equal(t, int64(32), info.Size())
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUpdatePassword(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(Credentials{Username: "dealer01", Password: "old"}))
	require.NoError(t, s.UpdatePassword("new"))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "dealer01", got.Username)
	assert.Equal(t, "new", got.Password)
}

func TestUpdatePasswordWithoutSavedCredentials(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdatePassword("new")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(Credentials{Username: "a", Password: "b"}))
	require.True(t, s.Exists())

	require.NoError(t, s.Delete())
	assert.False(t, s.Exists())

	// deleting again is a no-op
	assert.NoError(t, s.Delete())
}

func TestCiphertextIsNotPlaintext(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(Credentials{Username: "dealer01", Password: "hunter2"}))

	raw, err := os.ReadFile(s.credsFile)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
}
