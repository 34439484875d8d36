package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	return NewCache(filepath.Join(t.TempDir(), "session_cache.json"), 24*time.Hour)
}

func TestSaveLoadFresh(t *testing.T) {
	c := newTestCache(t)

	cookies := []Cookie{{Name: "JSESSIONID", Value: "abc123", Domain: "dealer.unifi.com.my", Path: "/"}}
	require.NoError(t, c.Save(cookies))

	st, ok := c.Load()
	require.True(t, ok)
	assert.Equal(t, cookies, st.Cookies)
}

func TestLoadExpired(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Save([]Cookie{{Name: "JSESSIONID", Value: "abc"}}))

	// shift the clock past the freshness window
	c.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	_, ok := c.Load()
	assert.False(t, ok)

	// expired artifact is removed so the next load misses immediately
	_, err := os.Stat(c.path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissing(t *testing.T) {
	c := newTestCache(t)
	_, ok := c.Load()
	assert.False(t, ok)
}

func TestLoadCorrupt(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(c.path), 0o755))
	require.NoError(t, os.WriteFile(c.path, []byte("{not json"), 0o600))

	_, ok := c.Load()
	assert.False(t, ok)

	_, err := os.Stat(c.path)
	assert.True(t, os.IsNotExist(err))
}

func TestHTTPCookieRoundTrip(t *testing.T) {
	cookies := []Cookie{
		{Name: "JSESSIONID", Value: "abc", Domain: "dealer.unifi.com.my", Path: "/", Secure: true, HTTPOnly: true},
		{Name: "route", Value: "node1", Expires: time.Now().Add(time.Hour).Unix()},
	}
	st := State{Cookies: cookies}

	back := FromHTTPCookies(st.HTTPCookies())
	assert.Equal(t, cookies, back)
}
