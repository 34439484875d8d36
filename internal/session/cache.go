// Package session persists portal cookies between runs so a sync can
// skip the login and OTP dance while the server-side session is alive.
package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/newbienorbie/unifi-scraper/internal/logger"
)

// Cookie is the stored form of a single portal cookie.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  int64  `json:"expires,omitempty"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
}

// State is the on-disk session artifact.
type State struct {
	Cookies []Cookie  `json:"cookies"`
	SavedAt time.Time `json:"saved_at"`
}

// Cache reads and writes the session artifact at a fixed path.
type Cache struct {
	path      string
	freshness time.Duration
	now       func() time.Time
}

func NewCache(path string, freshness time.Duration) *Cache {
	if freshness <= 0 {
		freshness = 24 * time.Hour
	}
	return &Cache{path: path, freshness: freshness, now: time.Now}
}

// Load returns the cached cookies when the artifact exists, parses,
// and is younger than the freshness window. ok is false otherwise;
// a stale or corrupt artifact is removed on the way out.
func (c *Cache) Load() (State, bool) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return State{}, false
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		logger.Warn("Session cache is corrupt, discarding: %v", err)
		c.Invalidate()
		return State{}, false
	}

	age := c.now().Sub(st.SavedAt)
	if age > c.freshness || age < 0 {
		logger.Info("Session cache is %s old, discarding", age)
		c.Invalidate()
		return State{}, false
	}
	return st, true
}

// Save writes the cookies with the current timestamp.
func (c *Cache) Save(cookies []Cookie) error {
	st := State{Cookies: cookies, SavedAt: c.now()}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(c.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session cache: %w", err)
	}
	return nil
}

// Invalidate removes the artifact. Missing file is fine.
func (c *Cache) Invalidate() {
	_ = os.Remove(c.path)
}

// HTTPCookies converts stored cookies to their net/http form.
func (st State) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(st.Cookies))
	for _, ck := range st.Cookies {
		hc := &http.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HttpOnly: ck.HTTPOnly,
		}
		if ck.Expires > 0 {
			hc.Expires = time.Unix(ck.Expires, 0)
		}
		out = append(out, hc)
	}
	return out
}

// FromHTTPCookies converts net/http cookies to the stored form.
func FromHTTPCookies(cookies []*http.Cookie) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, hc := range cookies {
		ck := Cookie{
			Name:     hc.Name,
			Value:    hc.Value,
			Domain:   hc.Domain,
			Path:     hc.Path,
			Secure:   hc.Secure,
			HTTPOnly: hc.HttpOnly,
		}
		if !hc.Expires.IsZero() {
			ck.Expires = hc.Expires.Unix()
		}
		out = append(out, ck)
	}
	return out
}
