package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAllowlist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authorized_users.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAllowlistMissingFileLeavesGateOpen(t *testing.T) {
	a := LoadAllowlist(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, a.Allowed("12345"))
	assert.True(t, a.Allowed(""))
}

func TestLoadAllowlistMalformedLeavesGateOpen(t *testing.T) {
	a := LoadAllowlist(writeAllowlist(t, "{not json"))
	assert.True(t, a.Allowed("12345"))
}

func TestAllowlistGatesByChatID(t *testing.T) {
	a := LoadAllowlist(writeAllowlist(t, `{"authorized_chat_ids": [12345, 67890]}`))

	assert.True(t, a.Allowed("12345"))
	assert.True(t, a.Allowed("67890"))
	assert.False(t, a.Allowed("99999"))
	assert.False(t, a.Allowed(""))
}

func TestGateRejectsUnknownChatID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := LoadAllowlist(writeAllowlist(t, `{"authorized_chat_ids": [12345]}`))

	r := gin.New()
	r.Use(a.Gate())
	r.POST("/scrape", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scrape?chat_id=99999", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/scrape?chat_id=12345", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateReadsHeaderWhenQueryAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := LoadAllowlist(writeAllowlist(t, `{"authorized_chat_ids": [12345]}`))

	r := gin.New()
	r.Use(a.Gate())
	r.POST("/scrape", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/scrape", nil)
	req.Header.Set("X-Chat-ID", "12345")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
