package middleware

import (
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/newbienorbie/unifi-scraper/internal/logger"
)

// Allowlist gates mutating endpoints behind a static list of chat
// IDs. A missing or empty allowlist file leaves the gate open, which
// is the single-operator default.
type Allowlist struct {
	mu   sync.RWMutex
	ids  map[string]bool
	open bool
}

type allowlistFile struct {
	AuthorizedChatIDs []json.Number `json:"authorized_chat_ids"`
}

// LoadAllowlist reads the allowlist JSON
// ({"authorized_chat_ids": [...]}) from path.
func LoadAllowlist(path string) *Allowlist {
	a := &Allowlist{ids: make(map[string]bool), open: true}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read allowlist %s, gate left open: %v", path, err)
		}
		return a
	}
	var f allowlistFile
	if err := json.Unmarshal(raw, &f); err != nil {
		logger.Warn("Allowlist %s is malformed, gate left open: %v", path, err)
		return a
	}
	for _, id := range f.AuthorizedChatIDs {
		if id.String() != "" {
			a.ids[id.String()] = true
		}
	}
	a.open = len(a.ids) == 0
	return a
}

// Allowed reports whether the given chat ID passes the gate.
func (a *Allowlist) Allowed(chatID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.open || a.ids[chatID]
}

// ChatID pulls the caller's chat ID from the query string or the
// X-Chat-ID header.
func ChatID(c *gin.Context) string {
	if id := c.Query("chat_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Chat-ID")
}

// Gate rejects requests whose chat ID is not on the list.
func (a *Allowlist) Gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Allowed(ChatID(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "UNAUTHORIZED",
				"message": "chat ID is not authorized",
			})
			return
		}
		c.Next()
	}
}
