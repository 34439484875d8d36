package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/newbienorbie/unifi-scraper/internal/api/middleware"
	"github.com/newbienorbie/unifi-scraper/internal/credstore"
	"github.com/newbienorbie/unifi-scraper/internal/session"
)

// CredentialsHandler handles credential storage and authorization
// status endpoints.
type CredentialsHandler struct {
	creds    *credstore.Store
	sessions *session.Cache
	allow    *middleware.Allowlist
}

func NewCredentialsHandler(creds *credstore.Store, sessions *session.Cache, allow *middleware.Allowlist) *CredentialsHandler {
	return &CredentialsHandler{creds: creds, sessions: sessions, allow: allow}
}

type saveCredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Save handles POST /save_credentials. A credentials change drops
// the cached session since it may belong to the old account.
func (h *CredentialsHandler) Save(c *gin.Context) {
	var req saveCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := h.creds.Save(credstore.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		fail(c, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}
	h.sessions.Invalidate()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "credentials saved",
	})
}

// IsAuthorized handles GET /is_authorized?chat_id=.
func (h *CredentialsHandler) IsAuthorized(c *gin.Context) {
	chatID := c.Query("chat_id")
	if chatID == "" {
		fail(c, http.StatusBadRequest, "invalid_request", "chat_id query parameter is required")
		return
	}

	hasCreds := h.creds.Exists()
	_, sessionValid := h.sessions.Load()

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"chat_id":         chatID,
		"authorized":      h.allow.Allowed(chatID),
		"has_credentials": hasCreds,
		"session_valid":   sessionValid,
	})
}
