package handler

import (
	"github.com/gin-gonic/gin"
)

// fail writes the error envelope every endpoint shares.
func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
