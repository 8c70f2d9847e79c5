package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cardroom/internal/service"
)

const maxDisplayNameLen = 32

type GuestAuthRequest struct {
	DisplayName string `json:"display_name"`
}

// GuestAuth issues a session for an anonymous player. The server mints the
// player id; the client only picks a display name.
func (h *Handler) GuestAuth(c *gin.Context) {
	var req GuestAuthRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "display_name required"})
		return
	}
	if len(name) > maxDisplayNameLen {
		name = name[:maxDisplayNameLen]
	}

	id := uuid.NewString()
	token, err := service.GenerateJWT(id, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"player": gin.H{
			"id":           id,
			"display_name": name,
		},
	})
}
