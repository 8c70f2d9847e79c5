package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cardroom/internal/service"
)

// JWT authenticates a request from its bearer token and stores the player
// identity in the gin context under "player_id" and "display_name".
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		playerID, displayName, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("player_id", playerID)
		c.Set("display_name", displayName)
		c.Next()
	}
}
