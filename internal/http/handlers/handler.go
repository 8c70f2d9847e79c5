package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cardroom/internal/domain"
	"cardroom/internal/registry"
)

// Handler carries the shared dependencies of the REST endpoints.
type Handler struct {
	Reg *registry.Registry
}

func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{Reg: reg}
}

// playerID extracts the authenticated player id set by the JWT middleware.
func playerID(c *gin.Context) (string, bool) {
	v, ok := c.Get("player_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// respondError maps domain errors onto HTTP statuses. Rule violations and
// stale-version rejections are client-resolvable conflicts; storage failures
// are temporary server trouble.
func respondError(c *gin.Context, err error) {
	var rv *domain.RuleViolationError
	switch {
	case errors.As(err, &rv):
		c.JSON(http.StatusConflict, gin.H{"error": rv.Reason, "code": string(rv.Code)})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "state changed underneath the request, retry", "code": "version_conflict"})
	case errors.Is(err, domain.ErrRoomClosed):
		c.JSON(http.StatusGone, gin.H{"error": "room closed"})
	case domain.IsStorageError(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
