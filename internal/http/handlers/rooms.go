package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardroom/internal/domain"
)

type CreateRoomRequest struct {
	Name     string               `json:"name"`
	Settings *domain.RoomSettings `json:"settings"`
}

// CreateRoom opens a new room owned by the caller. The owner still joins over
// the websocket like everyone else.
func (h *Handler) CreateRoom(c *gin.Context) {
	pid, ok := playerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	settings := domain.DefaultSettings()
	if req.Settings != nil {
		settings = req.Settings.Normalize()
	}

	a, err := h.Reg.CreateRoom(pid, req.Name, settings)
	if err != nil {
		respondError(c, err)
		return
	}
	info, err := a.Describe(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// ListRooms returns a summary of every live room.
func (h *Handler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Reg.List(c.Request.Context())})
}

// GetRoom returns one room's summary.
func (h *Handler) GetRoom(c *gin.Context) {
	a, err := h.Reg.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	info, err := a.Describe(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetRoomState returns the current state redacted for the caller. Useful for
// clients that want a REST view before (or instead of) attaching a socket.
func (h *Handler) GetRoomState(c *gin.Context) {
	pid, ok := playerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	a, err := h.Reg.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	state, err := a.Snapshot(c.Request.Context(), pid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state, "version": state.Version})
}

// LeaveRoom vacates the caller's seat immediately, skipping any grace window.
func (h *Handler) LeaveRoom(c *gin.Context) {
	pid, ok := playerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	roomID := c.Param("id")
	if cur, err := h.Reg.RoomOf(pid); err != nil || cur != roomID {
		c.JSON(http.StatusNotFound, gin.H{"error": "not in this room"})
		return
	}
	if err := h.Reg.RemovePlayer(c.Request.Context(), pid); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}
