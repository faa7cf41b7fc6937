package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/roomrelay/internal/rooms"
)

// GetRoom returns a read-only snapshot of a room: its roster and how much
// history it holds. Rooms exist implicitly, so an unknown name yields an
// empty snapshot rather than a 404.
func GetRoom(coord *rooms.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		room := c.Param("room")
		if room == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
			return
		}
		c.JSON(http.StatusOK, coord.Snapshot(room))
	}
}
