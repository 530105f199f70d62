package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roombook/internal/ws"
)

// SetupRoutes mounts the real-time feed and the health probe.
func SetupRoutes(r *gin.Engine, hub *ws.Hub) {
	r.GET("/ws", ws.ServeWS(hub))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": hub.ConnectionCount(),
		})
	})
}
