package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshp123/gohome-fireboard/internal/core"
)

// HealthHandler returns ok for liveness checks along with per-plugin status.
func HealthHandler(plugins []core.Plugin) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := make(map[string]string, len(plugins))
		for _, p := range plugins {
			status[p.ID()] = string(p.Health())
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "plugins": status})
	}
}
