package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	appName   string
	env       string
	startedAt time.Time
}

func NewHealthHandler(appName, env string, startedAt time.Time) *HealthHandler {
	return &HealthHandler{appName: appName, env: env, startedAt: startedAt}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":        h.appName,
		"env":        h.env,
		"uptime_sec": int(time.Since(h.startedAt).Seconds()),
	})
}
