package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wallet-score-lab/internal/observability"
)

// HealthHandler serves liveness, pipeline status and Prometheus metrics.
type HealthHandler struct {
	// Status reports the scheduler state; nil omits it from /health.
	Status func() any
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(observability.Handler()))
}

func (h *HealthHandler) health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.Status != nil {
		body["pipeline"] = h.Status()
	}
	c.JSON(http.StatusOK, body)
}
