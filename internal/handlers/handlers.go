package handlers

import (
	"net/http"

	"opsflow/internal/metrics"
	"opsflow/internal/services"

	"github.com/gin-gonic/gin"
)

type WebSocketHandler struct {
	wsHub *services.WebSocketHub
}

func NewWebSocketHandler(wsHub *services.WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{
		wsHub: wsHub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	h.wsHub.HandleWebSocket(c)
}

func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"connected_clients": h.wsHub.GetClientCount(),
		"status":            "running",
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": c.GetHeader("X-Request-Time"),
		"version":   "1.0.0",
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// MetricsHandler exposes the in-process automation counters.
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (h *MetricsHandler) AutomationMetrics(c *gin.Context) {
	execTotal, execByStatus := metrics.ExecutionSnapshot()
	rlTotal, rlByPrefix := metrics.RateLimitSnapshot()

	c.JSON(http.StatusOK, gin.H{
		"executions": gin.H{
			"total":     execTotal,
			"by_status": execByStatus,
		},
		"rate_limit_drops": gin.H{
			"total":     rlTotal,
			"by_prefix": rlByPrefix,
		},
	})
}
