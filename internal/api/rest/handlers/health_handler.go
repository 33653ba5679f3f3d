package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clubnet/billing-service/internal/gateway"
	"github.com/clubnet/billing-service/pkg/logger"
)

// HealthHandler обработчик проверок здоровья сервиса
type HealthHandler struct {
	gateway *gateway.Client
	log     *logger.Logger
}

// NewHealthHandler создает обработчик проверок здоровья
func NewHealthHandler(gw *gateway.Client, log *logger.Logger) *HealthHandler {
	return &HealthHandler{gateway: gw, log: log}
}

// Health жив ли сам сервис
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GatewayHealth доступен ли внешний платежный шлюз
// GET /api/v1/gateway/health
func (h *HealthHandler) GatewayHealth(c *gin.Context) {
	if err := h.gateway.HealthCheck(c.Request.Context()); err != nil {
		h.log.Warnw("Gateway healthcheck failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
