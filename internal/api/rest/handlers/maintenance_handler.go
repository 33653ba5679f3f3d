package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clubnet/billing-service/internal/service"
	"github.com/clubnet/billing-service/pkg/logger"
)

// MaintenanceHandler внутренние эндпоинты для планировщика
type MaintenanceHandler struct {
	ledger service.SubscriptionLedger
	log    *logger.Logger
}

// NewMaintenanceHandler создает обработчик служебных задач
func NewMaintenanceHandler(ledger service.SubscriptionLedger, log *logger.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{ledger: ledger, log: log}
}

// ExpireSweep отменяет истекшие активные подписки.
// Запускается внешним планировщиком, повторный запуск безопасен.
// POST /internal/jobs/expire-sweep
func (h *MaintenanceHandler) ExpireSweep(c *gin.Context) {
	expired, err := h.ledger.AutoExpire(c.Request.Context())
	if err != nil {
		h.log.Errorw("Expire sweep failed", "error", err)
		respondError(c, err, "expire sweep failed")
		return
	}

	h.log.Infow("Expire sweep finished", "expired", expired)
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}
