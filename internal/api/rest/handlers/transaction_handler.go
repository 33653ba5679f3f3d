package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/gateway"
	"github.com/clubnet/billing-service/internal/service"
	"github.com/clubnet/billing-service/pkg/logger"
)

// TransactionHandler обработчик HTTP-запросов транзакций
type TransactionHandler struct {
	recorder service.TransactionRecorder
	gateway  *gateway.Client
	events   service.AuditEventSink
	log      *logger.Logger
}

// NewTransactionHandler создает обработчик транзакций
func NewTransactionHandler(recorder service.TransactionRecorder, gw *gateway.Client, events service.AuditEventSink, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		recorder: recorder,
		gateway:  gw,
		events:   events,
		log:      log,
	}
}

// refundRequest запрос на возврат средств. Amount == nil - полный возврат.
type refundRequest struct {
	Amount *float64 `json:"amount" binding:"omitempty,gt=0"`
}

// Get возвращает записанную транзакцию по внешнему ID
// GET /api/v1/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	txn, err := h.recorder.GetTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to get transaction")
		return
	}

	c.JSON(http.StatusOK, txn)
}

// Refund выполняет возврат средств по транзакции через шлюз.
// Локальная запись не меняется: баланс кредитов возврат не трогает,
// факт возврата фиксируется событием.
// POST /api/v1/transactions/:id/refund
func (h *TransactionHandler) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
		return
	}

	id := c.Param("id")
	txn, err := h.recorder.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to get transaction")
		return
	}

	charge, err := h.gateway.RefundTransaction(c.Request.Context(), id, req.Amount)
	if err != nil {
		h.log.Errorw("Failed to refund transaction", "error", err, "transactionID", id)
		respondError(c, err, "failed to refund transaction")
		return
	}

	event := domain.BillingEvent{
		Type:           domain.EventTransactionRefunded,
		SubscriptionID: txn.SubscriptionID,
		UserID:         txn.UserID,
		TransactionID:  id,
		OccurredAt:     time.Now().UTC(),
	}
	if err := h.events.Publish(c.Request.Context(), event); err != nil {
		h.log.Warnw("Failed to publish refund event", "error", err, "transactionID", id)
	}

	c.JSON(http.StatusOK, gin.H{"charge": charge})
}
