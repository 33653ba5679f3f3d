package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clubnet/billing-service/internal/gateway"
	"github.com/clubnet/billing-service/internal/metrics"
	"github.com/clubnet/billing-service/internal/service"
	"github.com/clubnet/billing-service/pkg/logger"
)

// CallbackHandler принимает уведомления платежного шлюза
type CallbackHandler struct {
	ledger  service.SubscriptionLedger
	codec   *gateway.SignatureCodec
	metrics metrics.BillingMetrics
	log     *logger.Logger
}

// NewCallbackHandler создает обработчик уведомлений шлюза
func NewCallbackHandler(ledger service.SubscriptionLedger, codec *gateway.SignatureCodec, m metrics.BillingMetrics, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{
		ledger:  ledger,
		codec:   codec,
		metrics: m,
		log:     log,
	}
}

// HandlePaymentCallback обрабатывает уведомление о платеже.
// Подпись проверяется по сырым байтам тела до разбора JSON. Единственный
// случай не-200 ответа - невалидная подпись: шлюз повторяет доставку
// только при ней. Любая ошибка обработки отдает 200 со статусом KO.
// POST /callbacks/payment
func (h *CallbackHandler) HandlePaymentCallback(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to read callback body", "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "KO"})
		return
	}

	signature := c.GetHeader(gateway.CallbackSignatureHeader)
	if !h.codec.VerifyCallback(rawBody, signature) {
		h.metrics.IncCallbackRejected()
		h.log.Warnw("Rejected callback with invalid signature", "clientIP", c.ClientIP())
		c.JSON(http.StatusForbidden, gin.H{"status": "KO", "error": "invalid signature"})
		return
	}

	var payload gateway.CallbackPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		h.log.Errorw("Failed to parse callback payload", "error", err)
		c.JSON(http.StatusOK, gin.H{"status": "KO"})
		return
	}

	// Шлюз не должен прерывать запись при обрыве соединения.
	ctx := context.WithoutCancel(c.Request.Context())

	switch payload.Status {
	case gateway.ChargeStatusCharged:
		result, err := h.ledger.ApplyConfirmedPayment(ctx, &payload)
		if err != nil {
			h.log.Errorw("Failed to apply confirmed payment", "error", err, "chargeID", payload.ID)
			c.JSON(http.StatusOK, gin.H{"status": "KO"})
			return
		}
		if !result.Applied {
			h.log.Infow("Duplicate callback acknowledged", "chargeID", payload.ID)
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})

	case gateway.ChargeStatusDeclined:
		if err := h.ledger.DeclinePayment(ctx, &payload); err != nil {
			h.log.Errorw("Failed to record declined payment", "error", err, "chargeID", payload.ID)
			c.JSON(http.StatusOK, gin.H{"status": "KO"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})

	default:
		h.log.Infow("Ignoring callback with unhandled status", "status", payload.Status, "chargeID", payload.ID)
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	}
}
