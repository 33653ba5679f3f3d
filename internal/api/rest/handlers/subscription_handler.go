package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/service"
	"github.com/clubnet/billing-service/pkg/logger"
)

const genericSessionError = "failed to create payment session"

// SubscriptionHandler обработчик HTTP-запросов подписок
type SubscriptionHandler struct {
	ledger   service.SubscriptionLedger
	recorder service.TransactionRecorder
	audit    service.AuditLogWriter
	log      *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(ledger service.SubscriptionLedger, recorder service.TransactionRecorder, audit service.AuditLogWriter, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		ledger:   ledger,
		recorder: recorder,
		audit:    audit,
		log:      log,
	}
}

// stageNewRequest запрос на подписку на план
type stageNewRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	PlanID       string `json:"plan_id" binding:"required"`
	BillingCycle string `json:"billing_cycle" binding:"omitempty,oneof=month year"`
	Locale       string `json:"locale"`
}

// stageUpgradeRequest запрос на смену плана
type stageUpgradeRequest struct {
	PlanID       string `json:"plan_id" binding:"required"`
	BillingCycle string `json:"billing_cycle" binding:"omitempty,oneof=month year"`
}

// stageCreditsRequest запрос на покупку пакета кредитов
type stageCreditsRequest struct {
	Credits  int     `json:"credits" binding:"required,gt=0"`
	Price    float64 `json:"price" binding:"required,gt=0"`
	Currency string  `json:"currency" binding:"required"`
}

// StageNew создает подписку и платежную сессию для нее
// POST /api/v1/subscriptions
func (h *SubscriptionHandler) StageNew(c *gin.Context) {
	var req stageNewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
		return
	}

	session, sub, err := h.ledger.StageNewSubscription(c.Request.Context(), req.UserID, req.PlanID, domain.BillingCycle(req.BillingCycle), req.Locale)
	if err != nil {
		h.log.Errorw("Failed to stage new subscription", "error", err, "userID", req.UserID)
		respondError(c, err, genericSessionError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"subscription": sub,
		"session":      session,
	})
}

// StageUpgrade готовит смену плана и платежную сессию
// POST /api/v1/subscriptions/:id/upgrade
func (h *SubscriptionHandler) StageUpgrade(c *gin.Context) {
	var req stageUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
		return
	}

	session, err := h.ledger.StageUpgrade(c.Request.Context(), c.Param("id"), req.PlanID, domain.BillingCycle(req.BillingCycle))
	if err != nil {
		h.log.Errorw("Failed to stage upgrade", "error", err, "subscriptionID", c.Param("id"))
		respondError(c, err, genericSessionError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// StageRenewal готовит продление подписки
// POST /api/v1/subscriptions/:id/renew
func (h *SubscriptionHandler) StageRenewal(c *gin.Context) {
	session, err := h.ledger.StageRenewal(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.Errorw("Failed to stage renewal", "error", err, "subscriptionID", c.Param("id"))
		respondError(c, err, genericSessionError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// StageCreditPurchase готовит покупку пакета кредитов
// POST /api/v1/subscriptions/:id/credits
func (h *SubscriptionHandler) StageCreditPurchase(c *gin.Context) {
	var req stageCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request body"})
		return
	}

	session, err := h.ledger.StageCreditPurchase(c.Request.Context(), c.Param("id"), service.CreditPack{
		Credits:  req.Credits,
		Price:    req.Price,
		Currency: req.Currency,
	})
	if err != nil {
		h.log.Errorw("Failed to stage credit purchase", "error", err, "subscriptionID", c.Param("id"))
		respondError(c, err, genericSessionError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": session})
}

// AbandonPending сбрасывает незавершенный переход
// DELETE /api/v1/subscriptions/:id/pending
func (h *SubscriptionHandler) AbandonPending(c *gin.Context) {
	if err := h.ledger.AbandonPending(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "failed to abandon pending transition")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Cancel отменяет подписку
// POST /api/v1/subscriptions/:id/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	if err := h.ledger.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "failed to cancel subscription")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Get возвращает подписку по ID
// GET /api/v1/subscriptions/:id
func (h *SubscriptionHandler) Get(c *gin.Context) {
	sub, err := h.ledger.GetSubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to get subscription")
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ListByUser возвращает подписки пользователя
// GET /api/v1/subscriptions?user_id=...
func (h *SubscriptionHandler) ListByUser(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user_id is required"})
		return
	}

	subs, err := h.ledger.GetByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to list subscriptions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// ListLogs возвращает аудиторский журнал подписки
// GET /api/v1/subscriptions/:id/logs
func (h *SubscriptionHandler) ListLogs(c *gin.Context) {
	entries, err := h.audit.ListBySubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to list subscription logs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

// ListTransactions возвращает транзакции подписки
// GET /api/v1/subscriptions/:id/transactions
func (h *SubscriptionHandler) ListTransactions(c *gin.Context) {
	txns, err := h.recorder.ListBySubscription(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}
