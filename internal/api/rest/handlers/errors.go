package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clubnet/billing-service/internal/domain"
)

// statusForError переводит доменную ошибку в HTTP-статус.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound),
		errors.Is(err, domain.ErrPlanNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPendingUpgradeExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoPendingUpgrade),
		errors.Is(err, domain.ErrSubscriptionNotActive),
		errors.Is(err, domain.ErrSubscriptionExpired),
		errors.Is(err, domain.ErrInvalidSubscribeType),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError отвечает JSON-ошибкой. Внутренние детали наружу не уходят:
// на 5xx клиент видит только generic-сообщение.
func respondError(c *gin.Context, err error, generic string) {
	status := statusForError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = generic
	}
	c.JSON(status, gin.H{"error": message})
}
