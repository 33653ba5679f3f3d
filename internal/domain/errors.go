package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrSubscriptionNotFound подписка не найдена
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrPlanNotFound план подписки не найден
	ErrPlanNotFound = errors.New("subscription plan not found")

	// ErrUserNotFound пользователь не найден
	ErrUserNotFound = errors.New("user not found")

	// ErrTransactionNotFound транзакция не найдена
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSignatureInvalid подпись не прошла проверку
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrPendingUpgradeExists для подписки уже подготовлен переход
	ErrPendingUpgradeExists = errors.New("pending upgrade already staged")

	// ErrNoPendingUpgrade нет подготовленного перехода для применения
	ErrNoPendingUpgrade = errors.New("no pending upgrade staged")

	// ErrSubscriptionNotActive подписка не активна
	ErrSubscriptionNotActive = errors.New("subscription is not active")

	// ErrSubscriptionExpired срок подписки истек
	ErrSubscriptionExpired = errors.New("subscription is expired")

	// ErrInvalidSubscribeType неизвестный тип платежного намерения
	ErrInvalidSubscribeType = errors.New("invalid subscribe type")

	// ErrGatewayUnavailable платежный шлюз недоступен или не ответил вовремя.
	// Исход удаленной команды неизвестен, повтор решает вызывающая сторона.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")
)

// GatewayError представляет ошибку вызова платежного шлюза
type GatewayError struct {
	Operation   string
	StatusCode  int
	Message     string
	Retryable   bool
	OriginalErr error
}

// Error реализует интерфейс error
func (e *GatewayError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("gateway error [%s]: %s: %v (status: %d)", e.Operation, e.Message, e.OriginalErr, e.StatusCode)
	}
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Operation, e.Message, e.StatusCode)
}

// Unwrap возвращает оригинальную ошибку
func (e *GatewayError) Unwrap() error {
	if e.OriginalErr != nil {
		return e.OriginalErr
	}
	return ErrGatewayUnavailable
}

// NewGatewayError создает новую ошибку вызова шлюза
func NewGatewayError(operation, message string, statusCode int, retryable bool, err error) *GatewayError {
	return &GatewayError{
		Operation:   operation,
		StatusCode:  statusCode,
		Message:     message,
		Retryable:   retryable,
		OriginalErr: err,
	}
}
