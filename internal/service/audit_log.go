package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/repository"
	"github.com/clubnet/billing-service/pkg/logger"
)

// LogDelta описание записываемого в журнал изменения
type LogDelta struct {
	Credits       int
	Type          domain.SubscriptionLogType
	TransactionID string
	Notes         string
}

// AuditLogWriter интерфейс записи аудиторского журнала подписок.
// Журнал append-only, записи никогда не изменяются.
type AuditLogWriter interface {
	Append(ctx context.Context, subscriptionID string, delta LogDelta) (*domain.SubscriptionLog, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.SubscriptionLog, error)
}

type auditLogWriter struct {
	logs repository.SubscriptionLogRepository
	subs repository.SubscriptionRepository
	log  *logger.Logger
}

// NewAuditLogWriter создает новый писатель журнала подписок
func NewAuditLogWriter(logs repository.SubscriptionLogRepository, subs repository.SubscriptionRepository, log *logger.Logger) AuditLogWriter {
	return &auditLogWriter{
		logs: logs,
		subs: subs,
		log:  log,
	}
}

// Append добавляет запись журнала для подписки.
// Подписка перечитывается, чтобы снять денормализованного пользователя и
// итоговый баланс. Отсутствие подписки — жесткая ошибка: запись журнала
// без подписки была бы осиротевшей.
func (w *auditLogWriter) Append(ctx context.Context, subscriptionID string, delta LogDelta) (*domain.SubscriptionLog, error) {
	sub, err := w.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: cannot write log for %s", domain.ErrSubscriptionNotFound, subscriptionID)
		}
		return nil, fmt.Errorf("failed to load subscription for audit log: %w", err)
	}

	entry := &domain.SubscriptionLog{
		UserID:                 sub.UserID,
		SubscriptionID:         subscriptionID,
		SubscriptionDate:       time.Now(),
		Credits:                delta.Credits,
		TotalCredits:           sub.TotalCredits,
		SubscriptionExpireDate: sub.DateExpired,
		Type:                   delta.Type,
		TransactionID:          delta.TransactionID,
		Notes:                  delta.Notes,
	}

	if err := w.logs.Append(ctx, entry); err != nil {
		return nil, err
	}

	w.log.Debugw("Audit log entry appended",
		"subscriptionID", subscriptionID,
		"type", delta.Type,
		"credits", delta.Credits,
		"totalCredits", entry.TotalCredits)

	return entry, nil
}

// ListBySubscription возвращает журнал подписки
func (w *auditLogWriter) ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.SubscriptionLog, error) {
	return w.logs.ListBySubscriptionID(ctx, subscriptionID)
}
