package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// postgresSubscriptionLogRepo реализует SubscriptionLogRepository для PostgreSQL.
// Таблица insert-only: UPDATE и DELETE по ней в штатной работе не выполняются.
type postgresSubscriptionLogRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionLogRepository создает новый экземпляр журнала для PostgreSQL.
func NewPostgresSubscriptionLogRepository(db *sqlx.DB, log *logger.Logger) SubscriptionLogRepository {
	return &postgresSubscriptionLogRepo{
		db:  db,
		log: log,
	}
}

// Append добавляет запись в журнал подписки.
func (r *postgresSubscriptionLogRepo) Append(ctx context.Context, entry *domain.SubscriptionLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	query := `
        INSERT INTO subscription_logs (
            id, user_id, subscription_id, subscription_date, credits, total_credits,
            subscription_expire_date, log_type, transaction_id, notes, created_at
        ) VALUES (
            :id, :user_id, :subscription_id, :subscription_date, :credits, :total_credits,
            :subscription_expire_date, :log_type, :transaction_id, :notes, :created_at
        )`

	_, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		r.log.Errorw("Failed to append subscription log", "error", err, "subscriptionID", entry.SubscriptionID)
		return fmt.Errorf("repository: failed to append subscription log: %w", err)
	}

	r.log.Debugw("Subscription log appended",
		"subscriptionID", entry.SubscriptionID, "type", entry.Type, "credits", entry.Credits)
	return nil
}

// ListBySubscriptionID возвращает записи журнала подписки в порядке добавления.
func (r *postgresSubscriptionLogRepo) ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.SubscriptionLog, error) {
	var entries []domain.SubscriptionLog
	query := `
        SELECT id, user_id, subscription_id, subscription_date, credits, total_credits,
               subscription_expire_date, log_type, transaction_id, notes, created_at
        FROM subscription_logs
        WHERE subscription_id = $1
        ORDER BY created_at`

	err := r.db.SelectContext(ctx, &entries, query, subscriptionID)
	if err != nil {
		r.log.Errorw("Failed to list subscription logs from DB", "error", err, "subscriptionID", subscriptionID)
		return nil, fmt.Errorf("repository: failed to list subscription logs: %w", err)
	}

	return entries, nil
}
