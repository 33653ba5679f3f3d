package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// postgresSubscriptionRepo реализует SubscriptionRepository для PostgreSQL.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
	}
}

// subscriptionRow строка таблицы subscriptions.
// pending_upgrade хранится как JSONB: переход применяется и очищается
// тем же UPDATE, что меняет баланс и статус.
type subscriptionRow struct {
	ID             string       `db:"id"`
	UserID         string       `db:"user_id"`
	PlanID         string       `db:"plan_id"`
	PlanName       string       `db:"plan_name"`
	BillingCycle   string       `db:"billing_cycle"`
	TotalCredits   int          `db:"total_credits"`
	Status         string       `db:"status"`
	DateExpired    time.Time    `db:"date_expired"`
	DateStopped    sql.NullTime `db:"date_stopped"`
	IsCanceled     bool         `db:"is_canceled"`
	PendingUpgrade []byte       `db:"pending_upgrade"`
	Transactions   []byte       `db:"transactions"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func toSubscriptionRow(sub *domain.Subscription) (*subscriptionRow, error) {
	row := &subscriptionRow{
		ID:           sub.ID.String(),
		UserID:       sub.UserID,
		PlanID:       sub.PlanID,
		PlanName:     sub.PlanName,
		BillingCycle: string(sub.BillingCycle),
		TotalCredits: sub.TotalCredits,
		Status:       string(sub.Status),
		DateExpired:  sub.DateExpired,
		IsCanceled:   sub.IsCanceled,
		CreatedAt:    sub.CreatedAt,
		UpdatedAt:    sub.UpdatedAt,
	}

	if sub.DateStopped != nil {
		row.DateStopped = sql.NullTime{Time: *sub.DateStopped, Valid: true}
	}

	if sub.PendingUpgrade != nil {
		data, err := json.Marshal(sub.PendingUpgrade)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to marshal pending upgrade: %w", err)
		}
		row.PendingUpgrade = data
	}

	if len(sub.Transactions) > 0 {
		data, err := json.Marshal(sub.Transactions)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to marshal transaction list: %w", err)
		}
		row.Transactions = data
	}

	return row, nil
}

func (row *subscriptionRow) toDomain() (*domain.Subscription, error) {
	sub := &domain.Subscription{
		UserID:       row.UserID,
		PlanID:       row.PlanID,
		PlanName:     row.PlanName,
		BillingCycle: domain.BillingCycle(row.BillingCycle),
		TotalCredits: row.TotalCredits,
		Status:       domain.SubscriptionStatus(row.Status),
		DateExpired:  row.DateExpired,
		IsCanceled:   row.IsCanceled,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}

	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("repository: invalid subscription id %q: %w", row.ID, err)
	}
	sub.ID = id

	if row.DateStopped.Valid {
		stopped := row.DateStopped.Time
		sub.DateStopped = &stopped
	}

	if len(row.PendingUpgrade) > 0 {
		var pending domain.PendingUpgrade
		if err := json.Unmarshal(row.PendingUpgrade, &pending); err != nil {
			return nil, fmt.Errorf("repository: failed to unmarshal pending upgrade: %w", err)
		}
		sub.PendingUpgrade = &pending
	}

	if len(row.Transactions) > 0 {
		if err := json.Unmarshal(row.Transactions, &sub.Transactions); err != nil {
			return nil, fmt.Errorf("repository: failed to unmarshal transaction list: %w", err)
		}
	}

	return sub, nil
}

const subscriptionColumns = `
        id, user_id, plan_id, plan_name, billing_cycle, total_credits, status,
        date_expired, date_stopped, is_canceled, pending_upgrade, transactions,
        created_at, updated_at`

// Create сохраняет новую подписку в базе данных.
func (r *postgresSubscriptionRepo) Create(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	row, err := toSubscriptionRow(sub)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO subscriptions (` + subscriptionColumns + `
        ) VALUES (
            :id, :user_id, :plan_id, :plan_name, :billing_cycle, :total_credits, :status,
            :date_expired, :date_stopped, :is_canceled, :pending_upgrade, :transactions,
            :created_at, :updated_at
        )`

	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		r.log.Errorw("Failed to create subscription in DB", "error", err, "subscriptionID", row.ID)
		return fmt.Errorf("repository: failed to create subscription: %w", err)
	}

	r.log.Debugw("Successfully created subscription in DB", "subscriptionID", row.ID, "userID", row.UserID)
	return nil
}

// GetByID возвращает подписку по ее ID.
func (r *postgresSubscriptionRepo) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	var row subscriptionRow
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription by ID from DB", "error", err, "subscriptionID", id)
		return nil, fmt.Errorf("repository: failed to get subscription by ID: %w", err)
	}

	return row.toDomain()
}

// GetByUserID возвращает все подписки пользователя.
func (r *postgresSubscriptionRepo) GetByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	var rows []subscriptionRow
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
        ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &rows, query, userID)
	if err != nil {
		r.log.Errorw("Failed to get subscriptions by user ID from DB", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to get subscriptions by user ID: %w", err)
	}

	subs := make([]domain.Subscription, 0, len(rows))
	for i := range rows {
		sub, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}

	return subs, nil
}

// Update записывает все изменяемые поля подписки одним UPDATE.
// Очистка pending_upgrade, изменение баланса и статуса попадают в базу
// как единое атомарное изменение строки.
func (r *postgresSubscriptionRepo) Update(ctx context.Context, sub *domain.Subscription) error {
	sub.UpdatedAt = time.Now()

	row, err := toSubscriptionRow(sub)
	if err != nil {
		return err
	}

	query := `
        UPDATE subscriptions SET
            plan_id = :plan_id,
            plan_name = :plan_name,
            billing_cycle = :billing_cycle,
            total_credits = :total_credits,
            status = :status,
            date_expired = :date_expired,
            date_stopped = :date_stopped,
            is_canceled = :is_canceled,
            pending_upgrade = :pending_upgrade,
            transactions = :transactions,
            updated_at = :updated_at
        WHERE id = :id`

	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		r.log.Errorw("Failed to update subscription in DB", "error", err, "subscriptionID", row.ID)
		return fmt.Errorf("repository: failed to update subscription: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorw("Failed to get rows affected after update", "error", err, "subscriptionID", row.ID)
		return fmt.Errorf("repository: failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	r.log.Debugw("Successfully updated subscription in DB", "subscriptionID", row.ID)
	return nil
}

// ListExpiredActive возвращает активные подписки, истекшие на момент asOf.
func (r *postgresSubscriptionRepo) ListExpiredActive(ctx context.Context, asOf time.Time) ([]domain.Subscription, error) {
	var rows []subscriptionRow
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE status = $1 AND date_expired <= $2
        ORDER BY date_expired`

	err := r.db.SelectContext(ctx, &rows, query, string(domain.SubscriptionStatusActive), asOf)
	if err != nil {
		r.log.Errorw("Failed to list expired subscriptions from DB", "error", err)
		return nil, fmt.Errorf("repository: failed to list expired subscriptions: %w", err)
	}

	subs := make([]domain.Subscription, 0, len(rows))
	for i := range rows {
		sub, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}

	return subs, nil
}
