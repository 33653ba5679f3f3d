package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// postgresTransactionRepo реализует TransactionRepository для PostgreSQL.
type postgresTransactionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresTransactionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresTransactionRepository(db *sqlx.DB, log *logger.Logger) TransactionRepository {
	return &postgresTransactionRepo{
		db:  db,
		log: log,
	}
}

const transactionColumns = `
        transaction_id, internal_id, type, amount, currency, status, payment_method,
        state, response_text, user_id, subscription_id, subscribe_type,
        gateway_timestamp, date_created`

// CreateIfNew атомарно вставляет транзакцию по внешнему transactionId.
// Уникальность обеспечивает первичный ключ: ON CONFLICT DO NOTHING закрывает
// гонку «прочитал — вставил» при конкурентной доставке одного callback-а.
// Конфликт — не ошибка: возвращается created=false и уже записанная строка.
func (r *postgresTransactionRepo) CreateIfNew(ctx context.Context, txn *domain.Transaction) (bool, *domain.Transaction, error) {
	txn.DateCreated = time.Now()

	query := `
        INSERT INTO transactions (` + transactionColumns + `
        ) VALUES (
            :transaction_id, :internal_id, :type, :amount, :currency, :status, :payment_method,
            :state, :response_text, :user_id, :subscription_id, :subscribe_type,
            :gateway_timestamp, :date_created
        )
        ON CONFLICT (transaction_id) DO NOTHING`

	result, err := r.db.NamedExecContext(ctx, query, txn)
	if err != nil {
		r.log.Errorw("Failed to insert transaction in DB", "error", err, "transactionID", txn.TransactionID)
		return false, nil, fmt.Errorf("repository: failed to insert transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("repository: failed to get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		r.log.Debugw("Transaction recorded", "transactionID", txn.TransactionID)
		return true, txn, nil
	}

	// Конфликт: запись уже существует, возвращаем ее нетронутой
	existing, err := r.GetByID(ctx, txn.TransactionID)
	if err != nil {
		return false, nil, err
	}

	r.log.Infow("Duplicate transaction ignored", "transactionID", txn.TransactionID)
	return false, existing, nil
}

// GetByID возвращает транзакцию по внешнему ID.
func (r *postgresTransactionRepo) GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`

	err := r.db.GetContext(ctx, &txn, query, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get transaction by ID from DB", "error", err, "transactionID", transactionID)
		return nil, fmt.Errorf("repository: failed to get transaction by ID: %w", err)
	}

	return &txn, nil
}

// GetBySubscriptionID возвращает транзакции подписки в порядке создания.
func (r *postgresTransactionRepo) GetBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	query := `SELECT ` + transactionColumns + `
        FROM transactions
        WHERE subscription_id = $1
        ORDER BY date_created`

	err := r.db.SelectContext(ctx, &txns, query, subscriptionID)
	if err != nil {
		r.log.Errorw("Failed to get transactions by subscription ID from DB", "error", err, "subscriptionID", subscriptionID)
		return nil, fmt.Errorf("repository: failed to get transactions by subscription ID: %w", err)
	}

	return txns, nil
}
