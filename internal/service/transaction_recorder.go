package service

import (
	"context"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/repository"
	"github.com/clubnet/billing-service/pkg/logger"
)

// RecordResult результат записи транзакции
type RecordResult struct {
	Created     bool
	Transaction *domain.Transaction
}

// TransactionRecorder интерфейс идемпотентной записи транзакций шлюза.
// Один внешний transactionId — одна запись; повторная запись того же ID
// возвращает Created=false и существующую запись нетронутой.
type TransactionRecorder interface {
	RecordIfNew(ctx context.Context, txn *domain.Transaction) (*RecordResult, error)
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.Transaction, error)
}

type transactionRecorder struct {
	repo repository.TransactionRepository
	log  *logger.Logger
}

// NewTransactionRecorder создает новый рекордер транзакций
func NewTransactionRecorder(repo repository.TransactionRepository, log *logger.Logger) TransactionRecorder {
	return &transactionRecorder{
		repo: repo,
		log:  log,
	}
}

// RecordIfNew записывает транзакцию, если ее еще нет.
// Атомарность проверки-и-вставки обеспечивает репозиторий, здесь только
// логирование исхода: эта точка — граница взаимоисключения, делающая
// применение платежа «не более одного раза» на transactionId.
func (r *transactionRecorder) RecordIfNew(ctx context.Context, txn *domain.Transaction) (*RecordResult, error) {
	created, recorded, err := r.repo.CreateIfNew(ctx, txn)
	if err != nil {
		return nil, err
	}

	if created {
		r.log.Infow("Transaction recorded",
			"transactionID", recorded.TransactionID,
			"state", recorded.State,
			"subscriptionID", recorded.SubscriptionID)
	} else {
		r.log.Infow("Transaction already recorded, skipping",
			"transactionID", recorded.TransactionID)
	}

	return &RecordResult{Created: created, Transaction: recorded}, nil
}

// GetTransaction возвращает транзакцию по внешнему ID
func (r *transactionRecorder) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	txn, err := r.repo.GetByID(ctx, transactionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return txn, nil
}

// ListBySubscription возвращает транзакции подписки
func (r *transactionRecorder) ListBySubscription(ctx context.Context, subscriptionID string) ([]domain.Transaction, error) {
	return r.repo.GetBySubscriptionID(ctx, subscriptionID)
}
