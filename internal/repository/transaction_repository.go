package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// TransactionRepository интерфейс для работы с транзакциями шлюза.
// CreateIfNew — единственная точка записи: вставка с проверкой уникальности
// по внешнему transactionId должна быть атомарной относительно конкурентной
// доставки callback-ов. Дубликат — не ошибка: возвращается created=false
// и существующая запись без изменений.
type TransactionRepository interface {
	CreateIfNew(ctx context.Context, txn *domain.Transaction) (created bool, existing *domain.Transaction, err error)
	GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.Transaction, error)
}

// InMemoryTransactionRepository реализация репозитория транзакций в памяти
type InMemoryTransactionRepository struct {
	txns  map[string]domain.Transaction
	mutex sync.Mutex
	log   *logger.Logger
}

// NewInMemoryTransactionRepository создает новый репозиторий транзакций в памяти
func NewInMemoryTransactionRepository(log *logger.Logger) *InMemoryTransactionRepository {
	return &InMemoryTransactionRepository{
		txns: make(map[string]domain.Transaction),
		log:  log,
	}
}

// CreateIfNew атомарно вставляет транзакцию, если ее еще нет.
// Проверка и вставка выполняются под одной блокировкой: окно гонки
// «прочитал — вставил» закрыто.
func (r *InMemoryTransactionRepository) CreateIfNew(ctx context.Context, txn *domain.Transaction) (bool, *domain.Transaction, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.txns[txn.TransactionID]; ok {
		return false, &existing, nil
	}

	txn.DateCreated = time.Now()
	r.txns[txn.TransactionID] = *txn

	return true, txn, nil
}

// GetByID возвращает транзакцию по внешнему ID
func (r *InMemoryTransactionRepository) GetByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	txn, ok := r.txns[transactionID]
	if !ok {
		return nil, ErrNotFound
	}

	return &txn, nil
}

// GetBySubscriptionID возвращает транзакции подписки в порядке создания
func (r *InMemoryTransactionRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.Transaction, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var txns []domain.Transaction
	for _, txn := range r.txns {
		if txn.SubscriptionID == subscriptionID {
			txns = append(txns, txn)
		}
	}

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].DateCreated.Before(txns[j].DateCreated)
	})

	return txns, nil
}
