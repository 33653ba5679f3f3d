package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// SubscriptionLogRepository интерфейс аудиторского журнала подписок.
// Журнал append-only: интерфейс намеренно не дает способа изменить
// или удалить существующую запись.
type SubscriptionLogRepository interface {
	Append(ctx context.Context, entry *domain.SubscriptionLog) error
	ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.SubscriptionLog, error)
}

// InMemorySubscriptionLogRepository реализация журнала в памяти
type InMemorySubscriptionLogRepository struct {
	entries []domain.SubscriptionLog
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewInMemorySubscriptionLogRepository создает новый журнал в памяти
func NewInMemorySubscriptionLogRepository(log *logger.Logger) *InMemorySubscriptionLogRepository {
	return &InMemorySubscriptionLogRepository{
		log: log,
	}
}

// Append добавляет запись в журнал
func (r *InMemorySubscriptionLogRepository) Append(ctx context.Context, entry *domain.SubscriptionLog) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)

	return nil
}

// ListBySubscriptionID возвращает записи журнала подписки в порядке добавления
func (r *InMemorySubscriptionLogRepository) ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]domain.SubscriptionLog, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var entries []domain.SubscriptionLog
	for _, entry := range r.entries {
		if entry.SubscriptionID == subscriptionID {
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}
