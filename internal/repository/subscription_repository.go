package repository

import (
	"context"
	"sync"
	"time"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// SubscriptionRepository интерфейс для работы с подписками.
// Update записывает все изменяемые поля одной атомарной операцией по ID,
// конкурентный читатель не должен видеть частично примененный переход.
// Кеширование состояния подписок между запросами запрещено: каждое чтение
// идет в источник истины.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)
	GetByUserID(ctx context.Context, userID string) ([]domain.Subscription, error)
	Update(ctx context.Context, sub *domain.Subscription) error
	ListExpiredActive(ctx context.Context, asOf time.Time) ([]domain.Subscription, error)
}

// InMemorySubscriptionRepository реализация репозитория подписок в памяти
type InMemorySubscriptionRepository struct {
	subs  map[string]domain.Subscription
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemorySubscriptionRepository создает новый репозиторий подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subs: make(map[string]domain.Subscription),
		log:  log,
	}
}

// Create сохраняет новую подписку
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := sub.ID.String()
	if _, exists := r.subs[key]; exists {
		return ErrDuplicate
	}

	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	r.subs[key] = cloneSubscription(sub)
	return nil
}

// GetByID возвращает подписку по ID
func (r *InMemorySubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sub, exists := r.subs[id]
	if !exists {
		return nil, ErrNotFound
	}

	copied := cloneSubscription(&sub)
	return &copied, nil
}

// GetByUserID возвращает подписки пользователя
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID string) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var subs []domain.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			subs = append(subs, cloneSubscription(&sub))
		}
	}

	return subs, nil
}

// Update атомарно заменяет состояние подписки
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := sub.ID.String()
	existing, exists := r.subs[key]
	if !exists {
		return ErrNotFound
	}

	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now()

	r.subs[key] = cloneSubscription(sub)
	return nil
}

// ListExpiredActive возвращает активные подписки с истекшим сроком
func (r *InMemorySubscriptionRepository) ListExpiredActive(ctx context.Context, asOf time.Time) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var expired []domain.Subscription
	for _, sub := range r.subs {
		if sub.Status == domain.SubscriptionStatusActive && sub.IsExpired(asOf) {
			expired = append(expired, cloneSubscription(&sub))
		}
	}

	return expired, nil
}

// cloneSubscription копирует подписку вместе с вложенным переходом,
// чтобы вызывающий не делил память с хранилищем.
func cloneSubscription(sub *domain.Subscription) domain.Subscription {
	copied := *sub
	if sub.PendingUpgrade != nil {
		pending := *sub.PendingUpgrade
		copied.PendingUpgrade = &pending
	}
	if sub.Transactions != nil {
		copied.Transactions = append([]string(nil), sub.Transactions...)
	}
	return copied
}
