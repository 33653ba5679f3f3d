package repository

import (
	"context"
	"sync"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// PlanRepository интерфейс каталога планов подписки.
// Каталог принадлежит внешней системе, сервис биллинга его только читает.
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error)
	List(ctx context.Context) ([]domain.SubscriptionPlan, error)
}

// InMemoryPlanRepository реализация каталога планов в памяти
type InMemoryPlanRepository struct {
	plans map[string]domain.SubscriptionPlan
	mutex sync.RWMutex
	log   *logger.Logger
}

// NewInMemoryPlanRepository создает новый каталог планов в памяти
func NewInMemoryPlanRepository(log *logger.Logger) *InMemoryPlanRepository {
	return &InMemoryPlanRepository{
		plans: make(map[string]domain.SubscriptionPlan),
		log:   log,
	}
}

// Seed наполняет каталог планами (используется в тестах и при локальном запуске)
func (r *InMemoryPlanRepository) Seed(plans ...domain.SubscriptionPlan) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, plan := range plans {
		r.plans[plan.ID] = plan
	}
}

// GetByID возвращает план по ID
func (r *InMemoryPlanRepository) GetByID(ctx context.Context, id string) (*domain.SubscriptionPlan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plan, ok := r.plans[id]
	if !ok {
		return nil, ErrNotFound
	}

	return &plan, nil
}

// List возвращает все планы каталога
func (r *InMemoryPlanRepository) List(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	plans := make([]domain.SubscriptionPlan, 0, len(r.plans))
	for _, plan := range r.plans {
		plans = append(plans, plan)
	}

	return plans, nil
}
