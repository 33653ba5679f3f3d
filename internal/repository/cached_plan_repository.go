package repository

import (
	"context"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// CachedPlanRepository реализует PlanRepository с кешированием в Redis.
// Ошибка кеша никогда не роняет запрос: идем в основное хранилище.
type CachedPlanRepository struct {
	repo  PlanRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedPlanRepository создает новый каталог планов с кешированием
func NewCachedPlanRepository(repo PlanRepository, cache *RedisCacheRepository, log *logger.Logger) PlanRepository {
	return &CachedPlanRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByID получает план по ID (сначала из кеша, потом из БД)
func (r *CachedPlanRepository) GetByID(ctx context.Context, planID string) (*domain.SubscriptionPlan, error) {
	cached, err := r.cache.GetCachedPlan(ctx, planID)
	if err != nil {
		r.log.Warnw("Error getting plan from cache", "error", err, "planID", planID)
	}
	if cached != nil {
		return cached, nil
	}

	plan, err := r.repo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CachePlan(ctx, plan); err != nil {
		r.log.Warnw("Failed to cache plan", "error", err, "planID", planID)
	}

	return plan, nil
}

// List получает список планов (сначала из кеша, потом из БД)
func (r *CachedPlanRepository) List(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	cached, err := r.cache.GetCachedPlanList(ctx)
	if err != nil {
		r.log.Warnw("Error getting plan list from cache", "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	plans, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CachePlanList(ctx, plans); err != nil {
		r.log.Warnw("Failed to cache plan list", "error", err)
	}

	return plans, nil
}
