package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

const (
	planKeyPrefix = "plan:"
	planListKey   = "plans:all"

	// TTL для кэша каталога планов
	planCacheTTL = 15 * time.Minute
)

// RedisCacheRepository кеширует каталог планов в Redis.
// Кешируются ТОЛЬКО планы: каталог принадлежит внешней системе, а снимок
// цены и кредитов фиксируется в PendingUpgrade в момент подготовки перехода.
// Состояние подписок и кредитный баланс не кешируются никогда — каждое
// чтение подписки идет в источник истины.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CachePlan кеширует план в Redis
func (r *RedisCacheRepository) CachePlan(ctx context.Context, plan *domain.SubscriptionPlan) error {
	key := planKeyPrefix + plan.ID

	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	if err := r.client.Set(ctx, key, data, planCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache plan in Redis", "error", err, "planID", plan.ID)
		return fmt.Errorf("failed to cache plan: %w", err)
	}

	return nil
}

// GetCachedPlan возвращает план из кеша, nil если его там нет
func (r *RedisCacheRepository) GetCachedPlan(ctx context.Context, planID string) (*domain.SubscriptionPlan, error) {
	key := planKeyPrefix + planID

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan from cache: %w", err)
	}

	var plan domain.SubscriptionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached plan: %w", err)
	}

	return &plan, nil
}

// CachePlanList кеширует полный список планов
func (r *RedisCacheRepository) CachePlanList(ctx context.Context, plans []domain.SubscriptionPlan) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return fmt.Errorf("failed to marshal plan list: %w", err)
	}

	if err := r.client.Set(ctx, planListKey, data, planCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache plan list: %w", err)
	}

	return nil
}

// GetCachedPlanList возвращает список планов из кеша, nil если его там нет
func (r *RedisCacheRepository) GetCachedPlanList(ctx context.Context) ([]domain.SubscriptionPlan, error) {
	data, err := r.client.Get(ctx, planListKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan list from cache: %w", err)
	}

	var plans []domain.SubscriptionPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached plan list: %w", err)
	}

	return plans, nil
}

// InvalidatePlanCache сбрасывает кеш плана и списка планов
func (r *RedisCacheRepository) InvalidatePlanCache(ctx context.Context, planID string) error {
	return r.client.Del(ctx, planKeyPrefix+planID, planListKey).Err()
}
