package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

func newTestSubscription() *domain.Subscription {
	return &domain.Subscription{
		ID:           uuid.New(),
		UserID:       "user-1",
		PlanID:       "plan-pro",
		PlanName:     "Pro",
		BillingCycle: domain.BillingCycleMonth,
		Status:       domain.SubscriptionStatusActive,
		TotalCredits: 100,
		DateExpired:  time.Now().Add(30 * 24 * time.Hour),
	}
}

func TestSubscriptionCreateAndGet(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.New(logger.ERROR))
	sub := newTestSubscription()

	require.NoError(t, repo.Create(context.Background(), sub))
	require.ErrorIs(t, repo.Create(context.Background(), sub), ErrDuplicate)

	got, err := repo.GetByID(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, sub.ID, got.ID)
	require.Equal(t, 100, got.TotalCredits)

	_, err = repo.GetByID(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionCallerDoesNotShareStorageMemory(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.New(logger.ERROR))
	sub := newTestSubscription()
	sub.PendingUpgrade = &domain.PendingUpgrade{NewCredits: 50}

	require.NoError(t, repo.Create(context.Background(), sub))

	got, err := repo.GetByID(context.Background(), sub.ID.String())
	require.NoError(t, err)

	// Мутация полученной копии не должна просочиться в хранилище
	got.TotalCredits = 999
	got.PendingUpgrade.NewCredits = 999

	fresh, err := repo.GetByID(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, 100, fresh.TotalCredits)
	require.Equal(t, 50, fresh.PendingUpgrade.NewCredits)
}

func TestSubscriptionUpdateAtomicallyReplacesState(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.New(logger.ERROR))
	sub := newTestSubscription()
	sub.PendingUpgrade = &domain.PendingUpgrade{NewCredits: 50, SubscribeType: domain.SubscribeTypeUpgrade}

	require.NoError(t, repo.Create(context.Background(), sub))

	sub.TotalCredits = 150
	sub.PendingUpgrade = nil
	require.NoError(t, repo.Update(context.Background(), sub))

	got, err := repo.GetByID(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, 150, got.TotalCredits)
	require.Nil(t, got.PendingUpgrade)

	missing := newTestSubscription()
	require.ErrorIs(t, repo.Update(context.Background(), missing), ErrNotFound)
}

func TestListExpiredActive(t *testing.T) {
	repo := NewInMemorySubscriptionRepository(logger.New(logger.ERROR))
	now := time.Now()

	expired := newTestSubscription()
	expired.DateExpired = now.Add(-time.Hour)
	require.NoError(t, repo.Create(context.Background(), expired))

	current := newTestSubscription()
	current.DateExpired = now.Add(time.Hour)
	require.NoError(t, repo.Create(context.Background(), current))

	cancelled := newTestSubscription()
	cancelled.Status = domain.SubscriptionStatusCancelled
	cancelled.DateExpired = now.Add(-time.Hour)
	require.NoError(t, repo.Create(context.Background(), cancelled))

	got, err := repo.ListExpiredActive(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, expired.ID, got[0].ID)
}

func TestSubscriptionRowRoundTrip(t *testing.T) {
	sub := newTestSubscription()
	sub.PendingUpgrade = &domain.PendingUpgrade{NewCredits: 50, SubscribeType: domain.SubscribeTypeUpgrade}
	sub.Transactions = []string{"txn-1", "txn-2"}

	row, err := toSubscriptionRow(sub)
	require.NoError(t, err)

	got, err := row.toDomain()
	require.NoError(t, err)
	require.Equal(t, sub.ID, got.ID)
	require.Equal(t, sub.TotalCredits, got.TotalCredits)
	require.Equal(t, sub.PendingUpgrade.NewCredits, got.PendingUpgrade.NewCredits)
	// Список транзакций переживает сериализацию строки, порядок сохраняется
	require.Equal(t, []string{"txn-1", "txn-2"}, got.Transactions)
}
