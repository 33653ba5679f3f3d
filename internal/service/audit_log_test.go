package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/repository"
	"github.com/clubnet/billing-service/pkg/logger"
)

func newAuditFixture(t *testing.T) (AuditLogWriter, *repository.InMemorySubscriptionRepository) {
	t.Helper()
	log := logger.New(logger.ERROR)
	subs := repository.NewInMemorySubscriptionRepository(log)
	logs := repository.NewInMemorySubscriptionLogRepository(log)
	return NewAuditLogWriter(logs, subs, log), subs
}

func TestAuditAppendDenormalizesSubscriptionState(t *testing.T) {
	audit, subs := newAuditFixture(t)

	sub := &domain.Subscription{
		ID:           uuid.New(),
		UserID:       "user-1",
		TotalCredits: 150,
		Status:       domain.SubscriptionStatusActive,
		DateExpired:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, subs.Create(context.Background(), sub))

	entry, err := audit.Append(context.Background(), sub.ID.String(), LogDelta{
		Credits:       50,
		Type:          domain.LogTypeUpgrade,
		TransactionID: "txn-1",
		Notes:         "Basic -> Pro",
	})
	require.NoError(t, err)

	require.Equal(t, "user-1", entry.UserID)
	require.Equal(t, 50, entry.Credits)
	require.Equal(t, 150, entry.TotalCredits)
	require.Equal(t, sub.DateExpired, entry.SubscriptionExpireDate)
	require.Equal(t, "txn-1", entry.TransactionID)
}

func TestAuditAppendWithoutSubscriptionIsHardError(t *testing.T) {
	audit, _ := newAuditFixture(t)

	_, err := audit.Append(context.Background(), uuid.NewString(), LogDelta{Type: domain.LogTypeCancel})
	require.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestAuditListReturnsEntriesInOrder(t *testing.T) {
	audit, subs := newAuditFixture(t)

	sub := &domain.Subscription{ID: uuid.New(), UserID: "user-1", Status: domain.SubscriptionStatusActive}
	require.NoError(t, subs.Create(context.Background(), sub))

	types := []domain.SubscriptionLogType{
		domain.LogTypeInitialPurchase,
		domain.LogTypePurchaseCredits,
		domain.LogTypeCancel,
	}
	for _, lt := range types {
		_, err := audit.Append(context.Background(), sub.ID.String(), LogDelta{Type: lt})
		require.NoError(t, err)
	}

	entries, err := audit.ListBySubscription(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, lt := range types {
		require.Equal(t, lt, entries[i].Type)
	}
}
