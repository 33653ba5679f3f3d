package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clubnet/billing-service/internal/config"
	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/gateway"
	"github.com/clubnet/billing-service/internal/metrics"
	"github.com/clubnet/billing-service/internal/repository"
	"github.com/clubnet/billing-service/pkg/logger"
)

type ledgerFixture struct {
	ledger SubscriptionLedger
	subs   *repository.InMemorySubscriptionRepository
	plans  *repository.InMemoryPlanRepository
	txns   *repository.InMemoryTransactionRepository
	audit  AuditLogWriter
	users  *InMemoryUserDirectory
	events *InMemoryEventSink
	now    time.Time
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	log := logger.New(logger.ERROR)

	subs := repository.NewInMemorySubscriptionRepository(log)
	plans := repository.NewInMemoryPlanRepository(log)
	txns := repository.NewInMemoryTransactionRepository(log)
	logs := repository.NewInMemorySubscriptionLogRepository(log)

	plans.Seed(
		domain.SubscriptionPlan{ID: "plan-basic", Name: "Basic", Price: 9.99, Currency: "EUR", CreditsGranted: 50},
		domain.SubscriptionPlan{ID: "plan-pro", Name: "Pro", Price: 19.99, Currency: "EUR", CreditsGranted: 100},
		domain.SubscriptionPlan{ID: "plan-max", Name: "Max", Price: 29.99, Currency: "EUR", CreditsGranted: 150},
	)

	users := NewInMemoryUserDirectory()
	users.Seed(domain.User{ID: "user-1", Email: "user@example.com", Locale: "fr"})

	cfg := config.GatewayConfig{
		MerchantAccount: "club-merchant",
		CallerName:      "billing-service",
		CallerSecret:    "caller-secret",
		NotificationKey: "notification-key",
		PaywallSecret:   "paywall-secret",
		PaywallURL:      "https://pay.example.com/paywall",
	}
	codec := gateway.NewSignatureCodec(cfg, log)
	sessions := gateway.NewSessionBuilder(cfg, codec, log)

	recorder := NewTransactionRecorder(txns, log)
	audit := NewAuditLogWriter(logs, subs, log)
	events := NewInMemoryEventSink()

	ledger := NewSubscriptionLedger(
		subs, plans, recorder, audit, sessions,
		users, NewLogNotificationService(log), events,
		metrics.NewNopBillingMetrics(), log,
	)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.(*subscriptionLedger).now = func() time.Time { return now }

	return &ledgerFixture{
		ledger: ledger,
		subs:   subs,
		plans:  plans,
		txns:   txns,
		audit:  audit,
		users:  users,
		events: events,
		now:    now,
	}
}

// chargedCallback собирает callback в проводном формате для подготовленного перехода.
func chargedCallback(subscriptionID string, t domain.SubscribeType, amount float64) *gateway.CallbackPayload {
	return &gateway.CallbackPayload{
		Status:     gateway.ChargeStatusCharged,
		ID:         gateway.BuildChargeID(subscriptionID, 1774000000),
		OrderID:    gateway.BuildOrderID("Pro", t, 1774000000),
		IntentType: string(t),
		Transactions: []gateway.CallbackTransaction{
			{State: "CHARGED", Amount: amount, Currency: "EUR", Type: "CAPTURE", Timestamp: "2026-03-01T12:00:00Z"},
		},
	}
}

// activateSubscription проводит подписку через полный цикл new -> active.
func (f *ledgerFixture) activateSubscription(t *testing.T) *domain.Subscription {
	t.Helper()

	_, sub, err := f.ledger.StageNewSubscription(context.Background(), "user-1", "plan-pro", domain.BillingCycleMonth, "fr")
	require.NoError(t, err)

	result, err := f.ledger.ApplyConfirmedPayment(context.Background(), chargedCallback(sub.ID.String(), domain.SubscribeTypeNew, 19.99))
	require.NoError(t, err)
	require.True(t, result.Applied)

	return result.Subscription
}

func TestStageNewSubscription(t *testing.T) {
	f := newLedgerFixture(t)

	session, sub, err := f.ledger.StageNewSubscription(context.Background(), "user-1", "plan-pro", domain.BillingCycleMonth, "fr")
	require.NoError(t, err)

	// Кредиты не двигаются до подтверждения оплаты
	require.Equal(t, domain.SubscriptionStatusNotActive, sub.Status)
	require.Equal(t, 0, sub.TotalCredits)
	require.NotNil(t, sub.PendingUpgrade)
	require.Equal(t, 100, sub.PendingUpgrade.NewCredits)
	require.Equal(t, "Pro", sub.PendingUpgrade.NewPlanName)
	require.Equal(t, domain.SubscribeTypeNew, sub.PendingUpgrade.SubscribeType)

	require.Equal(t, "new", session.Payload.IntentType)
	require.Contains(t, session.Payload.ChargeID, sub.ID.String())
	require.NotEmpty(t, session.Signature)
}

func TestStageNewSubscriptionUsesCatalogDuration(t *testing.T) {
	f := newLedgerFixture(t)
	f.plans.Seed(domain.SubscriptionPlan{ID: "plan-trial", Name: "Trial", Price: 4.99, Currency: "EUR", CreditsGranted: 10, DurationDays: 14})

	_, sub, err := f.ledger.StageNewSubscription(context.Background(), "user-1", "plan-trial", domain.BillingCycleMonth, "")
	require.NoError(t, err)

	// Срок из каталога важнее стандартного периода цикла
	require.Equal(t, f.now.Add(14*24*time.Hour), sub.PendingUpgrade.NewExpirationDate)
}

func TestStageNewSubscriptionUnknownUser(t *testing.T) {
	f := newLedgerFixture(t)

	_, _, err := f.ledger.StageNewSubscription(context.Background(), "nobody", "plan-pro", domain.BillingCycleMonth, "")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestStageNewSubscriptionUnknownPlan(t *testing.T) {
	f := newLedgerFixture(t)

	_, _, err := f.ledger.StageNewSubscription(context.Background(), "user-1", "plan-missing", domain.BillingCycleMonth, "")
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestApplyConfirmedPaymentInitialPurchase(t *testing.T) {
	f := newLedgerFixture(t)

	_, staged, err := f.ledger.StageNewSubscription(context.Background(), "user-1", "plan-pro", domain.BillingCycleMonth, "fr")
	require.NoError(t, err)

	result, err := f.ledger.ApplyConfirmedPayment(context.Background(), chargedCallback(staged.ID.String(), domain.SubscribeTypeNew, 19.99))
	require.NoError(t, err)
	require.True(t, result.Applied)

	sub := result.Subscription
	require.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	require.Equal(t, 100, sub.TotalCredits)
	require.Equal(t, "Pro", sub.PlanName)
	require.Nil(t, sub.PendingUpgrade)
	require.Len(t, sub.Transactions, 1)

	entries, err := f.audit.ListBySubscription(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.LogTypeInitialPurchase, entries[0].Type)
	require.Equal(t, 100, entries[0].Credits)
	require.Equal(t, 100, entries[0].TotalCredits)

	// Подписка привязана к пользователю
	user, err := f.users.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, sub.ID.String(), user.SubscriptionID)

	events := f.events.Events()
	require.Len(t, events, 1)
	require.Equal(t, domain.EventSubscriptionActivated, events[0].Type)
	require.Equal(t, 100, events[0].Credits)
}

func TestApplyConfirmedPaymentUpgrade(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	_, err := f.ledger.StageUpgrade(context.Background(), sub.ID.String(), "plan-max", "")
	require.NoError(t, err)

	payload := chargedCallback(sub.ID.String(), domain.SubscribeTypeUpgrade, 29.99)
	payload.ID = gateway.BuildChargeID(sub.ID.String(), 1774000100)
	result, err := f.ledger.ApplyConfirmedPayment(context.Background(), payload)
	require.NoError(t, err)
	require.True(t, result.Applied)

	// Кредиты складываются, остаток не сгорает
	require.Equal(t, 250, result.Subscription.TotalCredits)
	require.Equal(t, "Max", result.Subscription.PlanName)
	require.Equal(t, "plan-max", result.Subscription.PlanID)
	require.Nil(t, result.Subscription.PendingUpgrade)
}

func TestDuplicateCallbackDoesNotDoubleCredit(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	_, err := f.ledger.StageCreditPurchase(context.Background(), sub.ID.String(), CreditPack{Credits: 20, Price: 4.99, Currency: "EUR"})
	require.NoError(t, err)

	payload := chargedCallback(sub.ID.String(), domain.SubscribeTypeCredits, 4.99)
	payload.ID = gateway.BuildChargeID(sub.ID.String(), 1774000200)

	first, err := f.ledger.ApplyConfirmedPayment(context.Background(), payload)
	require.NoError(t, err)
	require.True(t, first.Applied)
	require.Equal(t, 120, first.Subscription.TotalCredits)

	// Повторная доставка того же callback-а: подтверждается, но ничего не меняет
	second, err := f.ledger.ApplyConfirmedPayment(context.Background(), payload)
	require.NoError(t, err)
	require.False(t, second.Applied)

	current, err := f.ledger.GetSubscription(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, 120, current.TotalCredits)

	// Одна запись транзакции, не две
	recorded, err := f.txns.GetBySubscriptionID(context.Background(), sub.ID.String())
	require.NoError(t, err)
	count := 0
	for _, txn := range recorded {
		if txn.TransactionID == payload.ID {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestRedeliveryAfterPendingClearedIsAcknowledged(t *testing.T) {
	f := newLedgerFixture(t)

	_, staged, err := f.ledger.StageNewSubscription(context.Background(), "user-1", "plan-pro", domain.BillingCycleMonth, "fr")
	require.NoError(t, err)

	payload := chargedCallback(staged.ID.String(), domain.SubscribeTypeNew, 19.99)
	first, err := f.ledger.ApplyConfirmedPayment(context.Background(), payload)
	require.NoError(t, err)
	require.True(t, first.Applied)
	require.Nil(t, first.Subscription.PendingUpgrade)

	// Переход уже применен и очищен; повтор того же transactionId -
	// подтвержденный no-op, а не ErrNoPendingUpgrade
	second, err := f.ledger.ApplyConfirmedPayment(context.Background(), payload)
	require.NoError(t, err)
	require.False(t, second.Applied)

	current, err := f.ledger.GetSubscription(context.Background(), staged.ID.String())
	require.NoError(t, err)
	require.Equal(t, 100, current.TotalCredits)

	entries, err := f.audit.ListBySubscription(context.Background(), staged.ID.String())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestTotalCreditsMatchesAuditTrail(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	_, err := f.ledger.StageCreditPurchase(context.Background(), sub.ID.String(), CreditPack{Credits: 30, Price: 6.99, Currency: "EUR"})
	require.NoError(t, err)
	payload := chargedCallback(sub.ID.String(), domain.SubscribeTypeCredits, 6.99)
	payload.ID = gateway.BuildChargeID(sub.ID.String(), 1774000300)
	_, err = f.ledger.ApplyConfirmedPayment(context.Background(), payload)
	require.NoError(t, err)

	current, err := f.ledger.GetSubscription(context.Background(), sub.ID.String())
	require.NoError(t, err)

	entries, err := f.audit.ListBySubscription(context.Background(), sub.ID.String())
	require.NoError(t, err)

	sum := 0
	for _, entry := range entries {
		sum += entry.Credits
	}
	require.Equal(t, current.TotalCredits, sum)
}

func TestDeclinePaymentKeepsStateIntact(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	_, err := f.ledger.StageUpgrade(context.Background(), sub.ID.String(), "plan-max", "")
	require.NoError(t, err)

	payload := &gateway.CallbackPayload{
		Status:     gateway.ChargeStatusDeclined,
		ID:         gateway.BuildChargeID(sub.ID.String(), 1774000400),
		OrderID:    gateway.BuildOrderID("Max", domain.SubscribeTypeUpgrade, 1774000400),
		IntentType: string(domain.SubscribeTypeUpgrade),
		Transactions: []gateway.CallbackTransaction{
			{State: "DECLINED", ResponseText: "insufficient funds"},
		},
	}
	require.NoError(t, f.ledger.DeclinePayment(context.Background(), payload))

	// Баланс и подготовленный переход не тронуты: оплату можно повторить
	current, err := f.ledger.GetSubscription(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, 100, current.TotalCredits)
	require.Equal(t, "Pro", current.PlanName)
	require.NotNil(t, current.PendingUpgrade)

	// Отклоненная транзакция записана
	txn, err := f.txns.GetByID(context.Background(), payload.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TransactionStateDeclined, txn.State)
}

func TestStageRejectedWhilePendingOutstanding(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	_, err := f.ledger.StageUpgrade(context.Background(), sub.ID.String(), "plan-max", "")
	require.NoError(t, err)

	_, err = f.ledger.StageRenewal(context.Background(), sub.ID.String())
	require.ErrorIs(t, err, domain.ErrPendingUpgradeExists)

	_, err = f.ledger.StageCreditPurchase(context.Background(), sub.ID.String(), CreditPack{Credits: 10, Price: 2.99, Currency: "EUR"})
	require.ErrorIs(t, err, domain.ErrPendingUpgradeExists)
}

func TestAbandonPendingFreesSubscription(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	_, err := f.ledger.StageUpgrade(context.Background(), sub.ID.String(), "plan-max", "")
	require.NoError(t, err)

	require.NoError(t, f.ledger.AbandonPending(context.Background(), sub.ID.String()))

	// После сброса можно готовить новый переход
	_, err = f.ledger.StageRenewal(context.Background(), sub.ID.String())
	require.NoError(t, err)

	// Повторный сброс без перехода - ошибка
	require.NoError(t, f.ledger.AbandonPending(context.Background(), sub.ID.String()))
	require.ErrorIs(t, f.ledger.AbandonPending(context.Background(), sub.ID.String()), domain.ErrNoPendingUpgrade)
}

func TestStageUpgradeRequiresActiveSubscription(t *testing.T) {
	f := newLedgerFixture(t)

	_, staged, err := f.ledger.StageNewSubscription(context.Background(), "user-1", "plan-pro", domain.BillingCycleMonth, "")
	require.NoError(t, err)

	// Подписка еще notActive
	_, err = f.ledger.StageUpgrade(context.Background(), staged.ID.String(), "plan-max", "")
	require.ErrorIs(t, err, domain.ErrSubscriptionNotActive)
}

func TestStageRenewalRejectsExpired(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	// Сдвигаем часы за срок подписки
	f.setNow(t, f.now.Add(31*24*time.Hour))

	_, err := f.ledger.StageRenewal(context.Background(), sub.ID.String())
	require.ErrorIs(t, err, domain.ErrSubscriptionExpired)
}

func TestApplyWithoutPendingFails(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	payload := chargedCallback(sub.ID.String(), domain.SubscribeTypeRenew, 19.99)
	payload.ID = gateway.BuildChargeID(sub.ID.String(), 1774000500)

	_, err := f.ledger.ApplyConfirmedPayment(context.Background(), payload)
	require.ErrorIs(t, err, domain.ErrNoPendingUpgrade)
}

func TestApplyUnknownSubscription(t *testing.T) {
	f := newLedgerFixture(t)

	payload := chargedCallback("550e8400-e29b-41d4-a716-446655440000", domain.SubscribeTypeNew, 19.99)
	_, err := f.ledger.ApplyConfirmedPayment(context.Background(), payload)
	require.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestCancelSubscription(t *testing.T) {
	f := newLedgerFixture(t)
	sub := f.activateSubscription(t)

	require.NoError(t, f.ledger.Cancel(context.Background(), sub.ID.String()))

	current, err := f.ledger.GetSubscription(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.SubscriptionStatusCancelled, current.Status)
	require.True(t, current.IsCanceled)
	require.NotNil(t, current.DateStopped)
	// Остаток кредитов сохраняется и после отмены
	require.Equal(t, 100, current.TotalCredits)

	entries, err := f.audit.ListBySubscription(context.Background(), sub.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.LogTypeCancel, entries[len(entries)-1].Type)
}

func TestAutoExpire(t *testing.T) {
	f := newLedgerFixture(t)

	var active []*domain.Subscription
	for i := 0; i < 3; i++ {
		userID := fmt.Sprintf("user-exp-%d", i)
		f.users.Seed(domain.User{ID: userID})
		_, staged, err := f.ledger.StageNewSubscription(context.Background(), userID, "plan-basic", domain.BillingCycleMonth, "")
		require.NoError(t, err)
		payload := chargedCallback(staged.ID.String(), domain.SubscribeTypeNew, 9.99)
		result, err := f.ledger.ApplyConfirmedPayment(context.Background(), payload)
		require.NoError(t, err)
		active = append(active, result.Subscription)
	}

	// Срок месячных подписок прошел
	f.setNow(t, f.now.Add(31*24*time.Hour))

	count, err := f.ledger.AutoExpire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, count)

	for _, sub := range active {
		current, err := f.ledger.GetSubscription(context.Background(), sub.ID.String())
		require.NoError(t, err)
		require.Equal(t, domain.SubscriptionStatusCancelled, current.Status)
		require.True(t, current.IsCanceled)
	}

	// Повторный запуск ничего не находит
	count, err = f.ledger.AutoExpire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func (f *ledgerFixture) setNow(t *testing.T, now time.Time) {
	t.Helper()
	f.now = now
	f.ledger.(*subscriptionLedger).now = func() time.Time { return now }
}
