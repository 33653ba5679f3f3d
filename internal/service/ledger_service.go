package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/gateway"
	"github.com/clubnet/billing-service/internal/metrics"
	"github.com/clubnet/billing-service/internal/repository"
	"github.com/clubnet/billing-service/pkg/logger"
)

// CreditPack пакет кредитов для прямой покупки
type CreditPack struct {
	Credits  int
	Price    float64
	Currency string
}

// ApplyResult результат применения подтвержденного платежа
type ApplyResult struct {
	Applied      bool
	Subscription *domain.Subscription
}

// SubscriptionLedger владеет машиной состояний подписки: подготовка перехода
// до движения денег, применение его ровно один раз по подтверждающему
// callback-у, ведение кредитного баланса и аудиторского журнала.
//
// Состояния: notActive -> active -> {paused, cancelled}; active многократно
// входит в себя через циклы upgrade/renew/покупки кредитов.
type SubscriptionLedger interface {
	StageNewSubscription(ctx context.Context, userID, planID string, cycle domain.BillingCycle, locale string) (*gateway.PaymentSession, *domain.Subscription, error)
	StageUpgrade(ctx context.Context, subscriptionID, newPlanID string, newCycle domain.BillingCycle) (*gateway.PaymentSession, error)
	StageRenewal(ctx context.Context, subscriptionID string) (*gateway.PaymentSession, error)
	StageCreditPurchase(ctx context.Context, subscriptionID string, pack CreditPack) (*gateway.PaymentSession, error)
	AbandonPending(ctx context.Context, subscriptionID string) error

	ApplyConfirmedPayment(ctx context.Context, payload *gateway.CallbackPayload) (*ApplyResult, error)
	DeclinePayment(ctx context.Context, payload *gateway.CallbackPayload) error

	Cancel(ctx context.Context, subscriptionID string) error
	AutoExpire(ctx context.Context) (int, error)

	GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	GetByUser(ctx context.Context, userID string) ([]domain.Subscription, error)
}

type subscriptionLedger struct {
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	recorder TransactionRecorder
	audit    AuditLogWriter
	sessions *gateway.SessionBuilder
	users    UserDirectory
	notifier NotificationService
	events   AuditEventSink
	metrics  metrics.BillingMetrics
	log      *logger.Logger
	now      func() time.Time
}

// NewSubscriptionLedger создает новый сервис подписок
func NewSubscriptionLedger(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	recorder TransactionRecorder,
	audit AuditLogWriter,
	sessions *gateway.SessionBuilder,
	users UserDirectory,
	notifier NotificationService,
	events AuditEventSink,
	billingMetrics metrics.BillingMetrics,
	log *logger.Logger,
) SubscriptionLedger {
	return &subscriptionLedger{
		subs:     subs,
		plans:    plans,
		recorder: recorder,
		audit:    audit,
		sessions: sessions,
		users:    users,
		notifier: notifier,
		events:   events,
		metrics:  billingMetrics,
		log:      log,
		now:      time.Now,
	}
}

// getPlan возвращает план каталога, транслируя ошибку репозитория в доменную.
func (s *subscriptionLedger) getPlan(ctx context.Context, planID string) (*domain.SubscriptionPlan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

// getSubscription возвращает подписку, транслируя ошибку репозитория в доменную.
func (s *subscriptionLedger) getSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// StageNewSubscription создает подписку в статусе notActive со снимком плана
// в PendingUpgrade и возвращает подписанную paywall-сессию.
// Кредиты не двигаются до подтверждения оплаты.
func (s *subscriptionLedger) StageNewSubscription(ctx context.Context, userID, planID string, cycle domain.BillingCycle, locale string) (*gateway.PaymentSession, *domain.Subscription, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	plan, err := s.getPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}

	if cycle == "" {
		cycle = domain.BillingCycleMonth
	}

	now := s.now()
	price := plan.PriceFor(cycle)

	sub := &domain.Subscription{
		ID:           uuid.New(),
		UserID:       userID,
		BillingCycle: cycle,
		Status:       domain.SubscriptionStatusNotActive,
		PendingUpgrade: &domain.PendingUpgrade{
			TargetPlanID:      plan.ID,
			NewCredits:        plan.CreditsGranted,
			NewPlanName:       plan.Name,
			NewBillingCycle:   cycle,
			NewExpirationDate: now.Add(plan.PeriodFor(cycle)),
			Price:             price,
			Currency:          plan.Currency,
			SubscribeType:     domain.SubscribeTypeNew,
			StagedAt:          now,
		},
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	session, err := s.sessions.BuildSession(gateway.SessionIntent{
		SubscriptionID: sub.ID.String(),
		UserID:         userID,
		PlanName:       plan.Name,
		Price:          price,
		Currency:       plan.Currency,
		Credits:        plan.CreditsGranted,
		BillingCycle:   cycle,
		SubscribeType:  domain.SubscribeTypeNew,
		Locale:         user.Locale,
		CustomerEmail:  user.Email,
	})
	if err != nil {
		return nil, nil, err
	}

	s.metrics.IncSessionStaged(string(domain.SubscribeTypeNew))
	s.log.Infow("New subscription staged",
		"subscriptionID", sub.ID, "userID", userID, "planID", planID, "cycle", cycle)

	return session, sub, nil
}

// stageOnExisting общая часть подготовки перехода на существующей подписке.
// Пока есть незавершенный переход, новый не принимается: два конкурентных
// перехода молча перезаписали бы друг друга.
func (s *subscriptionLedger) stageOnExisting(ctx context.Context, sub *domain.Subscription, pending *domain.PendingUpgrade, intent gateway.SessionIntent) (*gateway.PaymentSession, error) {
	if sub.PendingUpgrade != nil {
		return nil, domain.ErrPendingUpgradeExists
	}

	sub.PendingUpgrade = pending
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to stage transition: %w", err)
	}

	session, err := s.sessions.BuildSession(intent)
	if err != nil {
		return nil, err
	}

	s.metrics.IncSessionStaged(string(pending.SubscribeType))
	s.log.Infow("Transition staged",
		"subscriptionID", sub.ID, "type", pending.SubscribeType, "credits", pending.NewCredits)

	return session, nil
}

// StageUpgrade готовит смену плана на активной неистекшей подписке.
func (s *subscriptionLedger) StageUpgrade(ctx context.Context, subscriptionID, newPlanID string, newCycle domain.BillingCycle) (*gateway.PaymentSession, error) {
	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.Status != domain.SubscriptionStatusActive {
		return nil, domain.ErrSubscriptionNotActive
	}
	now := s.now()
	if sub.IsExpired(now) {
		return nil, domain.ErrSubscriptionExpired
	}

	plan, err := s.getPlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	if newCycle == "" {
		newCycle = sub.BillingCycle
	}
	price := plan.PriceFor(newCycle)

	pending := &domain.PendingUpgrade{
		TargetPlanID:      plan.ID,
		NewCredits:        plan.CreditsGranted,
		PreviousPlanName:  sub.PlanName,
		NewPlanName:       plan.Name,
		NewBillingCycle:   newCycle,
		NewExpirationDate: now.Add(plan.PeriodFor(newCycle)),
		Price:             price,
		Currency:          plan.Currency,
		SubscribeType:     domain.SubscribeTypeUpgrade,
		StagedAt:          now,
	}

	return s.stageOnExisting(ctx, sub, pending, gateway.SessionIntent{
		SubscriptionID: subscriptionID,
		UserID:         sub.UserID,
		PlanName:       plan.Name,
		Price:          price,
		Currency:       plan.Currency,
		Credits:        plan.CreditsGranted,
		BillingCycle:   newCycle,
		SubscribeType:  domain.SubscribeTypeUpgrade,
	})
}

// StageRenewal готовит продление активной подписки на текущем плане.
// Цена и кредиты снимаются из каталога в момент подготовки.
func (s *subscriptionLedger) StageRenewal(ctx context.Context, subscriptionID string) (*gateway.PaymentSession, error) {
	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.Status != domain.SubscriptionStatusActive {
		return nil, domain.ErrSubscriptionNotActive
	}
	now := s.now()
	if sub.IsExpired(now) {
		return nil, domain.ErrSubscriptionExpired
	}

	plan, err := s.getPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	price := plan.PriceFor(sub.BillingCycle)

	pending := &domain.PendingUpgrade{
		TargetPlanID:      plan.ID,
		NewCredits:        plan.CreditsGranted,
		PreviousPlanName:  sub.PlanName,
		NewPlanName:       plan.Name,
		NewBillingCycle:   sub.BillingCycle,
		NewExpirationDate: sub.DateExpired.Add(plan.PeriodFor(sub.BillingCycle)),
		Price:             price,
		Currency:          plan.Currency,
		SubscribeType:     domain.SubscribeTypeRenew,
		StagedAt:          now,
	}

	return s.stageOnExisting(ctx, sub, pending, gateway.SessionIntent{
		SubscriptionID: subscriptionID,
		UserID:         sub.UserID,
		PlanName:       plan.Name,
		Price:          price,
		Currency:       plan.Currency,
		Credits:        plan.CreditsGranted,
		BillingCycle:   sub.BillingCycle,
		SubscribeType:  domain.SubscribeTypeRenew,
	})
}

// StageCreditPurchase готовит покупку пакета кредитов.
// План и период не меняются, двигается только баланс.
func (s *subscriptionLedger) StageCreditPurchase(ctx context.Context, subscriptionID string, pack CreditPack) (*gateway.PaymentSession, error) {
	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if pack.Credits <= 0 {
		return nil, fmt.Errorf("%w: credit pack must be positive", domain.ErrInvalidInput)
	}

	now := s.now()
	pending := &domain.PendingUpgrade{
		TargetPlanID:      sub.PlanID,
		NewCredits:        pack.Credits,
		PreviousPlanName:  sub.PlanName,
		NewPlanName:       sub.PlanName,
		NewBillingCycle:   sub.BillingCycle,
		NewExpirationDate: sub.DateExpired.Add(sub.BillingCycle.PeriodDuration()),
		Price:             pack.Price,
		Currency:          pack.Currency,
		SubscribeType:     domain.SubscribeTypeCredits,
		StagedAt:          now,
	}

	return s.stageOnExisting(ctx, sub, pending, gateway.SessionIntent{
		SubscriptionID: subscriptionID,
		UserID:         sub.UserID,
		PlanName:       sub.PlanName,
		Price:          pack.Price,
		Currency:       pack.Currency,
		Credits:        pack.Credits,
		BillingCycle:   sub.BillingCycle,
		SubscribeType:  domain.SubscribeTypeCredits,
	})
}

// AbandonPending сбрасывает незавершенный переход брошенной оплаты,
// освобождая подписку для новой подготовки.
func (s *subscriptionLedger) AbandonPending(ctx context.Context, subscriptionID string) error {
	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	if sub.PendingUpgrade == nil {
		return domain.ErrNoPendingUpgrade
	}

	sub.PendingUpgrade = nil
	if err := s.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to abandon pending transition: %w", err)
	}

	s.log.Infow("Pending transition abandoned", "subscriptionID", subscriptionID)
	return nil
}

// transactionFromCallback собирает запись транзакции из тела callback-а.
// Внешний transactionId — это chargeId callback-а, глобально уникальный.
func transactionFromCallback(payload *gateway.CallbackPayload, sub *domain.Subscription, subscribeType domain.SubscribeType, state domain.TransactionState) *domain.Transaction {
	txn := &domain.Transaction{
		TransactionID:  payload.ID,
		InternalID:     uuid.New(),
		Status:         payload.Status,
		State:          state,
		UserID:         sub.UserID,
		SubscriptionID: sub.ID.String(),
		SubscribeType:  subscribeType,
	}

	if ct := payload.FirstTransaction(); ct != nil {
		txn.Type = ct.Type
		txn.Amount = ct.Amount
		txn.Currency = ct.Currency
		txn.ResponseText = ct.ResponseText
		txn.GatewayTimestamp = ct.Timestamp
		txn.PaymentMethod = "CREDIT_CARD"
	}

	return txn
}

// ApplyConfirmedPayment применяет подготовленный переход по подтверждающему
// callback-у. Запись транзакции — граница идемпотентности: если внешний
// transactionId уже записан, мутация баланса и журнала пропускается, а
// callback все равно подтверждается успехом — иначе повтор шлюза
// удвоил бы кредиты пользователя.
func (s *subscriptionLedger) ApplyConfirmedPayment(ctx context.Context, payload *gateway.CallbackPayload) (*ApplyResult, error) {
	subscriptionID, err := payload.SubscriptionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	subscribeType, err := payload.SubscribeType()
	if err != nil {
		return nil, err
	}

	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.PendingUpgrade == nil {
		// Переход уже применен и очищен? Повторная доставка того же
		// transactionId подтверждается как no-op, а не как ошибка:
		// иначе шлюз будет бесконечно ретраить уже обработанный callback.
		_, getErr := s.recorder.GetTransaction(ctx, payload.ID)
		switch {
		case getErr == nil:
			s.metrics.IncDuplicateCallback()
			return &ApplyResult{Applied: false, Subscription: sub}, nil
		case errors.Is(getErr, domain.ErrTransactionNotFound):
			return nil, domain.ErrNoPendingUpgrade
		default:
			return nil, getErr
		}
	}
	pending := sub.PendingUpgrade

	txn := transactionFromCallback(payload, sub, subscribeType, domain.TransactionStateCharged)
	result, err := s.recorder.RecordIfNew(ctx, txn)
	if err != nil {
		return nil, err
	}
	if !result.Created {
		// Повторная доставка: подтверждаем, ничего не меняя
		s.metrics.IncDuplicateCallback()
		return &ApplyResult{Applied: false, Subscription: sub}, nil
	}

	logType, eventType := s.applyPending(sub, pending, subscribeType)
	sub.PendingUpgrade = nil
	sub.Status = domain.SubscriptionStatusActive
	sub.Transactions = append(sub.Transactions, txn.TransactionID)

	// Одно атомарное обновление строки подписки: баланс, статус и очистка
	// перехода становятся видимы одновременно
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to apply transition: %w", err)
	}

	if _, err := s.audit.Append(ctx, subscriptionID, LogDelta{
		Credits:       pending.NewCredits,
		Type:          logType,
		TransactionID: txn.TransactionID,
		Notes:         fmt.Sprintf("%s -> %s", pending.PreviousPlanName, pending.NewPlanName),
	}); err != nil {
		return nil, err
	}

	if subscribeType == domain.SubscribeTypeNew {
		if err := s.users.LinkSubscription(ctx, sub.UserID, subscriptionID); err != nil {
			s.log.Warnw("Failed to link subscription to user", "error", err, "userID", sub.UserID)
		}
	}

	s.metrics.IncCallbackProcessed("applied")
	s.metrics.AddCreditsGranted(pending.NewCredits)

	s.publishEvent(ctx, domain.BillingEvent{
		Type:           eventType,
		SubscriptionID: subscriptionID,
		UserID:         sub.UserID,
		TransactionID:  txn.TransactionID,
		Credits:        pending.NewCredits,
		TotalCredits:   sub.TotalCredits,
		OccurredAt:     s.now(),
	})

	if err := s.notifier.NotifyPaymentApplied(ctx, sub.UserID, subscriptionID, pending.NewCredits); err != nil {
		s.log.Warnw("Failed to notify user about applied payment", "error", err, "userID", sub.UserID)
	}

	s.log.Infow("Confirmed payment applied",
		"subscriptionID", subscriptionID,
		"type", subscribeType,
		"credits", pending.NewCredits,
		"totalCredits", sub.TotalCredits,
		"transactionID", txn.TransactionID)

	return &ApplyResult{Applied: true, Subscription: sub}, nil
}

// applyPending мутирует подписку согласно типу намерения.
// Снимок в pending — единственный источник цифр, каталог не перечитывается.
func (s *subscriptionLedger) applyPending(sub *domain.Subscription, pending *domain.PendingUpgrade, t domain.SubscribeType) (domain.SubscriptionLogType, domain.BillingEventType) {
	switch t {
	case domain.SubscribeTypeNew:
		sub.PlanID = pending.TargetPlanID
		sub.PlanName = pending.NewPlanName
		sub.BillingCycle = pending.NewBillingCycle
		sub.TotalCredits += pending.NewCredits
		sub.DateExpired = pending.NewExpirationDate
		return domain.LogTypeInitialPurchase, domain.EventSubscriptionActivated

	case domain.SubscribeTypeUpgrade:
		sub.PlanID = pending.TargetPlanID
		sub.PlanName = pending.NewPlanName
		sub.BillingCycle = pending.NewBillingCycle
		sub.TotalCredits += pending.NewCredits
		sub.DateExpired = pending.NewExpirationDate
		return domain.LogTypeUpgrade, domain.EventSubscriptionUpgraded

	case domain.SubscribeTypeRenew:
		// План и период сохраняются, сбрасывается срок
		sub.TotalCredits += pending.NewCredits
		sub.DateExpired = pending.NewExpirationDate
		return domain.LogTypeRenew, domain.EventSubscriptionRenewed

	default: // achat-credits
		// Только баланс, срок сдвигается на один платежный период
		sub.TotalCredits += pending.NewCredits
		sub.DateExpired = pending.NewExpirationDate
		return domain.LogTypePurchaseCredits, domain.EventCreditsPurchased
	}
}

// DeclinePayment фиксирует отклоненный платеж. Кредиты и подготовленный
// переход не трогаются: пользователь может повторить оплату.
func (s *subscriptionLedger) DeclinePayment(ctx context.Context, payload *gateway.CallbackPayload) error {
	subscriptionID, err := payload.SubscriptionID()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	subscribeType, err := payload.SubscribeType()
	if err != nil {
		return err
	}

	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	txn := transactionFromCallback(payload, sub, subscribeType, domain.TransactionStateDeclined)
	result, err := s.recorder.RecordIfNew(ctx, txn)
	if err != nil {
		return err
	}
	if !result.Created {
		s.metrics.IncDuplicateCallback()
		return nil
	}

	s.metrics.IncCallbackProcessed("declined")

	reason := ""
	if ct := payload.FirstTransaction(); ct != nil {
		reason = ct.ResponseText
	}

	s.publishEvent(ctx, domain.BillingEvent{
		Type:           domain.EventPaymentDeclined,
		SubscriptionID: subscriptionID,
		UserID:         sub.UserID,
		TransactionID:  txn.TransactionID,
		TotalCredits:   sub.TotalCredits,
		OccurredAt:     s.now(),
	})

	if err := s.notifier.NotifyPaymentDeclined(ctx, sub.UserID, subscriptionID, reason); err != nil {
		s.log.Warnw("Failed to notify user about declined payment", "error", err, "userID", sub.UserID)
	}

	s.log.Infow("Declined payment recorded",
		"subscriptionID", subscriptionID, "transactionID", txn.TransactionID, "reason", reason)

	return nil
}

// Cancel отменяет подписку и пишет запись журнала.
func (s *subscriptionLedger) Cancel(ctx context.Context, subscriptionID string) error {
	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	now := s.now()
	sub.Status = domain.SubscriptionStatusCancelled
	sub.IsCanceled = true
	sub.DateStopped = &now

	if err := s.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	if _, err := s.audit.Append(ctx, subscriptionID, LogDelta{
		Type:  domain.LogTypeCancel,
		Notes: "cancelled by user",
	}); err != nil {
		return err
	}

	s.publishEvent(ctx, domain.BillingEvent{
		Type:           domain.EventSubscriptionCancelled,
		SubscriptionID: subscriptionID,
		UserID:         sub.UserID,
		TotalCredits:   sub.TotalCredits,
		OccurredAt:     now,
	})

	if err := s.notifier.NotifySubscriptionCancelled(ctx, sub.UserID, subscriptionID); err != nil {
		s.log.Warnw("Failed to notify user about cancellation", "error", err, "userID", sub.UserID)
	}

	s.log.Infow("Subscription cancelled", "subscriptionID", subscriptionID)
	return nil
}

// AutoExpire отменяет активные подписки с истекшим сроком.
// Действует только на active с прошедшим dateExpired, поэтому повторный
// запуск безопасен; вызывается внешним планировщиком, не внутренним таймером.
func (s *subscriptionLedger) AutoExpire(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.subs.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		sub := &expired[i]
		sub.Status = domain.SubscriptionStatusCancelled
		sub.IsCanceled = true
		stopped := now
		sub.DateStopped = &stopped

		if err := s.subs.Update(ctx, sub); err != nil {
			s.log.Errorw("Failed to expire subscription", "error", err, "subscriptionID", sub.ID)
			continue
		}

		if _, err := s.audit.Append(ctx, sub.ID.String(), LogDelta{
			Type:  domain.LogTypeCancel,
			Notes: "expired",
		}); err != nil {
			s.log.Errorw("Failed to write expiration log", "error", err, "subscriptionID", sub.ID)
			continue
		}

		s.publishEvent(ctx, domain.BillingEvent{
			Type:           domain.EventSubscriptionExpired,
			SubscriptionID: sub.ID.String(),
			UserID:         sub.UserID,
			TotalCredits:   sub.TotalCredits,
			OccurredAt:     now,
		})

		count++
	}

	if count > 0 {
		s.log.Infow("Expired subscriptions swept", "count", count)
	}

	return count, nil
}

// GetSubscription возвращает подписку по ID.
func (s *subscriptionLedger) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return s.getSubscription(ctx, subscriptionID)
}

// GetByUser возвращает подписки пользователя.
func (s *subscriptionLedger) GetByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.subs.GetByUserID(ctx, userID)
}

// publishEvent публикует событие, не роняя основную операцию при сбое.
func (s *subscriptionLedger) publishEvent(ctx context.Context, event domain.BillingEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warnw("Failed to publish billing event", "error", err, "type", event.Type)
	}
}
