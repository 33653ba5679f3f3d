package service

import (
	"context"
	"sync"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

// UserDirectory внешний каталог пользователей платформы.
// Управление аккаунтами вне зоны ответственности этого сервиса.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	LinkSubscription(ctx context.Context, userID, subscriptionID string) error
}

// NotificationService внешний сервис уведомлений пользователей.
// Форматирование писем и каналы доставки — не наша забота.
type NotificationService interface {
	NotifyPaymentApplied(ctx context.Context, userID, subscriptionID string, credits int) error
	NotifyPaymentDeclined(ctx context.Context, userID, subscriptionID, reason string) error
	NotifySubscriptionCancelled(ctx context.Context, userID, subscriptionID string) error
}

// AuditEventSink внешний приемник событий биллинга.
type AuditEventSink interface {
	Publish(ctx context.Context, event domain.BillingEvent) error
}

// InMemoryUserDirectory каталог пользователей в памяти (тесты, локальный запуск)
type InMemoryUserDirectory struct {
	users map[string]domain.User
	mutex sync.RWMutex
}

// NewInMemoryUserDirectory создает новый каталог пользователей в памяти
func NewInMemoryUserDirectory() *InMemoryUserDirectory {
	return &InMemoryUserDirectory{
		users: make(map[string]domain.User),
	}
}

// Seed наполняет каталог пользователями
func (d *InMemoryUserDirectory) Seed(users ...domain.User) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, user := range users {
		d.users[user.ID] = user
	}
}

// GetUser возвращает пользователя по ID
func (d *InMemoryUserDirectory) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	return &user, nil
}

// LinkSubscription привязывает подписку к пользователю
func (d *InMemoryUserDirectory) LinkSubscription(ctx context.Context, userID, subscriptionID string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	user, ok := d.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}

	user.SubscriptionID = subscriptionID
	d.users[userID] = user

	return nil
}

// LogNotificationService реализация NotificationService, которая только логирует.
// Используется, пока внешний сервис уведомлений не подключен.
type LogNotificationService struct {
	log *logger.Logger
}

// NewLogNotificationService создает новый логирующий сервис уведомлений
func NewLogNotificationService(log *logger.Logger) *LogNotificationService {
	return &LogNotificationService{log: log}
}

// NotifyPaymentApplied уведомляет пользователя об успешной оплате
func (s *LogNotificationService) NotifyPaymentApplied(ctx context.Context, userID, subscriptionID string, credits int) error {
	s.log.Infow("Notification: payment applied", "userID", userID, "subscriptionID", subscriptionID, "credits", credits)
	return nil
}

// NotifyPaymentDeclined уведомляет пользователя об отклоненной оплате
func (s *LogNotificationService) NotifyPaymentDeclined(ctx context.Context, userID, subscriptionID, reason string) error {
	s.log.Infow("Notification: payment declined", "userID", userID, "subscriptionID", subscriptionID, "reason", reason)
	return nil
}

// NotifySubscriptionCancelled уведомляет пользователя об отмене подписки
func (s *LogNotificationService) NotifySubscriptionCancelled(ctx context.Context, userID, subscriptionID string) error {
	s.log.Infow("Notification: subscription cancelled", "userID", userID, "subscriptionID", subscriptionID)
	return nil
}

// InMemoryEventSink приемник событий в памяти (тесты)
type InMemoryEventSink struct {
	events []domain.BillingEvent
	mutex  sync.Mutex
}

// NewInMemoryEventSink создает новый приемник событий в памяти
func NewInMemoryEventSink() *InMemoryEventSink {
	return &InMemoryEventSink{}
}

// Publish сохраняет событие
func (s *InMemoryEventSink) Publish(ctx context.Context, event domain.BillingEvent) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.events = append(s.events, event)
	return nil
}

// Events возвращает копию накопленных событий
func (s *InMemoryEventSink) Events() []domain.BillingEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]domain.BillingEvent(nil), s.events...)
}
