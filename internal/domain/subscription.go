package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusNotActive SubscriptionStatus = "notActive"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// BillingCycle период оплаты подписки
type BillingCycle string

const (
	BillingCycleMonth BillingCycle = "month"
	BillingCycleYear  BillingCycle = "year"
)

// PeriodDuration возвращает длительность одного платежного периода.
func (b BillingCycle) PeriodDuration() time.Duration {
	if b == BillingCycleYear {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// SubscribeType тип платежного намерения, проходит весь путь
// сессия -> paywall -> callback
type SubscribeType string

const (
	SubscribeTypeNew     SubscribeType = "new"
	SubscribeTypeUpgrade SubscribeType = "upgrade"
	SubscribeTypeRenew   SubscribeType = "renew"
	SubscribeTypeCredits SubscribeType = "achat-credits"
)

// Valid проверяет, что тип намерения известен.
func (t SubscribeType) Valid() bool {
	switch t {
	case SubscribeTypeNew, SubscribeTypeUpgrade, SubscribeTypeRenew, SubscribeTypeCredits:
		return true
	}
	return false
}

// PendingUpgrade подготовленный переход подписки: снимок целевого состояния,
// записанный до подтверждения оплаты и применяемый ровно один раз.
// Цена и кредиты фиксируются в момент подготовки и не перечитываются из каталога.
type PendingUpgrade struct {
	TargetPlanID      string        `json:"target_plan_id"`
	NewCredits        int           `json:"new_credits"`
	PreviousPlanName  string        `json:"previous_plan_name"`
	NewPlanName       string        `json:"new_plan_name"`
	NewBillingCycle   BillingCycle  `json:"new_billing_cycle"`
	NewExpirationDate time.Time     `json:"new_expiration_date"`
	Price             float64       `json:"price"`
	Currency          string        `json:"currency"`
	SubscribeType     SubscribeType `json:"subscribe_type"`
	StagedAt          time.Time     `json:"staged_at"`
}

// Subscription представляет собой модель подписки с кредитным балансом.
// Инвариант: TotalCredits равен сумме дельт по всем записям SubscriptionLog
// этой подписки с момента создания.
type Subscription struct {
	ID             uuid.UUID          `json:"id" db:"id"`
	UserID         string             `json:"user_id" db:"user_id"`
	PlanID         string             `json:"plan_id" db:"plan_id"`
	PlanName       string             `json:"plan_name" db:"plan_name"`
	BillingCycle   BillingCycle       `json:"billing_cycle" db:"billing_cycle"`
	TotalCredits   int                `json:"total_credits" db:"total_credits"`
	Status         SubscriptionStatus `json:"status" db:"status"`
	DateExpired    time.Time          `json:"date_expired" db:"date_expired"`
	DateStopped    *time.Time         `json:"date_stopped,omitempty" db:"date_stopped"`
	IsCanceled     bool               `json:"is_canceled" db:"is_canceled"`
	PendingUpgrade *PendingUpgrade    `json:"pending_upgrade,omitempty" db:"-"`
	Transactions   []string           `json:"transactions,omitempty" db:"-"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

// IsExpired сообщает, истекла ли подписка на момент now.
func (s *Subscription) IsExpired(now time.Time) bool {
	return !s.DateExpired.IsZero() && !s.DateExpired.After(now)
}
