package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionLogType тип записи журнала подписки
type SubscriptionLogType string

const (
	LogTypeInitialPurchase     SubscriptionLogType = "Initial Purchase"
	LogTypeRenew               SubscriptionLogType = "Renew"
	LogTypeCancel              SubscriptionLogType = "Cancel"
	LogTypeUpgrade             SubscriptionLogType = "Upgrade"
	LogTypePurchaseCredits     SubscriptionLogType = "Purchase Credits"
	LogTypeAddPaymentMethod    SubscriptionLogType = "Add Payment Method"
	LogTypeChangePaymentMethod SubscriptionLogType = "Change Payment Method"
)

// SubscriptionLog запись аудиторского журнала подписки.
// Журнал append-only: записи никогда не изменяются и не удаляются.
// Credits — примененная дельта, TotalCredits — баланс после применения.
type SubscriptionLog struct {
	ID                     uuid.UUID           `json:"id" db:"id"`
	UserID                 string              `json:"user_id" db:"user_id"`
	SubscriptionID         string              `json:"subscription_id" db:"subscription_id"`
	SubscriptionDate       time.Time           `json:"subscription_date" db:"subscription_date"`
	Credits                int                 `json:"credits" db:"credits"`
	TotalCredits           int                 `json:"total_credits" db:"total_credits"`
	SubscriptionExpireDate time.Time           `json:"subscription_expire_date" db:"subscription_expire_date"`
	Type                   SubscriptionLogType `json:"type" db:"log_type"`
	TransactionID          string              `json:"transaction_id,omitempty" db:"transaction_id"`
	Notes                  string              `json:"notes,omitempty" db:"notes"`
	CreatedAt              time.Time           `json:"created_at" db:"created_at"`
}
