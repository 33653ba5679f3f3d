package domain

import "time"

// BillingEventType тип события биллинга
type BillingEventType string

const (
	EventSubscriptionActivated BillingEventType = "subscription.activated"
	EventSubscriptionUpgraded  BillingEventType = "subscription.upgraded"
	EventSubscriptionRenewed   BillingEventType = "subscription.renewed"
	EventCreditsPurchased      BillingEventType = "credits.purchased"
	EventPaymentDeclined       BillingEventType = "payment.declined"
	EventSubscriptionCancelled BillingEventType = "subscription.cancelled"
	EventSubscriptionExpired   BillingEventType = "subscription.expired"
	EventTransactionRefunded   BillingEventType = "transaction.refunded"
)

// BillingEvent событие биллинга для внешних потребителей (AuditEventSink).
// Каждое изменение кредитного баланса порождает ровно одно событие.
type BillingEvent struct {
	Type           BillingEventType `json:"type"`
	SubscriptionID string           `json:"subscription_id"`
	UserID         string           `json:"user_id"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	Credits        int              `json:"credits"`
	TotalCredits   int              `json:"total_credits"`
	OccurredAt     time.Time        `json:"occurred_at"`
}
