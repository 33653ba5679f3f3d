package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionState состояние транзакции со стороны шлюза
type TransactionState string

const (
	TransactionStateCharged  TransactionState = "CHARGED"
	TransactionStateDeclined TransactionState = "DECLINED"
)

// Transaction результат транзакции платежного шлюза.
// Запись неизменяема после создания: на один внешний transactionId
// создается ровно одна запись, повторный callback ничего не меняет.
type Transaction struct {
	TransactionID    string           `json:"transaction_id" db:"transaction_id"`
	InternalID       uuid.UUID        `json:"internal_id" db:"internal_id"`
	Type             string           `json:"type" db:"type"`
	Amount           float64          `json:"amount" db:"amount"`
	Currency         string           `json:"currency" db:"currency"`
	Status           string           `json:"status" db:"status"`
	PaymentMethod    string           `json:"payment_method" db:"payment_method"`
	State            TransactionState `json:"state" db:"state"`
	ResponseText     string           `json:"response_text" db:"response_text"`
	UserID           string           `json:"user_id" db:"user_id"`
	SubscriptionID   string           `json:"subscription_id" db:"subscription_id"`
	SubscribeType    SubscribeType    `json:"subscribe_type" db:"subscribe_type"`
	GatewayTimestamp string           `json:"gateway_timestamp" db:"gateway_timestamp"`
	DateCreated      time.Time        `json:"date_created" db:"date_created"`
}
