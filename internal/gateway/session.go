package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/clubnet/billing-service/internal/config"
	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

const (
	paywallMode          = "DEEP_LINK"
	paywallPaymentMethod = "CREDIT_CARD"
)

// SessionIntent платежное намерение, для которого строится paywall-сессия.
// Снимок плана (имя/цена/кредиты) берется из подготовленного перехода,
// а не из каталога.
type SessionIntent struct {
	SubscriptionID string
	UserID         string
	PlanName       string
	Price          float64
	Currency       string
	Credits        int
	BillingCycle   domain.BillingCycle
	SubscribeType  domain.SubscribeType
	Locale         string
	CustomerEmail  string
}

// PaywallPayload тело, которое клиент отправит на hosted paywall шлюза.
// Поля и их порядок — проводной контракт.
type PaywallPayload struct {
	MerchantAccount string  `json:"merchantAccount"`
	Timestamp       int64   `json:"timestamp"`
	CustomerID      string  `json:"customerId"`
	CustomerLocale  string  `json:"customerLocale"`
	ChargeID        string  `json:"chargeId"`
	OrderID         string  `json:"orderId"`
	IntentType      string  `json:"intentType"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	Mode            string  `json:"mode"`
	PaymentMethod   string  `json:"paymentMethod"`
	SuccessURL      string  `json:"successUrl"`
	FailureURL      string  `json:"failureUrl"`
	CancelURL       string  `json:"cancelUrl"`
}

// PaymentSession подписанный, готовый к редиректу платежный payload.
// Сессия возвращается неотправленной: редирект выполняет клиент.
type PaymentSession struct {
	RedirectURL string         `json:"redirect_url"`
	Payload     PaywallPayload `json:"payload"`
	RawPayload  string         `json:"raw_payload"`
	Signature   string         `json:"signature"`
}

// SessionBuilder собирает подписанные paywall-сессии для платежных намерений.
type SessionBuilder struct {
	cfg   config.GatewayConfig
	codec *SignatureCodec
	log   *logger.Logger
	now   func() time.Time
}

// NewSessionBuilder создает новый построитель платежных сессий
func NewSessionBuilder(cfg config.GatewayConfig, codec *SignatureCodec, log *logger.Logger) *SessionBuilder {
	return &SessionBuilder{
		cfg:   cfg,
		codec: codec,
		log:   log,
		now:   time.Now,
	}
}

// redirectsFor возвращает набор URL-ов возврата для типа намерения.
// Покупка кредитов использует отдельный набор URL-ов.
func (b *SessionBuilder) redirectsFor(t domain.SubscribeType) config.RedirectURLs {
	if t == domain.SubscribeTypeCredits {
		return b.cfg.CreditRedirects
	}
	return b.cfg.PlanRedirects
}

// BuildSession строит детерминированный подписанный payload для намерения.
func (b *SessionBuilder) BuildSession(intent SessionIntent) (*PaymentSession, error) {
	if !intent.SubscribeType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSubscribeType, intent.SubscribeType)
	}

	ts := b.now().Unix()
	redirects := b.redirectsFor(intent.SubscribeType)

	payload := PaywallPayload{
		MerchantAccount: b.cfg.MerchantAccount,
		Timestamp:       ts,
		CustomerID:      intent.UserID,
		CustomerLocale:  intent.Locale,
		ChargeID:        BuildChargeID(intent.SubscriptionID, ts),
		OrderID:         BuildOrderID(intent.PlanName, intent.SubscribeType, ts),
		IntentType:      string(intent.SubscribeType),
		Price:           intent.Price,
		Currency:        intent.Currency,
		Mode:            paywallMode,
		PaymentMethod:   paywallPaymentMethod,
		SuccessURL:      redirects.Success,
		FailureURL:      redirects.Failure,
		CancelURL:       redirects.Cancel,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal paywall payload: %w", err)
	}

	session := &PaymentSession{
		RedirectURL: b.cfg.PaywallURL,
		Payload:     payload,
		RawPayload:  string(raw),
		Signature:   b.codec.SignPaywallPayload(string(raw)),
	}

	b.log.Debugw("Payment session built",
		"subscriptionID", intent.SubscriptionID,
		"type", intent.SubscribeType,
		"orderID", payload.OrderID)

	return session, nil
}
