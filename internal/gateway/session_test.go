package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clubnet/billing-service/internal/config"
	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/pkg/logger"
)

func newTestSessionBuilder(t *testing.T) *SessionBuilder {
	t.Helper()

	cfg := testGatewayConfig()
	cfg.PlanRedirects = config.RedirectURLs{
		Success: "https://app.example.com/billing/success",
		Failure: "https://app.example.com/billing/failure",
		Cancel:  "https://app.example.com/billing/cancel",
	}
	cfg.CreditRedirects = config.RedirectURLs{
		Success: "https://app.example.com/credits/success",
		Failure: "https://app.example.com/credits/failure",
		Cancel:  "https://app.example.com/credits/cancel",
	}

	log := logger.New(logger.ERROR)
	builder := NewSessionBuilder(cfg, NewSignatureCodec(cfg, log), log)
	builder.now = func() time.Time { return time.Unix(1700000000, 0) }
	return builder
}

func TestBuildSessionNewSubscription(t *testing.T) {
	builder := newTestSessionBuilder(t)

	session, err := builder.BuildSession(SessionIntent{
		SubscriptionID: "sub-42",
		UserID:         "user-7",
		PlanName:       "Pro",
		Price:          19.99,
		Currency:       "EUR",
		Credits:        100,
		BillingCycle:   domain.BillingCycleMonth,
		SubscribeType:  domain.SubscribeTypeNew,
		Locale:         "fr",
	})
	require.NoError(t, err)

	require.Equal(t, "https://pay.example.com/paywall", session.RedirectURL)
	require.Equal(t, "sub-42_1700000000", session.Payload.ChargeID)
	require.Equal(t, "Pro_plan_new_1700000000", session.Payload.OrderID)
	require.Equal(t, "new", session.Payload.IntentType)
	require.Equal(t, "club-merchant", session.Payload.MerchantAccount)
	require.Equal(t, "DEEP_LINK", session.Payload.Mode)
	require.Equal(t, "CREDIT_CARD", session.Payload.PaymentMethod)
	require.Equal(t, "https://app.example.com/billing/success", session.Payload.SuccessURL)

	// RawPayload - ровно те байты, что подписаны
	var decoded PaywallPayload
	require.NoError(t, json.Unmarshal([]byte(session.RawPayload), &decoded))
	require.Equal(t, session.Payload, decoded)
	require.Equal(t, builder.codec.SignPaywallPayload(session.RawPayload), session.Signature)
}

func TestBuildSessionCreditPurchaseUsesCreditRedirects(t *testing.T) {
	builder := newTestSessionBuilder(t)

	session, err := builder.BuildSession(SessionIntent{
		SubscriptionID: "sub-42",
		UserID:         "user-7",
		PlanName:       "Pro",
		Price:          4.99,
		Currency:       "EUR",
		Credits:        20,
		BillingCycle:   domain.BillingCycleMonth,
		SubscribeType:  domain.SubscribeTypeCredits,
	})
	require.NoError(t, err)

	require.Equal(t, "https://app.example.com/credits/success", session.Payload.SuccessURL)
	require.Equal(t, "https://app.example.com/credits/failure", session.Payload.FailureURL)
	require.Equal(t, "https://app.example.com/credits/cancel", session.Payload.CancelURL)
	require.Equal(t, "Pro_plan_achat-credits_1700000000", session.Payload.OrderID)
}

func TestBuildSessionDeterministic(t *testing.T) {
	builder := newTestSessionBuilder(t)

	intent := SessionIntent{
		SubscriptionID: "sub-1",
		UserID:         "user-1",
		PlanName:       "Basic",
		Price:          9.99,
		Currency:       "EUR",
		Credits:        50,
		BillingCycle:   domain.BillingCycleYear,
		SubscribeType:  domain.SubscribeTypeRenew,
	}

	first, err := builder.BuildSession(intent)
	require.NoError(t, err)
	second, err := builder.BuildSession(intent)
	require.NoError(t, err)

	require.Equal(t, first.RawPayload, second.RawPayload)
	require.Equal(t, first.Signature, second.Signature)
}

func TestBuildSessionInvalidType(t *testing.T) {
	builder := newTestSessionBuilder(t)

	_, err := builder.BuildSession(SessionIntent{
		SubscriptionID: "sub-1",
		SubscribeType:  domain.SubscribeType("bogus"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidSubscribeType)
}
