package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/metrics"
	"github.com/clubnet/billing-service/pkg/logger"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	cfg := testGatewayConfig()
	cfg.BaseURL = serverURL
	cfg.RequestTimeout = 2 * time.Second

	log := logger.New(logger.ERROR)
	return NewClient(cfg, NewSignatureCodec(cfg, log), metrics.NewNopBillingMetrics(), log)
}

func TestClientSendsSignedHeaders(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.HealthCheck(context.Background()))

	require.Equal(t, "club-merchant", gotHeaders.Get("X-MerchantAccount"))
	require.Equal(t, "billing-service", gotHeaders.Get("X-CallerName"))
	require.NotEmpty(t, gotHeaders.Get("X-HMAC-Timestamp"))
	require.NotEmpty(t, gotHeaders.Get("X-HMAC-Signature"))
}

func TestClientGetTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/v3/charges/ch-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ch-1","status":"CHARGED","amount":19.99,"currency":"EUR"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	charge, err := client.GetTransaction(context.Background(), "ch-1")
	require.NoError(t, err)
	require.Equal(t, "ch-1", charge.ID)
	require.Equal(t, "CHARGED", charge.Status)
	require.InDelta(t, 19.99, charge.Amount, 0.001)
}

func TestClientRefundSendsCommand(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = string(buf)
		_, _ = w.Write([]byte(`{"id":"ch-1","status":"REFUNDED"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	amount := 5.0
	charge, err := client.RefundTransaction(context.Background(), "ch-1", &amount)
	require.NoError(t, err)
	require.Equal(t, "REFUNDED", charge.Status)
	require.JSONEq(t, `{"command":"REFUND","amount":5}`, gotBody)
}

func TestClientNon2xxReturnsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"charge not found"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.GetTransaction(context.Background(), "missing")
	require.Error(t, err)

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	require.Equal(t, "charge not found", gwErr.Message)
	require.False(t, gwErr.Retryable)
}

func TestClient5xxIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.HealthCheck(context.Background())

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.True(t, gwErr.Retryable)
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestClientTransportFailure(t *testing.T) {
	// Сервер закрыт до вызова: транспортная ошибка, исход неизвестен
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server.URL)
	err := client.HealthCheck(context.Background())

	var gwErr *domain.GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.True(t, gwErr.Retryable)
}
