package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clubnet/billing-service/internal/config"
	"github.com/clubnet/billing-service/internal/domain"
	"github.com/clubnet/billing-service/internal/metrics"
	"github.com/clubnet/billing-service/pkg/logger"
)

const (
	healthCheckPath = "/api/v3/healthcheck"
	chargesPath     = "/api/v3/charges"

	// Команды над существующей транзакцией
	commandSettle       = "SETTLE"
	commandAuthReversal = "AUTH_REVERSAL"
	commandRefund       = "REFUND"
)

// ChargeResponse ответ шлюза по транзакции
type ChargeResponse struct {
	ID           string  `json:"id"`
	OrderID      string  `json:"orderId"`
	Status       string  `json:"status"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	ResponseText string  `json:"responseText"`
}

// chargeCommand тело POST-команды над транзакцией
type chargeCommand struct {
	Command string   `json:"command"`
	Amount  *float64 `json:"amount,omitempty"`
}

// gatewayErrorBody тело ошибки, возвращаемое шлюзом
type gatewayErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client клиент внешнего платежного API. Каждый запрос несет заголовки
// мерчанта и HMAC-подпись, выданную SignatureCodec. Ретраев нет:
// таймаут означает неизвестный исход, решение о повторе за вызывающим.
type Client struct {
	baseURL    string
	merchant   string
	callerName string
	codec      *SignatureCodec
	httpClient *http.Client
	metrics    metrics.BillingMetrics
	log        *logger.Logger
}

// NewClient создает новый клиент платежного шлюза
func NewClient(cfg config.GatewayConfig, codec *SignatureCodec, m metrics.BillingMetrics, log *logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		merchant:   cfg.MerchantAccount,
		callerName: cfg.CallerName,
		codec:      codec,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		metrics:    m,
		log:        log,
	}
}

// do выполняет подписанный запрос и декодирует JSON-ответ в out.
func (c *Client) do(ctx context.Context, operation, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}

	signature, timestamp, err := c.codec.SignRequest(path, body)
	if err != nil {
		return fmt.Errorf("failed to sign gateway request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-MerchantAccount", c.merchant)
	req.Header.Set("X-CallerName", c.callerName)
	req.Header.Set("X-HMAC-Timestamp", timestamp)
	req.Header.Set("X-HMAC-Signature", signature)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveGatewayCall(operation, time.Since(start).Seconds())
	if err != nil {
		// Исход на стороне шлюза неизвестен: команда могла исполниться
		c.log.Errorw("Gateway call failed", "operation", operation, "path", path, "error", err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.NewGatewayError(operation, "request timed out, outcome unknown", 0, true, err)
		}
		return domain.NewGatewayError(operation, "transport failure", 0, true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewGatewayError(operation, "failed to read response body", resp.StatusCode, true, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody gatewayErrorBody
		message := "unexpected gateway response"
		if json.Unmarshal(respBody, &errBody) == nil {
			if errBody.Message != "" {
				message = errBody.Message
			} else if errBody.Error != "" {
				message = errBody.Error
			}
		}
		c.log.Warnw("Gateway returned non-2xx status", "operation", operation, "status", resp.StatusCode, "message", message)
		return domain.NewGatewayError(operation, message, resp.StatusCode, resp.StatusCode >= 500, nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return domain.NewGatewayError(operation, "failed to decode response body", resp.StatusCode, false, err)
		}
	}

	return nil
}

// HealthCheck проверяет доступность платежного API
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, "healthcheck", http.MethodGet, healthCheckPath, nil, nil)
}

// GetTransaction возвращает транзакцию по внешнему ID
func (c *Client) GetTransaction(ctx context.Context, id string) (*ChargeResponse, error) {
	var charge ChargeResponse
	if err := c.do(ctx, "get_transaction", http.MethodGet, chargesPath+"/"+id, nil, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// CaptureTransaction выполняет списание средств по авторизованной транзакции (SETTLE).
// amount == nil означает полную сумму.
func (c *Client) CaptureTransaction(ctx context.Context, id string, amount *float64) (*ChargeResponse, error) {
	var charge ChargeResponse
	cmd := chargeCommand{Command: commandSettle, Amount: amount}
	if err := c.do(ctx, "capture_transaction", http.MethodPost, chargesPath+"/"+id, cmd, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// CancelTransaction отменяет авторизацию транзакции (AUTH_REVERSAL)
func (c *Client) CancelTransaction(ctx context.Context, id string) (*ChargeResponse, error) {
	var charge ChargeResponse
	cmd := chargeCommand{Command: commandAuthReversal}
	if err := c.do(ctx, "cancel_transaction", http.MethodPost, chargesPath+"/"+id, cmd, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}

// RefundTransaction возвращает средства по транзакции (REFUND).
// amount == nil означает полную сумму.
func (c *Client) RefundTransaction(ctx context.Context, id string, amount *float64) (*ChargeResponse, error) {
	var charge ChargeResponse
	cmd := chargeCommand{Command: commandRefund, Amount: amount}
	if err := c.do(ctx, "refund_transaction", http.MethodPost, chargesPath+"/"+id, cmd, &charge); err != nil {
		return nil, err
	}
	return &charge, nil
}
