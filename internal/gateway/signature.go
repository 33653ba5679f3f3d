package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/clubnet/billing-service/internal/config"
	"github.com/clubnet/billing-service/pkg/logger"
)

// SignatureCodec вычисляет и проверяет подписи для исходящих запросов к API шлюза,
// исходящих paywall-редиректов и входящих callback-ов.
// Учетные данные передаются явно через конфигурацию, без чтения окружения.
type SignatureCodec struct {
	merchantAccount string
	callerName      string
	callerSecret    string
	notificationKey string
	paywallSecret   string
	log             *logger.Logger
}

// NewSignatureCodec создает новый кодек подписей
func NewSignatureCodec(cfg config.GatewayConfig, log *logger.Logger) *SignatureCodec {
	return &SignatureCodec{
		merchantAccount: cfg.MerchantAccount,
		callerName:      cfg.CallerName,
		callerSecret:    cfg.CallerSecret,
		notificationKey: cfg.NotificationKey,
		paywallSecret:   cfg.PaywallSecret,
		log:             log,
	}
}

// serializeBody сериализует тело запроса так, как оно уходит на провод.
// Пустое тело дает пустую строку.
func serializeBody(body interface{}) (string, error) {
	if body == nil {
		return "", nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to serialize request body: %w", err)
	}
	return string(data), nil
}

// requestMessage собирает подписываемое сообщение для запроса к API шлюза.
// Порядок частей фиксирован протоколом: caller, merchant, timestamp, path, body.
func (c *SignatureCodec) requestMessage(timestamp, path, serializedBody string) string {
	return c.callerName + c.merchantAccount + timestamp + path + serializedBody
}

// SignRequest подписывает исходящий запрос к API шлюза.
// Возвращает hex-подпись HMAC-SHA256 и unix-секунды, вшитые в нее.
func (c *SignatureCodec) SignRequest(path string, body interface{}) (signature, timestamp string, err error) {
	serialized, err := serializeBody(body)
	if err != nil {
		return "", "", err
	}

	timestamp = strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(c.callerSecret))
	mac.Write([]byte(c.requestMessage(timestamp, path, serialized)))

	return hex.EncodeToString(mac.Sum(nil)), timestamp, nil
}

// VerifyRequest проверяет подпись входящего запроса к API.
// Сравнение константное по времени. Любая ошибка трактуется как отказ, не паника.
func (c *SignatureCodec) VerifyRequest(signature, timestamp, path string, body interface{}) bool {
	if signature == "" || timestamp == "" {
		return false
	}

	serialized, err := serializeBody(body)
	if err != nil {
		c.log.Warn("Failed to serialize body during request verification: %v", err)
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.callerSecret))
	mac.Write([]byte(c.requestMessage(timestamp, path, serialized)))
	expected := hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// SignPaywallPayload подписывает JSON-payload для браузерного редиректа на paywall:
// SHA-256(paywallSecret + payload), hex.
func (c *SignatureCodec) SignPaywallPayload(jsonPayload string) string {
	sum := sha256.Sum256([]byte(c.paywallSecret + jsonPayload))
	return hex.EncodeToString(sum[:])
}

// VerifyCallback проверяет подпись входящего callback-а от шлюза.
// Проверяются РОВНО те байты, что пришли на провод, до любого парсинга JSON.
// Подпись шлюза сравнивается без учета регистра hex-символов.
func (c *SignatureCodec) VerifyCallback(rawBody []byte, receivedSignature string) bool {
	if receivedSignature == "" {
		return false
	}

	received, err := hex.DecodeString(strings.ToLower(receivedSignature))
	if err != nil {
		c.log.Warn("Callback signature is not valid hex")
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.notificationKey))
	mac.Write(rawBody)

	return hmac.Equal(mac.Sum(nil), received)
}
