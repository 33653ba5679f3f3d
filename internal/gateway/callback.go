package gateway

import (
	"fmt"
	"strings"

	"github.com/clubnet/billing-service/internal/domain"
)

// CallbackSignatureHeader заголовок, в котором шлюз передает подпись callback-а
const CallbackSignatureHeader = "x-callback-signature"

// Статусы платежа в поле status callback-а.
const (
	ChargeStatusCharged  = "CHARGED"
	ChargeStatusDeclined = "DECLINED"
)

// CallbackTransaction элемент transactions[] в теле callback-а
type CallbackTransaction struct {
	State        string  `json:"state"`
	ResultCode   string  `json:"resultCode"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Type         string  `json:"type"`
	ResponseText string  `json:"responseText"`
	Timestamp    string  `json:"timestamp"`
}

// CallbackPayload тело callback-а платежного шлюза.
// ID имеет вид "<subscriptionId>_<timestamp>", OrderID —
// "<planName>_plan_<type>_<timestamp>". IntentType — явное структурированное
// поле с тем же типом намерения; старые callback-и его не несут, тогда тип
// извлекается из OrderID.
type CallbackPayload struct {
	Status       string                `json:"status"`
	ID           string                `json:"id"`
	OrderID      string                `json:"orderId"`
	IntentType   string                `json:"intentType,omitempty"`
	Transactions []CallbackTransaction `json:"transactions"`
}

// SubscriptionID извлекает ID подписки из поля ID ("<subscriptionId>_<timestamp>").
func (p *CallbackPayload) SubscriptionID() (string, error) {
	idx := strings.LastIndex(p.ID, "_")
	if idx <= 0 {
		return "", fmt.Errorf("malformed callback id %q", p.ID)
	}
	return p.ID[:idx], nil
}

// SubscribeType возвращает тип платежного намерения callback-а.
// Явное поле intentType имеет приоритет, OrderID остается запасным путем
// для совместимости со старым проводным форматом.
func (p *CallbackPayload) SubscribeType() (domain.SubscribeType, error) {
	if p.IntentType != "" {
		t := domain.SubscribeType(p.IntentType)
		if !t.Valid() {
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidSubscribeType, p.IntentType)
		}
		return t, nil
	}
	return ParseOrderID(p.OrderID)
}

// FirstTransaction возвращает первую транзакцию callback-а, если она есть.
func (p *CallbackPayload) FirstTransaction() *CallbackTransaction {
	if len(p.Transactions) == 0 {
		return nil
	}
	return &p.Transactions[0]
}

// BuildOrderID собирает OrderID в проводном формате "<planName>_plan_<type>_<timestamp>".
// Формат и разделители — часть контракта со шлюзом, callback разбирает их обратно.
func BuildOrderID(planName string, subscribeType domain.SubscribeType, timestamp int64) string {
	return fmt.Sprintf("%s_plan_%s_%d", planName, subscribeType, timestamp)
}

// BuildChargeID собирает ChargeID в формате "<subscriptionId>_<timestamp>".
func BuildChargeID(subscriptionID string, timestamp int64) string {
	return fmt.Sprintf("%s_%d", subscriptionID, timestamp)
}

// ParseOrderID извлекает тип намерения из OrderID.
// Тип — токен между последним "_plan_" и завершающим "_<timestamp>".
// Имя плана может содержать "_", поэтому ищем маркер с конца.
func ParseOrderID(orderID string) (domain.SubscribeType, error) {
	idx := strings.LastIndex(orderID, "_plan_")
	if idx < 0 {
		return "", fmt.Errorf("malformed order id %q", orderID)
	}

	rest := orderID[idx+len("_plan_"):]
	tsIdx := strings.LastIndex(rest, "_")
	if tsIdx <= 0 {
		return "", fmt.Errorf("malformed order id %q", orderID)
	}

	t := domain.SubscribeType(rest[:tsIdx])
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidSubscribeType, rest[:tsIdx])
	}
	return t, nil
}
