package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clubnet/billing-service/pkg/logger"
)

// BillingMetrics интерфейс для метрик биллинга
type BillingMetrics interface {
	IncSessionStaged(subscribeType string)
	IncCallbackProcessed(outcome string)
	IncCallbackRejected()
	IncDuplicateCallback()
	AddCreditsGranted(credits int)
	ObserveGatewayCall(operation string, seconds float64)
}

type billingMetrics struct {
	log              *logger.Logger
	sessionsStaged   *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	callbackRejected prometheus.Counter
	duplicates       prometheus.Counter
	creditsGranted   prometheus.Counter
	gatewayCalls     *prometheus.HistogramVec
}

// NewBillingMetrics создает новые метрики биллинга
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	sessionsStaged := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_sessions_staged_total",
			Help: "The total number of staged payment sessions by intent type",
		},
		[]string{"type"},
	)

	callbacks := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_callbacks_processed_total",
			Help: "The total number of processed gateway callbacks by outcome",
		},
		[]string{"outcome"},
	)

	callbackRejected := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "billing_callbacks_rejected_total",
			Help: "The total number of callbacks rejected on signature verification",
		},
	)

	duplicates := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "billing_callbacks_duplicate_total",
			Help: "The total number of duplicate callback deliveries ignored",
		},
	)

	creditsGranted := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "billing_credits_granted_total",
			Help: "The total number of credits granted through confirmed payments",
		},
	)

	gatewayCalls := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_gateway_call_seconds",
			Help:    "Gateway call durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	return &billingMetrics{
		log:              log,
		sessionsStaged:   sessionsStaged,
		callbacks:        callbacks,
		callbackRejected: callbackRejected,
		duplicates:       duplicates,
		creditsGranted:   creditsGranted,
		gatewayCalls:     gatewayCalls,
	}
}

// IncSessionStaged увеличивает счетчик подготовленных платежных сессий
func (m *billingMetrics) IncSessionStaged(subscribeType string) {
	m.sessionsStaged.WithLabelValues(subscribeType).Inc()
}

// IncCallbackProcessed увеличивает счетчик обработанных callback-ов
func (m *billingMetrics) IncCallbackProcessed(outcome string) {
	m.callbacks.WithLabelValues(outcome).Inc()
}

// IncCallbackRejected увеличивает счетчик отклоненных по подписи callback-ов
func (m *billingMetrics) IncCallbackRejected() {
	m.callbackRejected.Inc()
}

// IncDuplicateCallback увеличивает счетчик повторных доставок
func (m *billingMetrics) IncDuplicateCallback() {
	m.duplicates.Inc()
}

// AddCreditsGranted добавляет начисленные кредиты
func (m *billingMetrics) AddCreditsGranted(credits int) {
	m.creditsGranted.Add(float64(credits))
}

// ObserveGatewayCall записывает длительность вызова шлюза
func (m *billingMetrics) ObserveGatewayCall(operation string, seconds float64) {
	m.gatewayCalls.WithLabelValues(operation).Observe(seconds)
}

// nopBillingMetrics пустая реализация для тестов
type nopBillingMetrics struct{}

// NewNopBillingMetrics создает метрики, которые ничего не записывают
func NewNopBillingMetrics() BillingMetrics {
	return nopBillingMetrics{}
}

func (nopBillingMetrics) IncSessionStaged(string)            {}
func (nopBillingMetrics) IncCallbackProcessed(string)        {}
func (nopBillingMetrics) IncCallbackRejected()               {}
func (nopBillingMetrics) IncDuplicateCallback()              {}
func (nopBillingMetrics) AddCreditsGranted(int)              {}
func (nopBillingMetrics) ObserveGatewayCall(string, float64) {}
