package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clubnet/billing-service/internal/api/rest/handlers"
	"github.com/clubnet/billing-service/internal/api/rest/middleware"
	"github.com/clubnet/billing-service/internal/gateway"
	"github.com/clubnet/billing-service/internal/metrics"
	"github.com/clubnet/billing-service/internal/service"
	"github.com/clubnet/billing-service/pkg/logger"
)

// RouterDeps зависимости HTTP-слоя
type RouterDeps struct {
	Ledger   service.SubscriptionLedger
	Recorder service.TransactionRecorder
	Audit    service.AuditLogWriter
	Codec    *gateway.SignatureCodec
	Gateway  *gateway.Client
	Events   service.AuditEventSink
	Metrics  metrics.BillingMetrics
	Registry *prometheus.Registry
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps RouterDeps, log *logger.Logger) *gin.Engine {
	r := gin.New()

	// Подключение middleware
	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())

	// Инициализация обработчиков
	healthHandler := handlers.NewHealthHandler(deps.Gateway, log)
	subscriptionHandler := handlers.NewSubscriptionHandler(deps.Ledger, deps.Recorder, deps.Audit, log)
	callbackHandler := handlers.NewCallbackHandler(deps.Ledger, deps.Codec, deps.Metrics, log)
	transactionHandler := handlers.NewTransactionHandler(deps.Recorder, deps.Gateway, deps.Events, log)
	maintenanceHandler := handlers.NewMaintenanceHandler(deps.Ledger, log)

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", healthHandler.Health)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		// Подписки
		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.POST("", subscriptionHandler.StageNew)
			subscriptions.GET("", subscriptionHandler.ListByUser)
			subscriptions.GET("/:id", subscriptionHandler.Get)
			subscriptions.POST("/:id/upgrade", subscriptionHandler.StageUpgrade)
			subscriptions.POST("/:id/renew", subscriptionHandler.StageRenewal)
			subscriptions.POST("/:id/credits", subscriptionHandler.StageCreditPurchase)
			subscriptions.DELETE("/:id/pending", subscriptionHandler.AbandonPending)
			subscriptions.POST("/:id/cancel", subscriptionHandler.Cancel)
			subscriptions.GET("/:id/logs", subscriptionHandler.ListLogs)
			subscriptions.GET("/:id/transactions", subscriptionHandler.ListTransactions)
		}

		// Транзакции
		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", transactionHandler.Get)
			transactions.POST("/:id/refund", transactionHandler.Refund)
		}

		v1.GET("/gateway/health", healthHandler.GatewayHealth)
	}

	// Уведомления шлюза на корневом уровне роутера
	callbacks := r.Group("/callbacks")
	{
		callbacks.POST("/payment", callbackHandler.HandlePaymentCallback)
	}

	// Служебные задачи, дергаются внешним планировщиком
	internal := r.Group("/internal/jobs")
	{
		internal.POST("/expire-sweep", maintenanceHandler.ExpireSweep)
	}

	return r
}
