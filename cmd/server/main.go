package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clubnet/billing-service/internal/api/rest"
	"github.com/clubnet/billing-service/internal/config"
	"github.com/clubnet/billing-service/internal/gateway"
	"github.com/clubnet/billing-service/internal/kafka"
	"github.com/clubnet/billing-service/internal/kafka/producer"
	"github.com/clubnet/billing-service/internal/metrics"
	"github.com/clubnet/billing-service/internal/repository"
	"github.com/clubnet/billing-service/internal/service"
	"github.com/clubnet/billing-service/pkg/logger"
)

func main() {
	log := initLogger()

	log.Infow("Billing service starting up...")

	// Загружаем конфигурацию
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	// Устанавливаем режим Gin в зависимости от окружения
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключаемся к базе данных
	db, err := repository.NewPostgresDB(cfg.Database.DSN, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorw("Error closing database connection", "error", err)
		}
	}()
	log.Infow("Database connection established")

	// Репозитории
	subscriptionRepo := repository.NewPostgresSubscriptionRepository(db, log)
	transactionRepo := repository.NewPostgresTransactionRepository(db, log)
	subscriptionLogRepo := repository.NewPostgresSubscriptionLogRepository(db, log)
	basePlanRepo := repository.NewPostgresPlanRepository(db, log)

	// Redis кеширует только каталог планов
	planRepo := basePlanRepo
	redisCache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		// Не фатально, но предупреждаем
		log.Warnw("Failed to initialize Redis cache, continuing without plan caching", "error", err)
	} else {
		log.Infow("Redis cache initialized successfully")
		planRepo = repository.NewCachedPlanRepository(basePlanRepo, redisCache, log)
		defer func() {
			if err := redisCache.Close(); err != nil {
				log.Errorw("Error closing Redis connection", "error", err)
			}
		}()
	}

	// Метрики
	registry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(registry, log)
	runtimeMetrics := metrics.NewRuntimeMetrics(registry, log)
	runtimeMetrics.Start(10 * time.Second)
	defer runtimeMetrics.Stop()

	// Платежный шлюз
	codec := gateway.NewSignatureCodec(cfg.Gateway, log)
	gatewayClient := gateway.NewClient(cfg.Gateway, codec, billingMetrics, log)
	sessionBuilder := gateway.NewSessionBuilder(cfg.Gateway, codec, log)

	// Kafka producer для событий биллинга
	var events service.AuditEventSink
	kafkaCfg := kafka.NewConfig(cfg.Kafka.Brokers)
	saramaProducer, err := sarama.NewSyncProducer(kafkaCfg.Brokers, kafka.NewSaramaConfig(kafkaCfg))
	if err != nil {
		log.Errorw("Failed to initialize Kafka producer, continuing without event publishing", "error", err)
		events = service.NewInMemoryEventSink()
	} else {
		log.Infow("Kafka producer initialized")
		billingProducer := producer.NewBillingProducer(saramaProducer, log)
		events = billingProducer
		defer func() {
			if err := billingProducer.Close(); err != nil {
				log.Errorw("Error closing Kafka producer", "error", err)
			}
		}()
	}

	// Сервисы
	recorder := service.NewTransactionRecorder(transactionRepo, log)
	audit := service.NewAuditLogWriter(subscriptionLogRepo, subscriptionRepo, log)
	// TODO: заменить на gRPC-клиент user-service, когда он переедет в общий контур
	users := service.NewInMemoryUserDirectory()
	notifier := service.NewLogNotificationService(log)
	ledger := service.NewSubscriptionLedger(
		subscriptionRepo,
		planRepo,
		recorder,
		audit,
		sessionBuilder,
		users,
		notifier,
		events,
		billingMetrics,
		log,
	)

	// HTTP сервер
	router := rest.SetupRouter(rest.RouterDeps{
		Ledger:   ledger,
		Recorder: recorder,
		Audit:    audit,
		Codec:    codec,
		Gateway:  gatewayClient,
		Events:   events,
		Metrics:  billingMetrics,
		Registry: registry,
	}, log)
	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	log.Infow("Billing service stopped")
}

func initLogger() *logger.Logger {
	level := logger.INFO
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = logger.DEBUG
	}
	return logger.New(level)
}
