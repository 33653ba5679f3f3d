package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// RedirectURLs набор URL-ов возврата для одного типа платежной сессии.
type RedirectURLs struct {
	Success string `mapstructure:"success"`
	Failure string `mapstructure:"failure"`
	Cancel  string `mapstructure:"cancel"`
}

// GatewayConfig учетные данные и параметры платежного шлюза.
// Передается явно в конструкторы (SignatureCodec, GatewayClient),
// бизнес-логика не читает окружение напрямую.
type GatewayConfig struct {
	BaseURL         string        `mapstructure:"baseUrl"`
	MerchantAccount string        `mapstructure:"merchantAccount"`
	CallerName      string        `mapstructure:"callerName"`
	CallerSecret    string        `mapstructure:"callerSecret"`
	NotificationKey string        `mapstructure:"notificationKey"`
	PaywallSecret   string        `mapstructure:"paywallSecret"`
	PaywallURL      string        `mapstructure:"paywallUrl"`
	RequestTimeout  time.Duration `mapstructure:"requestTimeout"`

	// URL-ы возврата: подписка на план и покупка кредитов используют разные наборы
	PlanRedirects   RedirectURLs `mapstructure:"planRedirects"`
	CreditRedirects RedirectURLs `mapstructure:"creditRedirects"`
}

// Validate проверяет, что обязательные учетные данные шлюза заполнены.
func (g GatewayConfig) Validate() error {
	if g.MerchantAccount == "" {
		return fmt.Errorf("gateway: merchant account is required")
	}
	if g.CallerName == "" || g.CallerSecret == "" {
		return fmt.Errorf("gateway: caller credentials are required")
	}
	if g.NotificationKey == "" {
		return fmt.Errorf("gateway: notification key is required")
	}
	if g.PaywallSecret == "" {
		return fmt.Errorf("gateway: paywall secret is required")
	}
	return nil
}

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port            string `mapstructure:"port"`
		Env             string `mapstructure:"env"`
		ReadTimeout     int    `mapstructure:"readTimeout"`
		WriteTimeout    int    `mapstructure:"writeTimeout"`
		ShutdownTimeout int    `mapstructure:"shutdownTimeout"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Gateway GatewayConfig `mapstructure:"gateway"`
}

// LoadConfig загружает конфигурацию из файла или переменных окружения.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env может отсутствовать, это не ошибка
		_ = godotenv.Load(path)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Gateway.RequestTimeout == 0 {
		config.Gateway.RequestTimeout = 15 * time.Second
	}
	if err := config.Gateway.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
