package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Observ  ObservabilityConfig
	Pricing PricingConfig
	Session SessionConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// BackendConfig selects the data backend. When HostedDatabaseURL is set the
// hosted tables are used directly, otherwise every call goes to RESTBaseURL.
type BackendConfig struct {
	HostedDatabaseURL string
	RESTBaseURL       string
	RESTTimeout       time.Duration
	RESTServiceToken  string
}

// Hosted reports whether the hosted backend is configured.
func (b BackendConfig) Hosted() bool {
	return b.HostedDatabaseURL != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers       []string
	TopicOrder    string
	TopicListing  string
	ConsumerGroup string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
	PrometheusPort string
}

// PricingConfig holds the checkout percentages. Values are percents, so 10
// means ten percent of the subtotal.
type PricingConfig struct {
	FeePercent string
	TaxPercent string
}

type SessionConfig struct {
	SessionTTL     time.Duration
	WizardTTL      time.Duration
	IdempotencyTTL time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	restTimeout, _ := strconv.Atoi(getEnv("REST_TIMEOUT_SECONDS", "15"))
	sessionTTL, _ := strconv.Atoi(getEnv("SESSION_TTL_HOURS", "168"))
	wizardTTL, _ := strconv.Atoi(getEnv("WIZARD_TTL_MINUTES", "120"))
	idempotencyTTL, _ := strconv.Atoi(getEnv("IDEMPOTENCY_TTL_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      getEnv("ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", ""),
		},
		Backend: BackendConfig{
			HostedDatabaseURL: getEnv("HOSTED_DATABASE_URL", ""),
			RESTBaseURL:       getEnv("REST_BASE_URL", "http://localhost:4000/api"),
			RESTTimeout:       time.Duration(restTimeout) * time.Second,
			RESTServiceToken:  getEnv("REST_SERVICE_TOKEN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicOrder:    getEnv("KAFKA_TOPIC_ORDER_EVENTS", "order-events"),
			TopicListing:  getEnv("KAFKA_TOPIC_LISTING_EVENTS", "listing-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "payout-worker-group"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			PrometheusPort: getEnv("PROMETHEUS_PORT", "9090"),
		},
		Pricing: PricingConfig{
			FeePercent: getEnv("PLATFORM_FEE_PERCENT", "10"),
			TaxPercent: getEnv("TAX_PERCENT", "0"),
		},
		Session: SessionConfig{
			SessionTTL:     time.Duration(sessionTTL) * time.Hour,
			WizardTTL:      time.Duration(wizardTTL) * time.Minute,
			IdempotencyTTL: time.Duration(idempotencyTTL) * time.Hour,
		},
	}

	backend := "rest"
	if cfg.Backend.Hosted() {
		backend = "hosted"
	}
	log.Printf("Config loaded: env=%s, port=%s, backend=%s", cfg.Server.Env, cfg.Server.Port, backend)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
