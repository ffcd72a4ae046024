package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
// `default:""` provides a default value if the env var is not set.
// `required:"true"` makes an environment variable mandatory.
// `validate:""` rules are checked by Validate after loading.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production test"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn warning error"`
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Airtable   AirtableConfig
	Messenger  MessengerConfig
	WhatsApp   WhatsAppConfig
	Telegram   TelegramConfig
	FAQ        FAQConfig

	OutboundTimeout time.Duration `envconfig:"OUTBOUND_TIMEOUT" default:"60s" validate:"gt=0s"`
	WebhookTimeout  time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"120s" validate:"gt=0s"` // budget for handling one delivery
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"60s" validate:"gte=0s"` // 0 disables caching
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080" validate:"required,numeric"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"60s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090" validate:"required,numeric"`
}

// PostgresConfig holds PostgreSQL connection details for the staff registry.
// Leaving POSTGRES_HOST empty keeps the registry in memory.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432" validate:"numeric"`
	User     string `envconfig:"POSTGRES_USER" validate:"required_with=Host"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME" validate:"required_with=Host"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// Enabled reports whether a database is configured.
func (pc *PostgresConfig) Enabled() bool { return pc.Host != "" }

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// RedisConfig configures the catalog snapshot cache. Empty REDIS_ADDR keeps it in memory.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
	Prefix   string `envconfig:"REDIS_PREFIX" default:"fabrics:"`
}

func (rc *RedisConfig) Enabled() bool { return rc.Addr != "" }

// KafkaConfig configures reservation events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_RESERVATIONS_TOPIC" default:"fabrics.reservations" validate:"required_with=Brokers"`
}

func (kc *KafkaConfig) Enabled() bool { return len(kc.Brokers) > 0 }

// AirtableConfig points at the catalog base.
type AirtableConfig struct {
	APIKey            string `envconfig:"AIRTABLE_API_KEY" required:"true" validate:"required"`
	BaseID            string `envconfig:"AIRTABLE_BASE_ID" required:"true" validate:"required"`
	BaseURL           string `envconfig:"AIRTABLE_BASE_URL"`
	CategoriesTable   string `envconfig:"AIRTABLE_CATEGORIES_TABLE" default:"Categories" validate:"required"`
	ProductsTable     string `envconfig:"AIRTABLE_PRODUCTS_TABLE" default:"Products" validate:"required"`
	ReservationsTable string `envconfig:"AIRTABLE_RESERVATIONS_TABLE" default:"Reservations" validate:"required"`
}

// MessengerConfig configures the Facebook page bot.
type MessengerConfig struct {
	PageAccessToken string `envconfig:"MESSENGER_PAGE_ACCESS_TOKEN"`
	VerifyToken     string `envconfig:"MESSENGER_VERIFY_TOKEN" validate:"required_with=PageAccessToken"`
	GraphBaseURL    string `envconfig:"MESSENGER_GRAPH_BASE_URL"`
}

func (mc *MessengerConfig) Enabled() bool { return mc.PageAccessToken != "" }

// WhatsAppConfig configures the WhatsApp Cloud API bot.
type WhatsAppConfig struct {
	AccessToken   string `envconfig:"WHATSAPP_ACCESS_TOKEN"`
	PhoneNumberID string `envconfig:"WHATSAPP_PHONE_NUMBER_ID" validate:"required_with=AccessToken"`
	VerifyToken   string `envconfig:"WHATSAPP_VERIFY_TOKEN" validate:"required_with=AccessToken"`
	GraphBaseURL  string `envconfig:"WHATSAPP_GRAPH_BASE_URL"`
}

func (wc *WhatsAppConfig) Enabled() bool { return wc.AccessToken != "" }

// TelegramConfig configures the Telegram bot used by customers and staff.
type TelegramConfig struct {
	BotToken       string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	RegisterSecret string  `envconfig:"TELEGRAM_REGISTER_SECRET"`
	ChatIDs        []int64 `envconfig:"TELEGRAM_CHAT_IDS"` // seeds the staff registry
	Polling        bool    `envconfig:"TELEGRAM_POLLING" default:"false"`
	PollTimeout    int     `envconfig:"TELEGRAM_POLL_TIMEOUT" default:"30" validate:"gte=1,lte=60"`
	APIEndpoint    string  `envconfig:"TELEGRAM_API_ENDPOINT"`
}

func (tc *TelegramConfig) Enabled() bool { return tc.BotToken != "" }

// FAQConfig configures the language model fallback. No API key disables it.
type FAQConfig struct {
	HuggingFaceAPIKey string        `envconfig:"HUGGINGFACE_API_KEY"`
	InferenceURL      string        `envconfig:"HUGGINGFACE_INFERENCE_URL" validate:"omitempty,url"`
	Timeout           time.Duration `envconfig:"HUGGINGFACE_TIMEOUT" default:"60s" validate:"gt=0s"`
}

func (fc *FAQConfig) LLMEnabled() bool { return fc.HuggingFaceAPIKey != "" }

// Load initializes the configuration from environment variables.
// It should be called once during application startup, after any .env file is loaded.
func Load() (*Config, error) {
	log.Debug("Loading service configuration...")
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.WithField("app_env", cfg.AppEnv).Info("Configuration loaded successfully")
	return &cfg, nil
}

// Validate checks field rules and cross-field dependencies.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if c.FAQ.LLMEnabled() && c.FAQ.Timeout >= c.WebhookTimeout {
		return errors.Errorf("invalid configuration: HUGGINGFACE_TIMEOUT (%s) must be below WEBHOOK_TIMEOUT (%s)",
			c.FAQ.Timeout, c.WebhookTimeout)
	}
	return nil
}

// IsDevelopment reports whether human-readable logs are wanted.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "test"
}
