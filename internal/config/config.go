package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Server  ServerConfig  `validate:"required"`
	Logging LoggingConfig `validate:"required"`
	Auth    AuthConfig    `validate:"required"`
	Secrets SecretsConfig `validate:"required"`
	Stripe  StripeConfig
	Postgres PostgresConfig
	Usage   UsageConfig
	Worker  WorkerConfig
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level string `validate:"required"`
}

type AuthConfig struct {
	// AdminAPIKey guards the /v1/admin and catalog-management routes.
	// Compared in constant time.
	AdminAPIKey string `mapstructure:"admin_api_key" validate:"required"`
	// JWTTTLSeconds is the lifetime of minted tokens.
	JWTTTLSeconds int64 `mapstructure:"jwt_ttl_seconds" validate:"gt=0"`
	// ClockSkewSeconds is the allowed skew on iat/exp checks. Defaults to 0.
	ClockSkewSeconds int64 `mapstructure:"clock_skew_seconds"`
}

type SecretsConfig struct {
	// EncryptionKey is the hex-encoded 32-byte AES-256 key used to
	// encrypt app signing secrets at rest. Read once at startup and
	// read-only afterwards.
	EncryptionKey string `mapstructure:"encryption_key" validate:"required"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type PostgresConfig struct {
	// URL is the full DSN; takes precedence over discrete fields.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type UsageConfig struct {
	MaxBatchSize int `mapstructure:"max_batch_size" validate:"gt=0"`
}

type WorkerConfig struct {
	PricingPollInterval string `mapstructure:"pricing_poll_interval"`
	PricingBatchSize    int    `mapstructure:"pricing_batch_size"`
	PricingMaxRetries   int    `mapstructure:"pricing_max_retries"`
	PeriodCloseSchedule string `mapstructure:"period_close_schedule"`
	BatchDebitSchedule  string `mapstructure:"batch_debit_schedule"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional; real deployments inject environment directly
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvAliases(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("auth.jwt_ttl_seconds", 60)
	v.SetDefault("auth.clock_skew_seconds", 0)
	v.SetDefault("usage.max_batch_size", 1000)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("worker.pricing_poll_interval", "5s")
	v.SetDefault("worker.pricing_batch_size", 50)
	v.SetDefault("worker.pricing_max_retries", 5)
	v.SetDefault("worker.period_close_schedule", "0 0 2 * * *")
	v.SetDefault("worker.batch_debit_schedule", "0 */15 * * * *")
}

// bindEnvAliases maps the flat, documented environment variables onto
// the nested configuration keys.
func bindEnvAliases(v *viper.Viper) {
	_ = v.BindEnv("auth.admin_api_key", "ADMIN_API_KEY")
	_ = v.BindEnv("auth.jwt_ttl_seconds", "JWT_TTL_SECONDS")
	_ = v.BindEnv("secrets.encryption_key", "SECRETS_ENCRYPTION_KEY")
	_ = v.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	_ = v.BindEnv("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")
	_ = v.BindEnv("postgres.url", "DATABASE_URL")
	_ = v.BindEnv("usage.max_batch_size", "MAX_BATCH_SIZE")
	_ = v.BindEnv("server.address", "SERVER_ADDRESS")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	key, err := hex.DecodeString(c.Secrets.EncryptionKey)
	if err != nil {
		return errors.New("SECRETS_ENCRYPTION_KEY must be hex encoded")
	}
	if len(key) != 32 {
		return errors.New("SECRETS_ENCRYPTION_KEY must decode to 32 bytes")
	}
	return nil
}

// GetDSN assembles the postgres connection string
func (p PostgresConfig) GetDSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// GetDefaultConfig returns a configuration suitable for tests and scripts
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Server:  ServerConfig{Address: ":8080"},
		Logging: LoggingConfig{Level: "debug"},
		Auth: AuthConfig{
			AdminAPIKey:   "test-admin-key",
			JWTTTLSeconds: 60,
		},
		Secrets: SecretsConfig{
			EncryptionKey: strings.Repeat("ab", 32),
		},
		Usage: UsageConfig{MaxBatchSize: 1000},
		Worker: WorkerConfig{
			PricingPollInterval: "5s",
			PricingBatchSize:    50,
			PricingMaxRetries:   5,
			PeriodCloseSchedule: "0 0 2 * * *",
			BatchDebitSchedule:  "0 */15 * * * *",
		},
	}
}
