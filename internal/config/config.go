package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tradingbrain/licensing/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Logging    LoggingConfig    `mapstructure:"logging" validate:"required"`
	Webhook    WebhookConfig    `mapstructure:"webhook" validate:"required"`
	Store      StoreConfig      `mapstructure:"store" validate:"required"`
	Email      EmailConfig      `mapstructure:"email" validate:"required"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Svix       SvixConfig       `mapstructure:"svix"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required,oneof=local api aws_lambda_api"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

// WebhookConfig configures the inbound IPN endpoint
type WebhookConfig struct {
	// IPNSecret is the shared secret used to verify notification signatures.
	// An empty secret rejects every notification.
	IPNSecret       string          `mapstructure:"ipn_secret"`
	SignatureHeader string          `mapstructure:"signature_header" validate:"required"`
	ServiceName     string          `mapstructure:"service_name" validate:"required"`
	MaxBodyBytes    int64           `mapstructure:"max_body_bytes" validate:"gt=0"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps" validate:"gte=0"`
	Burst   int     `mapstructure:"burst" validate:"gte=0"`
}

// StoreConfig configures the license repository
type StoreConfig struct {
	Driver   types.StoreDriver `mapstructure:"driver" validate:"required,oneof=supabase postgres memory"`
	Timeout  time.Duration     `mapstructure:"timeout" validate:"gt=0"`
	Retry    RetryConfig       `mapstructure:"retry"`
	Supabase SupabaseConfig    `mapstructure:"supabase"`
	Postgres PostgresConfig    `mapstructure:"postgres"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type SupabaseConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	ServiceKey       string        `mapstructure:"service_key"`
	CustomerCacheTTL time.Duration `mapstructure:"customer_cache_ttl"`
}

// IsConfigured reports whether both the base url and the service credential are present
func (c SupabaseConfig) IsConfigured() bool {
	return c.BaseURL != "" && c.ServiceKey != ""
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// EmailConfig configures license delivery
type EmailConfig struct {
	Provider    types.EmailProvider `mapstructure:"provider" validate:"required,oneof=smtp resend"`
	Timeout     time.Duration       `mapstructure:"timeout" validate:"gt=0"`
	FromAddress string              `mapstructure:"from_address"`
	ReplyTo     string              `mapstructure:"reply_to"`
	SMTP        SMTPConfig          `mapstructure:"smtp"`
	Resend      ResendConfig        `mapstructure:"resend"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ResendConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type HTTPClientConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	RetryMax int           `mapstructure:"retry_max"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type SvixConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	AuthToken     string `mapstructure:"auth_token"`
	BaseURL       string `mapstructure:"base_url"`
	ApplicationID string `mapstructure:"application_id"`
}

// legacyEnv maps config keys to the variable names used by the serverless deployment
var legacyEnv = map[string]string{
	"webhook.ipn_secret":         "NOWPAYMENTS_IPN_SECRET",
	"store.supabase.base_url":    "SUPABASE_URL",
	"store.supabase.service_key": "SUPABASE_SERVICE_KEY",
	"email.smtp.host":            "LICENSE_SMTP_SERVER",
	"email.smtp.port":            "LICENSE_SMTP_PORT",
	"email.smtp.username":        "LICENSE_SMTP_USER",
	"email.smtp.password":        "LICENSE_SMTP_PASSWORD",
	"email.from_address":         "LICENSE_FROM_EMAIL",
}

func NewConfig() (*Configuration, error) {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	v := viper.New()

	// Modify config paths to ensure config.yaml is found
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/licensing")

	setDefaults(v)

	// Set up environment variables support
	v.SetEnvPrefix("LICENSING")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := "LICENSING_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, err
		}
	}

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
		fmt.Printf("No config file found, using defaults and environment\n")
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := GetDefaultConfig()

	v.SetDefault("deployment.mode", defaults.Deployment.Mode)
	v.SetDefault("server.address", defaults.Server.Address)
	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetDefault("webhook.ipn_secret", "")
	v.SetDefault("webhook.signature_header", defaults.Webhook.SignatureHeader)
	v.SetDefault("webhook.service_name", defaults.Webhook.ServiceName)
	v.SetDefault("webhook.max_body_bytes", defaults.Webhook.MaxBodyBytes)
	v.SetDefault("webhook.rate_limit.enabled", defaults.Webhook.RateLimit.Enabled)
	v.SetDefault("webhook.rate_limit.rps", defaults.Webhook.RateLimit.RPS)
	v.SetDefault("webhook.rate_limit.burst", defaults.Webhook.RateLimit.Burst)

	v.SetDefault("store.driver", defaults.Store.Driver)
	v.SetDefault("store.timeout", defaults.Store.Timeout)
	v.SetDefault("store.retry.max_attempts", defaults.Store.Retry.MaxAttempts)
	v.SetDefault("store.retry.initial_interval", defaults.Store.Retry.InitialInterval)
	v.SetDefault("store.retry.max_interval", defaults.Store.Retry.MaxInterval)
	v.SetDefault("store.supabase.base_url", "")
	v.SetDefault("store.supabase.service_key", "")
	v.SetDefault("store.supabase.customer_cache_ttl", defaults.Store.Supabase.CustomerCacheTTL)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "licensing")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.postgres.max_open_conns", 10)
	v.SetDefault("store.postgres.max_idle_conns", 5)

	v.SetDefault("email.provider", defaults.Email.Provider)
	v.SetDefault("email.timeout", defaults.Email.Timeout)
	v.SetDefault("email.from_address", "")
	v.SetDefault("email.reply_to", "")
	v.SetDefault("email.smtp.host", defaults.Email.SMTP.Host)
	v.SetDefault("email.smtp.port", defaults.Email.SMTP.Port)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.resend.api_key", "")

	v.SetDefault("http_client.timeout", defaults.HTTPClient.Timeout)
	v.SetDefault("http_client.retry_max", defaults.HTTPClient.RetryMax)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 0.0)

	v.SetDefault("svix.enabled", false)
	v.SetDefault("svix.auth_token", "")
	v.SetDefault("svix.base_url", "https://api.svix.com")
	v.SetDefault("svix.application_id", "")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts, tools and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Webhook: WebhookConfig{
			SignatureHeader: types.HeaderNowPaymentsSignature,
			ServiceName:     "TradingBrain Payment Webhook",
			MaxBodyBytes:    1 << 20,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Store: StoreConfig{
			Driver:  types.StoreDriverSupabase,
			Timeout: 10 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 200 * time.Millisecond,
				MaxInterval:     2 * time.Second,
			},
			Supabase: SupabaseConfig{
				CustomerCacheTTL: 10 * time.Minute,
			},
		},
		Email: EmailConfig{
			Provider: types.EmailProviderSMTP,
			Timeout:  15 * time.Second,
			SMTP: SMTPConfig{
				Host: "smtp.zoho.com",
				Port: 587,
			},
		},
		HTTPClient: HTTPClientConfig{
			Timeout:  10 * time.Second,
			RetryMax: 1,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// Address returns the host:port pair of the SMTP server
func (c SMTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsConfigured reports whether the selected provider has credentials and a sender address
func (c EmailConfig) IsConfigured() bool {
	switch c.Provider {
	case types.EmailProviderResend:
		return c.Resend.APIKey != "" && c.FromAddress != ""
	default:
		return c.SMTP.Host != "" && c.SMTP.Username != "" && c.SMTP.Password != "" && c.FromAddress != ""
	}
}
