package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderHosted = "hosted"
	ProviderStripe = "stripe"

	ReturnExclusionAny      = "any"
	ReturnExclusionApproved = "approved"

	BulkDeleteAtomic     = "atomic"
	BulkDeleteBestEffort = "best_effort"
)

// Config is the process configuration read from the environment.
type Config struct {
	AppPort          string
	DatabaseDriver   string
	DatabaseDSN      string
	RabbitMQURL      string
	RedisURL         string
	ShippingCacheTTL time.Duration
	JWTSecret        string
	LogLevel         string
	Currency         string
	PaymentProvider  string
	GatewayBaseURL   string
	GatewayAPIKey    string
	StripeAPIKey     string
	PublicBaseURL    string
	WebhookSecret    string
	ReturnExclusion  string
	BulkDeleteMode   string
	StatusRetries    int
	AdminUsername    string
	AdminEmail       string
	AdminPassword    string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "file:threadline.db?cache=shared")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SHIPPING_CACHE_TTL", "5m")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CURRENCY", "PKR")
	v.SetDefault("PAYMENT_PROVIDER", ProviderHosted)
	v.SetDefault("GATEWAY_BASE_URL", "")
	v.SetDefault("GATEWAY_API_KEY", "")
	v.SetDefault("STRIPE_API_KEY", "")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("WEBHOOK_SECRET", "")
	v.SetDefault("RETURN_EXCLUSION", ReturnExclusionAny)
	v.SetDefault("BULK_DELETE_MODE", BulkDeleteAtomic)
	v.SetDefault("STATUS_WRITE_RETRIES", 3)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_EMAIL", "admin@localhost")
	v.SetDefault("ADMIN_PASSWORD", "")
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:          v.GetString("APP_PORT"),
		DatabaseDriver:   strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:      v.GetString("DATABASE_DSN"),
		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		RedisURL:         v.GetString("REDIS_URL"),
		ShippingCacheTTL: v.GetDuration("SHIPPING_CACHE_TTL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		Currency:         strings.ToUpper(v.GetString("CURRENCY")),
		PaymentProvider:  strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
		GatewayBaseURL:   strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/"),
		GatewayAPIKey:    v.GetString("GATEWAY_API_KEY"),
		StripeAPIKey:     v.GetString("STRIPE_API_KEY"),
		PublicBaseURL:    strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		WebhookSecret:    v.GetString("WEBHOOK_SECRET"),
		ReturnExclusion:  strings.ToLower(v.GetString("RETURN_EXCLUSION")),
		BulkDeleteMode:   strings.ToLower(v.GetString("BULK_DELETE_MODE")),
		StatusRetries:    v.GetInt("STATUS_WRITE_RETRIES"),
		AdminUsername:    v.GetString("ADMIN_USERNAME"),
		AdminEmail:       v.GetString("ADMIN_EMAIL"),
		AdminPassword:    v.GetString("ADMIN_PASSWORD"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OnlinePaymentsEnabled reports whether the selected provider has the credentials it needs.
func (c *Config) OnlinePaymentsEnabled() bool {
	if c.PaymentProvider == ProviderStripe {
		return c.StripeAPIKey != ""
	}
	return c.GatewayBaseURL != ""
}

// Validate rejects unknown enum values and online payments without a webhook secret.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER %q: want postgres or sqlite", c.DatabaseDriver)
	}
	switch c.PaymentProvider {
	case ProviderHosted, ProviderStripe:
	default:
		return fmt.Errorf("invalid PAYMENT_PROVIDER %q: want %s or %s", c.PaymentProvider, ProviderHosted, ProviderStripe)
	}
	switch c.ReturnExclusion {
	case ReturnExclusionAny, ReturnExclusionApproved:
	default:
		return fmt.Errorf("invalid RETURN_EXCLUSION %q: want %s or %s", c.ReturnExclusion, ReturnExclusionAny, ReturnExclusionApproved)
	}
	switch c.BulkDeleteMode {
	case BulkDeleteAtomic, BulkDeleteBestEffort:
	default:
		return fmt.Errorf("invalid BULK_DELETE_MODE %q: want %s or %s", c.BulkDeleteMode, BulkDeleteAtomic, BulkDeleteBestEffort)
	}
	if c.StatusRetries < 1 {
		return fmt.Errorf("STATUS_WRITE_RETRIES must be at least 1, got %d", c.StatusRetries)
	}
	if c.ShippingCacheTTL < 0 {
		return fmt.Errorf("SHIPPING_CACHE_TTL must not be negative")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("invalid CURRENCY %q", c.Currency)
	}
	if c.OnlinePaymentsEnabled() && c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required when the %s payment provider is configured", c.PaymentProvider)
	}
	return nil
}
