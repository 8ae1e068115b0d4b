package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Mpesa    MpesaConfig
}

type AppConfig struct {
	Port string
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	DSN    string
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

type RabbitMQConfig struct {
	// URL empty disables order events.
	URL string
}

type RedisConfig struct {
	// Addr empty keeps gateway tokens in process.
	Addr     string
	Password string
	DB       int
}

type MpesaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	CallbackURL     string
	TransactionType string
	Timeout         time.Duration
	SettleDelay     time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "duka.db")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke")
	v.SetDefault("MPESA_CONSUMER_KEY", "")
	v.SetDefault("MPESA_CONSUMER_SECRET", "")
	v.SetDefault("MPESA_SHORTCODE", "174379")
	v.SetDefault("MPESA_PASSKEY", "")
	v.SetDefault("MPESA_CALLBACK_URL", "")
	v.SetDefault("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline")
	v.SetDefault("MPESA_TIMEOUT", "30s")
	v.SetDefault("MPESA_SETTLE_DELAY", "5s")
}

// Load reads configuration from defaults, the optional file named by
// CONFIG_FILE, and the environment, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		App: AppConfig{Port: v.GetString("APP_PORT")},
		Database: DatabaseConfig{
			Driver: v.GetString("DB_DRIVER"),
			DSN:    v.GetString("DB_DSN"),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("JWT_SECRET"),
			TokenTTL:      v.GetDuration("JWT_TTL"),
			AdminEmail:    v.GetString("ADMIN_EMAIL"),
			AdminPassword: v.GetString("ADMIN_PASSWORD"),
		},
		RabbitMQ: RabbitMQConfig{URL: v.GetString("RABBITMQ_URL")},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Mpesa: MpesaConfig{
			BaseURL:         v.GetString("MPESA_BASE_URL"),
			ConsumerKey:     v.GetString("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  v.GetString("MPESA_CONSUMER_SECRET"),
			ShortCode:       v.GetString("MPESA_SHORTCODE"),
			PassKey:         v.GetString("MPESA_PASSKEY"),
			CallbackURL:     v.GetString("MPESA_CALLBACK_URL"),
			TransactionType: v.GetString("MPESA_TRANSACTION_TYPE"),
			Timeout:         v.GetDuration("MPESA_TIMEOUT"),
			SettleDelay:     v.GetDuration("MPESA_SETTLE_DELAY"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.Mpesa.Timeout <= 0 {
		return fmt.Errorf("MPESA_TIMEOUT must be positive")
	}
	if c.Mpesa.SettleDelay < 0 {
		return fmt.Errorf("MPESA_SETTLE_DELAY must not be negative")
	}
	return nil
}
