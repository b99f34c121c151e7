package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "SIGILLO"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "sigillo.db"
	defaultLogLevel        = "info"
	defaultTokenTTLMinutes = 720
	defaultStorageRoot     = "objects"
	defaultCurrency        = "eur"
	defaultSuccessPath     = "/payment/success?session_id={CHECKOUT_SESSION_ID}"
	defaultCancelPath      = "/payment/cancelled"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	SigningSecret   string
	TokenTTL        time.Duration
	StorageRoot     string
	PublicBaseURL   string
	StripeSecretKey string
	Currency        string
	SuccessURLPath  string
	CancelURLPath   string
	RedisAddress    string
	RedisPassword   string
	AdminMode       bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("storage.root", defaultStorageRoot)
	configViper.SetDefault("stripe.currency", defaultCurrency)
	configViper.SetDefault("checkout.success_path", defaultSuccessPath)
	configViper.SetDefault("checkout.cancel_path", defaultCancelPath)
	configViper.SetDefault("admin_mode", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		TokenTTL:        time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		StorageRoot:     configViper.GetString("storage.root"),
		PublicBaseURL:   configViper.GetString("storage.public_base_url"),
		StripeSecretKey: configViper.GetString("stripe.secret_key"),
		Currency:        configViper.GetString("stripe.currency"),
		SuccessURLPath:  configViper.GetString("checkout.success_path"),
		CancelURLPath:   configViper.GetString("checkout.cancel_path"),
		RedisAddress:    configViper.GetString("redis.address"),
		RedisPassword:   configViper.GetString("redis.password"),
		AdminMode:       configViper.GetBool("admin_mode"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.StorageRoot) == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	return nil
}
