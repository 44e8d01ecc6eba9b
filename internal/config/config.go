package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Fixed-window rate limit applied to portal purchase/redeem requests.
	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

type MpesaConfig struct {
	ShortCode      string        `yaml:"short_code"`
	Passkey        string        `yaml:"passkey"`
	ConsumerKey    string        `yaml:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret"`
	OAuthURL       string        `yaml:"oauth_url"`
	StkPushURL     string        `yaml:"stk_push_url"`
	CallbackURL    string        `yaml:"callback_url"`
	Timeout        time.Duration `yaml:"timeout"` // bounds the whole push round trip
}

type VoucherConfig struct {
	// RedemptionMode selects how the portal grants access:
	// "explicit" requires the visitor to enter a code; "auto" claims any
	// active voucher when no code is supplied.
	RedemptionMode string        `yaml:"redemption_mode"`
	PendingTTL     time.Duration `yaml:"pending_ttl"`    // stale pending vouchers older than this are rejected
	SweepInterval  time.Duration `yaml:"sweep_interval"` // how often the sweeper runs
	CodeAttempts   int           `yaml:"code_attempts"`  // bounded retries on code collision
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Mpesa    MpesaConfig    `yaml:"mpesa"`
	Vouchers VoucherConfig  `yaml:"vouchers"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	RedemptionModeExplicit = "explicit"
	RedemptionModeAuto     = "auto"
)

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.RateLimit <= 0 {
		cfg.Redis.RateLimit = 10
	}
	if cfg.Redis.RateLimitWindow <= 0 {
		cfg.Redis.RateLimitWindow = time.Minute
	}
	if cfg.Mpesa.Timeout <= 0 {
		cfg.Mpesa.Timeout = 15 * time.Second
	}
	if cfg.Vouchers.RedemptionMode == "" {
		cfg.Vouchers.RedemptionMode = RedemptionModeExplicit
	}
	if cfg.Vouchers.PendingTTL <= 0 {
		cfg.Vouchers.PendingTTL = 2 * time.Hour
	}
	if cfg.Vouchers.SweepInterval <= 0 {
		cfg.Vouchers.SweepInterval = 10 * time.Minute
	}
	if cfg.Vouchers.CodeAttempts <= 0 {
		cfg.Vouchers.CodeAttempts = 5
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}
	if cfg.Mpesa.ShortCode == "" || cfg.Mpesa.Passkey == "" {
		return nil, errors.New("mpesa.short_code and mpesa.passkey are required")
	}
	if cfg.Mpesa.ConsumerKey == "" || cfg.Mpesa.ConsumerSecret == "" {
		return nil, errors.New("mpesa.consumer_key and mpesa.consumer_secret are required")
	}
	if cfg.Mpesa.CallbackURL == "" {
		return nil, errors.New("mpesa.callback_url is required")
	}
	switch cfg.Vouchers.RedemptionMode {
	case RedemptionModeExplicit, RedemptionModeAuto:
	default:
		return nil, fmt.Errorf("vouchers.redemption_mode must be %q or %q", RedemptionModeExplicit, RedemptionModeAuto)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
