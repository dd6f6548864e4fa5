package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// Supported session backends.
const (
	SessionJWT   = "jwt"
	SessionRedis = "redis"
)

// FileConfig is the portal configuration. YAML supplies the base values and
// environment variables override them.
type FileConfig struct {
	Port     string `yaml:"port" env:"PORT"`
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"`
	// LogFormat is json (default) or text.
	LogFormat string `yaml:"logFormat" env:"LOG_FORMAT"`

	DatabaseDriver string `yaml:"databaseDriver" env:"DATABASE_DRIVER"`
	DatabaseURL    string `yaml:"databaseURL" env:"DATABASE_URL"`

	RedisAddr     string `yaml:"redisAddr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redisPassword" env:"REDIS_PASSWORD"`

	SessionStore string `yaml:"sessionStore" env:"SESSION_STORE"`
	SessionTTL   string `yaml:"sessionTTL" env:"SESSION_TTL"`
	SecretKey    string `yaml:"secretKey" env:"SECRET_KEY"`
	CookieSecure bool   `yaml:"cookieSecure" env:"COOKIE_SECURE"`

	AdminEmail   string `yaml:"adminEmail" env:"ADMIN_EMAIL"`
	AdminName    string `yaml:"adminName" env:"ADMIN_NAME"`
	AdminInitKey string `yaml:"adminInitKey" env:"ADMIN_INIT_KEY"`

	MailUser string `yaml:"mailUser" env:"MAIL_USER"`
	MailPass string `yaml:"mailPass" env:"MAIL_PASS"`
	MailHost string `yaml:"mailHost" env:"MAIL_HOST"`
	MailPort int    `yaml:"mailPort" env:"MAIL_PORT"`
	MailTo   string `yaml:"mailTo" env:"MAIL_TO"`

	MidtransServerKey  string `yaml:"midtransServerKey" env:"MIDTRANS_SERVER_KEY"`
	MidtransProduction bool   `yaml:"midtransProduction" env:"MIDTRANS_PRODUCTION"`
	PremiumPrice       int64  `yaml:"premiumPrice" env:"PREMIUM_PRICE"`
	PublicBaseURL      string `yaml:"publicBaseURL" env:"PUBLIC_BASE_URL"`

	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute" env:"LOGIN_RATE_LIMIT_PER_MINUTE"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute" env:"REGISTER_RATE_LIMIT_PER_MINUTE"`
	TrustedProxies             []string `yaml:"trustedProxies" env:"TRUSTED_PROXIES" envSeparator:","`
}

// Load reads .env (if present), then path (defaults to config.yaml, may be
// missing), then environment overrides, fills defaults and validates.
func Load(path string) (FileConfig, error) {
	_ = godotenv.Load()

	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	// Legacy Gmail variables still work when nothing newer is set.
	if cfg.MailUser == "" {
		cfg.MailUser = os.Getenv("GMAIL_USER")
	}
	if cfg.MailPass == "" {
		cfg.MailPass = os.Getenv("GMAIL_PASS")
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "5000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "sqlite"
	}
	if cfg.DatabaseDriver == "sqlite" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "booksphere.db"
	}
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	if cfg.SessionStore == "" {
		cfg.SessionStore = SessionJWT
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "24h"
	}
	if cfg.AdminName == "" {
		cfg.AdminName = "Administrator"
	}
	if cfg.MailHost == "" {
		cfg.MailHost = "smtp.gmail.com"
	}
	if cfg.MailPort == 0 {
		cfg.MailPort = 587
	}
	if cfg.PremiumPrice == 0 {
		cfg.PremiumPrice = 50000
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:" + cfg.Port
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
}

func validateConfig(cfg FileConfig) error {
	switch cfg.DatabaseDriver {
	case "postgres", "mysql", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unsupported databaseDriver %q", cfg.DatabaseDriver)
	}
	if cfg.DatabaseDriver != "memory" && cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if len(cfg.SecretKey) < 16 {
		return errors.New("config: secretKey must be at least 16 characters (set SECRET_KEY)")
	}
	switch cfg.SessionStore {
	case SessionJWT:
	case SessionRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis session store")
		}
	default:
		return fmt.Errorf("config: unsupported sessionStore %q", cfg.SessionStore)
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	if (cfg.AdminEmail == "") != (cfg.AdminInitKey == "") {
		return errors.New("config: adminEmail and adminInitKey must be set together")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.PremiumPrice < 0 {
		return errors.New("config: premiumPrice must be >= 0")
	}
	return nil
}

// ParseSessionTTL parses the session TTL duration string.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("invalid sessionTTL duration: must be positive")
	}
	return dur, nil
}

// MailEnabled reports whether feedback mails can be sent.
func (c FileConfig) MailEnabled() bool {
	return c.MailUser != "" && c.MailPass != ""
}

// RedisEnabled reports whether a Redis server is configured.
func (c FileConfig) RedisEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}
