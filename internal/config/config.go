// Package config loads the service configuration from environment variables.
// A .env file, when present, is read first; envconfig then maps variables onto
// the Config struct.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds ALL application settings.
type Config struct {
	// --- Storage ---
	// memory keeps everything in process; useful for local runs only.
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`

	// --- Database ---
	// Inside docker-compose the host is the service name, override DB_HOST=localhost locally.
	DBHost      string `envconfig:"DB_HOST" default:"postgres"`
	DBPort      int    `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" default:"billing"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBName      string `envconfig:"DB_NAME" default:"billing"`
	DBSSLMode   string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	DBTxRetries int    `envconfig:"DB_TX_RETRIES" default:"3"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Africa/Nairobi"`

	// --- HTTP ---
	HTTPAddr           string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPRequestTimeout time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"15s"`
	HTTPShutdownWait   time.Duration `envconfig:"HTTP_SHUTDOWN_WAIT" default:"10s"`

	// --- Auth ---
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// argon2id hash of the shared secret the scheduler presents, see scripts/generate_hash.go
	CronSecretHash string `envconfig:"CRON_SECRET_HASH" required:"true"`

	// --- Wallet & catalog ---
	WalletCurrency     string `envconfig:"WALLET_CURRENCY" default:"KES"`
	PriceWeeklyBasic   string `envconfig:"PRICE_WEEKLY_BASIC" default:"0"`
	PriceWeeklyPremium string `envconfig:"PRICE_WEEKLY_PREMIUM" default:"0"`
	PriceWeeklyElite   string `envconfig:"PRICE_WEEKLY_ELITE" default:"0"`

	// --- Expiration sweep ---
	SweepEnabled  bool          `envconfig:"SWEEP_ENABLED" default:"true"`
	SweepSchedule string        `envconfig:"SWEEP_SCHEDULE" default:"0 2 * * *"`
	SweepLockTTL  time.Duration `envconfig:"SWEEP_LOCK_TTL" default:"30m"`
	// Empty means the lock is held in process only.
	RedisURL string `envconfig:"REDIS_URL"`

	// --- Events ---
	// Empty means events are only logged.
	AMQPURL      string `envconfig:"AMQP_URL"`
	EventsBuffer int    `envconfig:"EVENTS_BUFFER" default:"256"`

	// --- Ops notifications ---
	TelegramBotToken  string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramOpsChatID int64  `envconfig:"TELEGRAM_OPS_CHAT_ID"`

	// --- Rate limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Edge ---
	// Comma separated addresses or CIDRs whose X-Forwarded-For is believed.
	// Empty means the TCP peer is always the client.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
	// Origins allowed to open /ws. Empty means same origin only.
	WSAllowedOrigins []string `envconfig:"WS_ALLOWED_ORIGINS"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// WeeklyPrices parses the configured weekly price of each tier.
func (c *Config) WeeklyPrices() (basic, premium, elite decimal.Decimal, err error) {
	parse := func(key, v string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s: %w", key, err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("%s must be >= 0", key)
		}
		if !d.Equal(d.Truncate(2)) {
			return decimal.Zero, fmt.Errorf("%s must have at most 2 decimal places", key)
		}
		return d, nil
	}
	if basic, err = parse("PRICE_WEEKLY_BASIC", c.PriceWeeklyBasic); err != nil {
		return
	}
	if premium, err = parse("PRICE_WEEKLY_PREMIUM", c.PriceWeeklyPremium); err != nil {
		return
	}
	elite, err = parse("PRICE_WEEKLY_ELITE", c.PriceWeeklyElite)
	return
}

// TelegramEnabled reports whether sweep summaries go to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramOpsChatID != 0
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if parts := strings.Split(c.CronSecretHash, "$"); len(parts) != 6 || parts[1] != "argon2id" {
		return errors.New("CRON_SECRET_HASH must be an argon2id hash, see scripts/generate_hash.go")
	}
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DBPassword == "" {
			return errors.New("DB_PASSWORD is required for the postgres driver")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return errors.New("invalid DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DBTxRetries < 1 {
		return errors.New("DB_TX_RETRIES must be >= 1")
	}
	if c.HTTPRequestTimeout <= 0 {
		return errors.New("HTTP_REQUEST_TIMEOUT must be > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.EventsBuffer <= 0 {
		return errors.New("EVENTS_BUFFER must be > 0")
	}
	if c.WalletCurrency == "" {
		return errors.New("WALLET_CURRENCY must not be empty")
	}
	if _, _, _, err := c.WeeklyPrices(); err != nil {
		return err
	}
	for _, p := range c.TrustedProxies {
		if err := checkProxy(strings.TrimSpace(p)); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
	}
	for _, o := range c.WSAllowedOrigins {
		u, err := url.Parse(strings.TrimSpace(o))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("WS_ALLOWED_ORIGINS: %q is not an http(s) origin", o)
		}
	}
	return nil
}

func checkProxy(s string) error {
	if s == "" {
		return nil
	}
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err
	}
	_, err := netip.ParseAddr(s)
	return err
}

// Load reads .env (if any) and the environment into a validated Config.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
