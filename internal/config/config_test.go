package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("CRON_SECRET_HASH", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", StorageMemory)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "0 2 * * *", cfg.SweepSchedule)
	assert.Equal(t, "Africa/Nairobi", cfg.AppTimezone)
	assert.Equal(t, "KES", cfg.WalletCurrency)
	assert.Equal(t, 15*time.Second, cfg.HTTPRequestTimeout)
	assert.Equal(t, 3, cfg.DBTxRetries)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_MissingSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "   ")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_CronHashMustBeArgon2id(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", StorageMemory)

	for _, hash := range []string{"x", "plain-secret", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"} {
		t.Setenv("CRON_SECRET_HASH", hash)
		_, err := Load()
		require.Error(t, err, hash)
		assert.Contains(t, err.Error(), "CRON_SECRET_HASH")
	}
}

func TestLoad_EdgeLists(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,172.17.0.1")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://app.example.ke")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "172.17.0.1"}, cfg.TrustedProxies)
	assert.Equal(t, []string{"https://app.example.ke"}, cfg.WSAllowedOrigins)

	t.Setenv("TRUSTED_PROXIES", "proxy.local")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")

	t.Setenv("TRUSTED_PROXIES", "")
	t.Setenv("WS_ALLOWED_ORIGINS", "app.example.ke")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WS_ALLOWED_ORIGINS")
}

func TestValidate_PostgresNeedsPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", StoragePostgres)
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestValidate_UnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORAGE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
}

func TestWeeklyPrices(t *testing.T) {
	cfg := &Config{PriceWeeklyBasic: "500", PriceWeeklyPremium: "0", PriceWeeklyElite: "1200.50"}
	basic, premium, elite, err := cfg.WeeklyPrices()
	require.NoError(t, err)
	assert.Equal(t, "500", basic.String())
	assert.True(t, premium.IsZero())
	assert.Equal(t, "1200.5", elite.String())

	cfg.PriceWeeklyBasic = "-1"
	_, _, _, err = cfg.WeeklyPrices()
	require.Error(t, err)

	cfg.PriceWeeklyBasic = "499.999"
	_, _, _, err = cfg.WeeklyPrices()
	require.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "n", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", cfg.DatabaseDSN())
}
