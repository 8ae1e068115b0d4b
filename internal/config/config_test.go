package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.Mpesa.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Mpesa.SettleDelay)
	assert.Empty(t, cfg.RabbitMQ.URL)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("APP_PORT", ":9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "host=localhost user=duka dbname=duka")
	t.Setenv("MPESA_SETTLE_DELAY", "250ms")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Mpesa.SettleDelay)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duka.yaml")
	require.NoError(t, os.WriteFile(path, []byte("MPESA_SHORTCODE: \"600000\"\nADMIN_EMAIL: admin@duka.test\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADMIN_EMAIL", "ops@duka.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "600000", cfg.Mpesa.ShortCode)
	// Environment wins over the file.
	assert.Equal(t, "ops@duka.test", cfg.Auth.AdminEmail)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MPESA_TIMEOUT", "0s")
	_, err = Load()
	assert.Error(t, err)
}
