package app

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv removes keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	unsetEnv(t, "APP_ENV", "APP_ADDR", "APP_URL", "MAIL_DRIVER", "SESSION_COOKIE_NAME",
		"SESSION_TTL", "VERIFICATION_CODE_TTL", "RESET_TOKEN_TTL", "WORKER_METRICS_ADDR")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "http://localhost:3000", cfg.AppURL)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 2*time.Minute, cfg.VerificationCodeTTL)
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL)
	assert.Equal(t, "session", cfg.SessionCookieName)
	assert.Equal(t, MailDriverQueue, cfg.MailDriver)
	assert.Equal(t, ":9091", cfg.WorkerMetricsAddr)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	unsetEnv(t, "VERIFICATION_CODE_TTL", "RESET_TOKEN_TTL", "SESSION_COOKIE_NAME")
	t.Setenv("APP_ENV", "production")
	t.Setenv("MAIL_DRIVER", "smtp")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("DB_AUTO_MIGRATE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, MailDriverSMTP, cfg.MailDriver)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.DBAutoMigrate)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown mail driver":   {"MAIL_DRIVER": "carrier-pigeon"},
		"zero session ttl":      {"SESSION_TTL": "0s"},
		"negative code ttl":     {"VERIFICATION_CODE_TTL": "-1m"},
		"malformed reset ttl":   {"RESET_TOKEN_TTL": "soon"},
		"non numeric smtp port": {"SMTP_PORT": "twenty-five"},
		"empty cookie name":     {"SESSION_COOKIE_NAME": ""},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			unsetEnv(t, "SESSION_TTL", "VERIFICATION_CODE_TTL", "RESET_TOKEN_TTL", "SESSION_COOKIE_NAME", "SMTP_PORT")
			t.Setenv("MAIL_DRIVER", "log")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestNilConfigIsNotProduction(t *testing.T) {
	var cfg *Config
	assert.False(t, cfg.IsProduction())
}
