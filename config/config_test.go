package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MONGO_DB", "PAGINATION_LIMIT", "PAGINATION_LIMIT_ADMIN", "JWT_TTL_HOURS", "ENVIRONMENT", "NODE_ENV", "JWT_SECRET"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "ecommerce", cfg.Database.Name)
	assert.Equal(t, 8, cfg.Pagination.Limit)
	assert.Equal(t, 10, cfg.Pagination.AdminLimit)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL())
	assert.False(t, cfg.IsProduction())
}

func TestNodeEnvSelectsProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestCORSOriginsList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestMailAPIKeyFollowsProvider(t *testing.T) {
	cfg := &Config{Email: EmailConfig{Provider: "Postmark", SendgridAPIKey: "sg", PostmarkToken: "pm"}}
	assert.Equal(t, "pm", cfg.MailAPIKey())
	cfg.Email.Provider = "log"
	assert.Equal(t, "", cfg.MailAPIKey())
}

func TestTrustedProxiesDefaultToNone(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
}
