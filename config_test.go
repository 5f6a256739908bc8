package authgate_test

import (
	"testing"

	authgate "github.com/primevalon/go-authgate"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_KEY", "")
	t.Setenv("AUTHGATE_LOGIN_PATH", "")
	t.Setenv("AUTHGATE_ADMIN_PREFIX", "")
	t.Setenv("AUTHGATE_ADMIN_HOME", "")
	t.Setenv("AUTHGATE_DASHBOARD_PATH", "")
	t.Setenv("AUTHGATE_LANDING_PATH", "")
	t.Setenv("AUTHGATE_ADMIN_EMAILS", "")

	cfg := authgate.LoadConfig("testdata/missing.env")

	assert.Equal(t, "/login", cfg.GetLoginPath())
	assert.Equal(t, "/admin", cfg.GetAdminPathPrefix())
	assert.Equal(t, "/admin/dashboard", cfg.GetAdminHomePath())
	assert.Equal(t, "/dashboard", cfg.GetDashboardPath())
	assert.Equal(t, "/", cfg.GetLandingPath())
	assert.Empty(t, cfg.GetAdminEmails())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("AUTHGATE_SIGNING_KEY", "env-signing-key")
	t.Setenv("AUTHGATE_LOGIN_PATH", "/signin")
	t.Setenv("AUTHGATE_ADMIN_PREFIX", "/backoffice")
	t.Setenv("AUTHGATE_ADMIN_HOME", "/backoffice/home")
	t.Setenv("AUTHGATE_ADMIN_EMAILS", "ops@example.com, Founder@Example.com")
	t.Setenv("AUTHGATE_OAUTH_REDIRECT", "https://app.example/auth/callback")

	cfg := authgate.LoadConfig("testdata/missing.env")

	assert.Equal(t, "env-signing-key", cfg.GetSigningKey())
	assert.Equal(t, "/signin", cfg.GetLoginPath())
	assert.Equal(t, "/backoffice", cfg.GetAdminPathPrefix())
	assert.Equal(t, "/backoffice/home", cfg.GetAdminHomePath())
	assert.Equal(t, "https://app.example/auth/callback", cfg.GetOAuthRedirect())

	// list entries keep their exact casing; matching is byte-for-byte
	assert.Equal(t, []string{"ops@example.com", "Founder@Example.com"}, cfg.GetAdminEmails())
}
