package authgate

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvConfig is the environment-backed Config implementation. Route paths and
// the admin allow-list are build-time configuration, not runtime data.
type EnvConfig struct {
	SigningKey     string
	LoginPath      string
	AdminPrefix    string
	AdminHome      string
	DashboardPath  string
	LandingPath    string
	AdminEmails    []string
	OAuthRedirect  string
	SignUpRedirect string
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig reads configuration from the environment, optionally loading
// .env files first. Missing files are not an error; a deployed process gets
// its environment from the platform.
func LoadConfig(files ...string) *EnvConfig {
	if len(files) > 0 {
		_ = godotenv.Load(files...)
	} else {
		_ = godotenv.Load()
	}

	return &EnvConfig{
		SigningKey:     os.Getenv("AUTHGATE_SIGNING_KEY"),
		LoginPath:      envOr("AUTHGATE_LOGIN_PATH", "/login"),
		AdminPrefix:    envOr("AUTHGATE_ADMIN_PREFIX", "/admin"),
		AdminHome:      envOr("AUTHGATE_ADMIN_HOME", "/admin/dashboard"),
		DashboardPath:  envOr("AUTHGATE_DASHBOARD_PATH", "/dashboard"),
		LandingPath:    envOr("AUTHGATE_LANDING_PATH", "/"),
		AdminEmails:    splitList(os.Getenv("AUTHGATE_ADMIN_EMAILS")),
		OAuthRedirect:  os.Getenv("AUTHGATE_OAUTH_REDIRECT"),
		SignUpRedirect: os.Getenv("AUTHGATE_SIGNUP_REDIRECT"),
	}
}

func (c *EnvConfig) GetSigningKey() string      { return c.SigningKey }
func (c *EnvConfig) GetLoginPath() string       { return c.LoginPath }
func (c *EnvConfig) GetAdminPathPrefix() string { return c.AdminPrefix }
func (c *EnvConfig) GetAdminHomePath() string   { return c.AdminHome }
func (c *EnvConfig) GetDashboardPath() string   { return c.DashboardPath }
func (c *EnvConfig) GetLandingPath() string     { return c.LandingPath }
func (c *EnvConfig) GetAdminEmails() []string   { return c.AdminEmails }
func (c *EnvConfig) GetOAuthRedirect() string   { return c.OAuthRedirect }
func (c *EnvConfig) GetSignUpRedirect() string  { return c.SignUpRedirect }

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		// allow-list entries are compared byte-for-byte; we only strip the
		// separators' surrounding whitespace, never the address itself
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
