package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func flagsFor(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: development
store:
  driver: memory
token:
  secret: file-secret-that-is-long-enough-123456
  default_ttl: 72h
rate_limit:
  requests: 5
seed:
  events:
    - id: boda
      owner_id: host-1
      title: Boda Ana & Luis
      default_max_attendees: 2
      guests:
        - id: g-1
          display_name: Familia Ruiz
          max_allowed_attendees: 4
`), 0o600))

	t.Setenv("RSVP_TOKEN_SECRET", testSecret)
	t.Setenv("RSVP_SERVER_PORT", "9090")

	cfg, err := Load(flagsFor(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, testSecret, cfg.Token.Secret, "env wins over file")
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 72*time.Hour, cfg.Token.DefaultTTL)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "rsvp_session", cfg.HostAuth.CookieName)

	events, guests := cfg.Seed.Models()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventPublished, events[0].Status)
	assert.Equal(t, "host-1", events[0].OwnerID)
	require.Len(t, guests, 1)
	assert.Equal(t, "boda", guests[0].EventID)
	assert.Equal(t, 4, guests[0].MaxAllowedAttendees)
}

func TestLoad_DBURLFallback(t *testing.T) {
	t.Setenv("RSVP_TOKEN_SECRET", testSecret)
	t.Setenv("DB_URL", "postgres://u:p@localhost:5432/rsvp")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/rsvp", cfg.DB.URL)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			App:    AppConfig{Env: "production"},
			Server: ServerConfig{Port: 8080},
			Store:  StoreConfig{Driver: "postgres"},
			DB:     DBConfig{URL: "postgres://x"},
			Token:  TokenConfig{Secret: testSecret},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.Token.Secret = "" }, wantErr: "token.secret required"},
		{name: "short secret", mutate: func(c *Config) { c.Token.Secret = "short" }, wantErr: "at least 32 bytes"},
		{name: "dev flag outside development", mutate: func(c *Config) {
			c.Token.Secret = ""
			c.Token.AllowInsecureDevSecret = true
		}, wantErr: "token.secret required"},
		{name: "postgres without url", mutate: func(c *Config) { c.DB.URL = "" }, wantErr: "db.url required"},
		{name: "memory in production", mutate: func(c *Config) { c.Store.Driver = "memory" }, wantErr: "only allowed"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "unknown store.driver"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }, wantErr: "server.port"},
		{name: "bad api keys", mutate: func(c *Config) { c.HostAuth.APIKeys = "nocolon" }, wantErr: "host_auth.api_keys"},
		{name: "short jwt secret", mutate: func(c *Config) { c.HostAuth.JWTSecret = "short" }, wantErr: "host_auth.jwt_secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DevSecretFallback(t *testing.T) {
	c := Config{
		App:    AppConfig{Env: EnvDevelopment},
		Server: ServerConfig{Port: 8080},
		Store:  StoreConfig{Driver: "memory"},
		Token:  TokenConfig{AllowInsecureDevSecret: true},
	}
	require.NoError(t, c.Validate())
	assert.Equal(t, DevTokenSecret, c.Token.Secret)
	assert.True(t, c.InsecureDevSecret)
}

func TestParseAPIKeys(t *testing.T) {
	keys, err := ParseAPIKeys(" host-1:key-a , host-2:key-b,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"key-a": "host-1", "key-b": "host-2"}, keys)

	keys, err = ParseAPIKeys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = ParseAPIKeys("host-1:")
	assert.Error(t, err)
}
