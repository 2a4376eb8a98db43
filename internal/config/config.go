package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/PratikDhanave/invite-rsvp-service/internal/models"
)

const (
	EnvDevelopment = "development"

	// MinSecretLength is the shortest accepted token signing secret.
	MinSecretLength = 32

	// DevTokenSecret is used only when app.env is development and
	// token.allow_insecure_dev_secret is set.
	DevTokenSecret = "insecure-development-secret-do-not-use-in-prod"
)

// Config contains runtime configuration required by the service.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Token     TokenConfig     `mapstructure:"token"`
	Admin     AdminConfig     `mapstructure:"admin"`
	HostAuth  HostAuthConfig  `mapstructure:"host_auth"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Log       LogConfig       `mapstructure:"log"`
	Seed      SeedConfig      `mapstructure:"seed"`

	// InsecureDevSecret is set by Validate when the dev secret fallback
	// was applied, so the caller can warn about it.
	InsecureDevSecret bool `mapstructure:"-"`
}

type AppConfig struct {
	Env     string `mapstructure:"env"`
	BaseURL string `mapstructure:"base_url"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // postgres | memory
}

type DBConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig is optional. Without an address rate limiting is disabled.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type TokenConfig struct {
	Secret                 string        `mapstructure:"secret"`
	DefaultTTL             time.Duration `mapstructure:"default_ttl"`
	AllowInsecureDevSecret bool          `mapstructure:"allow_insecure_dev_secret"`
}

// AdminConfig guards the legacy /admin routes. Password may be a bcrypt hash.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type HostAuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	Issuer     string `mapstructure:"issuer"`
	CookieName string `mapstructure:"cookie_name"`
	// APIKeys format: "host1:key1,host2:key2"
	APIKeys string `mapstructure:"api_keys"`
}

type WhatsAppConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	DataDir            string `mapstructure:"data_dir"`
	DefaultCountryCode string `mapstructure:"default_country_code"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SeedConfig struct {
	Events []SeedEvent `mapstructure:"events"`
}

// SeedEvent is an event declared in configuration together with its roster.
type SeedEvent struct {
	ID                  string      `mapstructure:"id"`
	OwnerID             string      `mapstructure:"owner_id"`
	Type                string      `mapstructure:"type"`
	Title               string      `mapstructure:"title"`
	DefaultMaxAttendees int         `mapstructure:"default_max_attendees"`
	Status              string      `mapstructure:"status"`
	Guests              []SeedGuest `mapstructure:"guests"`
}

type SeedGuest struct {
	ID                  string `mapstructure:"id"`
	DisplayName         string `mapstructure:"display_name"`
	MaxAllowedAttendees int    `mapstructure:"max_allowed_attendees"`
	Phone               string `mapstructure:"phone"`
}

// Models converts the seed section into store rows.
func (s SeedConfig) Models() ([]models.Event, []models.Guest) {
	events := make([]models.Event, 0, len(s.Events))
	var guests []models.Guest
	for _, e := range s.Events {
		status := models.EventStatus(e.Status)
		if status == "" {
			status = models.EventPublished
		}
		events = append(events, models.Event{
			ID:                  e.ID,
			OwnerID:             e.OwnerID,
			Type:                e.Type,
			Title:               e.Title,
			DefaultMaxAttendees: e.DefaultMaxAttendees,
			Status:              status,
		})
		for _, g := range e.Guests {
			guests = append(guests, models.Guest{
				ID:                  g.ID,
				EventID:             e.ID,
				DisplayName:         g.DisplayName,
				MaxAllowedAttendees: g.MaxAllowedAttendees,
				Phone:               g.Phone,
			})
		}
	}
	return events, guests
}

// Flags registers the command-line flags Load understands.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
}

// Load reads configuration with priority env > config file > defaults.
// Env keys use the RSVP_ prefix with dots replaced by underscores,
// e.g. RSVP_TOKEN_SECRET. DB_URL is also accepted for db.url.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	path := ""
	if fs != nil {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RSVP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("db.url", "RSVP_DB_URL", "DB_URL"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.base_url", "http://localhost:8080")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("db.url", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("token.secret", "")
	v.SetDefault("token.default_ttl", "0s")
	v.SetDefault("token.allow_insecure_dev_secret", false)

	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")

	v.SetDefault("host_auth.jwt_secret", "")
	v.SetDefault("host_auth.issuer", "rsvp-service")
	v.SetDefault("host_auth.cookie_name", "rsvp_session")
	v.SetDefault("host_auth.api_keys", "")

	v.SetDefault("whatsapp.enabled", false)
	v.SetDefault("whatsapp.data_dir", "./data/whatsapp")
	v.SetDefault("whatsapp.default_country_code", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks values that would make the service unsafe or unable
// to start. It may fill in the development token secret.
func (c *Config) Validate() error {
	dev := c.App.Env == EnvDevelopment

	switch {
	case len(c.Token.Secret) >= MinSecretLength:
	case dev && c.Token.AllowInsecureDevSecret:
		c.Token.Secret = DevTokenSecret
		c.InsecureDevSecret = true
	case c.Token.Secret == "":
		return errors.New("token.secret required")
	default:
		return fmt.Errorf("token.secret must be at least %d bytes", MinSecretLength)
	}

	switch c.Store.Driver {
	case "postgres":
		if strings.TrimSpace(c.DB.URL) == "" {
			return errors.New("db.url required for the postgres store")
		}
	case "memory":
		if !dev {
			return errors.New("memory store is only allowed when app.env is development")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if c.Token.DefaultTTL < 0 {
		return errors.New("token.default_ttl must not be negative")
	}
	if _, err := ParseAPIKeys(c.HostAuth.APIKeys); err != nil {
		return err
	}
	if c.HostAuth.JWTSecret != "" && len(c.HostAuth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("host_auth.jwt_secret must be at least %d bytes", MinSecretLength)
	}
	return nil
}

// ParseAPIKeys parses "host1:key1,host2:key2" into apiKey -> hostID.
func ParseAPIKeys(raw string) (map[string]string, error) {
	apiKeys := map[string]string{}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apiKeys, nil
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errors.New(`host_auth.api_keys must be "host:key,host:key"`)
		}
		host := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if host == "" || key == "" {
			return nil, errors.New(`host_auth.api_keys must be "host:key,host:key"`)
		}
		apiKeys[key] = host
	}
	return apiKeys, nil
}
