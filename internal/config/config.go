// Package config loads runtime configuration. Precedence is environment
// variables (ULTRASOP_ prefix), then the config file at
// ~/.ultrasop/config.yaml, then built-in defaults. DATABASE_URL, when set,
// overrides the individual Postgres fields.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors.
var (
	ErrInvalidPort       = errors.New("server port must be between 1 and 65535")
	ErrMissingAuthSecret = errors.New("auth secret is required to serve the API")
	ErrInvalidDetail     = errors.New("detail level must be preview, full or rich")
	ErrInvalidRateLimit  = errors.New("rate limit must be positive")
)

// Config is the resolved runtime configuration.
type Config struct {
	Server    Server
	Postgres  Postgres
	Local     Local
	Auth      Auth
	Generate  Generate
	RateLimit RateLimit
	Log       Log

	// ProductName appears in exports and the API banner.
	ProductName string
}

type Server struct {
	Host        string
	Port        int
	TrustProxy  bool
	CORSOrigins []string
}

type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Enabled is true when remote persistence is configured. Without it
	// the editor runs purely on the local store.
	Enabled bool
}

type Local struct {
	// Path of the sqlite document file.
	Path string
}

type Auth struct {
	// Secret signs bearer tokens. Required for serving.
	Secret string
}

type Generate struct {
	// Model is the Genkit model name, e.g. "googleai/gemini-2.5-flash".
	Model string
	// Detail is the default verbosity for generated steps.
	Detail string
}

type RateLimit struct {
	// PerMinute caps generation requests per authenticated user.
	PerMinute int
	Burst     int
}

type Log struct {
	Level     string
	JSON      bool
	AddSource bool
}

// Load reads configuration with the standard precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".ultrasop"))
	}

	v.SetEnvPrefix("ULTRASOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		Server: Server{
			Host:        v.GetString("server.host"),
			Port:        v.GetInt("server.port"),
			TrustProxy:  v.GetBool("server.trust_proxy"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
		},
		Postgres: Postgres{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetInt("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Database: v.GetString("postgres.database"),
			SSLMode:  v.GetString("postgres.sslmode"),
			Enabled:  v.GetBool("postgres.enabled"),
		},
		Local: Local{
			Path: v.GetString("local.path"),
		},
		Auth: Auth{
			Secret: v.GetString("auth.secret"),
		},
		Generate: Generate{
			Model:  v.GetString("generate.model"),
			Detail: v.GetString("generate.detail"),
		},
		RateLimit: RateLimit{
			PerMinute: v.GetInt("rate_limit.per_minute"),
			Burst:     v.GetInt("rate_limit.burst"),
		},
		Log: Log{
			Level:     v.GetString("log.level"),
			JSON:      v.GetBool("log.json"),
			AddSource: v.GetBool("log.add_source"),
		},
		ProductName: v.GetString("product_name"),
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		if err := cfg.parseDatabaseURL(dbURL); err != nil {
			return nil, err
		}
	}
	if cfg.Local.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.Local.Path = filepath.Join(home, ".ultrasop", "documents.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "ultrasop")
	v.SetDefault("postgres.database", "ultrasop")
	v.SetDefault("postgres.sslmode", "prefer")
	v.SetDefault("postgres.enabled", false)

	v.SetDefault("generate.model", "googleai/gemini-2.5-flash")
	v.SetDefault("generate.detail", "full")

	v.SetDefault("rate_limit.per_minute", 5)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.add_source", false)

	v.SetDefault("product_name", "UltraSOP")
}

// Validate checks field ranges. Serving has extra requirements checked by
// ValidateServe.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return ErrInvalidPort
	}
	switch c.Generate.Detail {
	case "preview", "full", "rich":
	default:
		return ErrInvalidDetail
	}
	if c.RateLimit.PerMinute < 1 || c.RateLimit.Burst < 1 {
		return ErrInvalidRateLimit
	}
	return nil
}

// ValidateServe checks requirements that only apply to the HTTP server.
func (c *Config) ValidateServe() error {
	if c.Auth.Secret == "" {
		return ErrMissingAuthSecret
	}
	return nil
}

// parseDatabaseURL splits a postgres:// URL into the individual fields and
// marks remote persistence enabled.
func (c *Config) parseDatabaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("parsing DATABASE_URL: unsupported scheme %q", u.Scheme)
	}

	c.Postgres.Host = u.Hostname()
	c.Postgres.Port = 5432
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("parsing DATABASE_URL port: %w", err)
		}
		c.Postgres.Port = port
	}
	if u.User != nil {
		c.Postgres.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Postgres.Password = pw
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		c.Postgres.Database = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.Postgres.SSLMode = mode
	}
	c.Postgres.Enabled = true
	return nil
}

// PostgresURL returns the connection string in URL form, as expected by
// pgxpool and the migration runner.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Postgres.Host, c.Postgres.Port),
		Path:   "/" + c.Postgres.Database,
	}
	if c.Postgres.User != "" {
		if c.Postgres.Password != "" {
			u.User = url.UserPassword(c.Postgres.User, c.Postgres.Password)
		} else {
			u.User = url.User(c.Postgres.User)
		}
	}
	q := url.Values{}
	if c.Postgres.SSLMode != "" {
		q.Set("sslmode", c.Postgres.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
