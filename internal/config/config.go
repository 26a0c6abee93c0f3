// Package config loads repoload settings from a YAML file, a .env file and
// REPOLOAD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/inovacc/repoload/internal/application"
	"github.com/inovacc/repoload/internal/resolver"
	"github.com/inovacc/repoload/internal/store"
)

// Config holds all configuration for the application.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects the catalog backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// GitHubConfig configures the hosting API.
type GitHubConfig struct {
	Token string `mapstructure:"token"`

	// Host is the accepted domain for submitted URLs.
	Host string `mapstructure:"host"`

	// APIURL points at a GitHub Enterprise API, empty for github.com.
	APIURL string `mapstructure:"api_url"`

	PerPage     int  `mapstructure:"per_page"`
	VerifyRepos bool `mapstructure:"verify_repos"`
}

// ResolverConfig is the retry policy for org enumeration.
type ResolverConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	EmptyIsNotFound bool          `mapstructure:"empty_is_not_found"`
	EmptyAttempts   int           `mapstructure:"empty_attempts"`
	EmptyBackoff    time.Duration `mapstructure:"empty_backoff"`
}

// ServerConfig is the web API listen address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	policy := resolver.DefaultPolicy()

	return Config{
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			Path:   application.DefaultDatabasePath(store.DriverSQLite),
		},
		GitHub: GitHubConfig{
			Host:        "github.com",
			PerPage:     resolver.DefaultPerPage,
			VerifyRepos: true,
		},
		Resolver: ResolverConfig{
			MaxAttempts:     policy.MaxAttempts,
			InitialBackoff:  policy.InitialBackoff,
			MaxBackoff:      policy.MaxBackoff,
			EmptyIsNotFound: policy.EmptyIsNotFound,
			EmptyAttempts:   policy.EmptyAttempts,
			EmptyBackoff:    policy.EmptyBackoff,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration. path names an explicit config file; when
// empty, config.yaml is looked up in the application directory and its
// absence is not an error. A .env file in the working directory is loaded
// first and never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(application.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir, err := application.GetApplicationDirectory(); err == nil {
			v.AddConfigPath(dir)
		}

		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// a bolt catalog gets its own default file
	if cfg.Database.Driver == store.DriverBolt && !v.IsSet("database.path") {
		cfg.Database.Path = application.DefaultDatabasePath(store.DriverBolt)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("github.token", d.GitHub.Token)
	v.SetDefault("github.host", d.GitHub.Host)
	v.SetDefault("github.api_url", d.GitHub.APIURL)
	v.SetDefault("github.per_page", d.GitHub.PerPage)
	v.SetDefault("github.verify_repos", d.GitHub.VerifyRepos)
	v.SetDefault("resolver.max_attempts", d.Resolver.MaxAttempts)
	v.SetDefault("resolver.initial_backoff", d.Resolver.InitialBackoff)
	v.SetDefault("resolver.max_backoff", d.Resolver.MaxBackoff)
	v.SetDefault("resolver.empty_is_not_found", d.Resolver.EmptyIsNotFound)
	v.SetDefault("resolver.empty_attempts", d.Resolver.EmptyAttempts)
	v.SetDefault("resolver.empty_backoff", d.Resolver.EmptyBackoff)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case store.DriverSQLite, store.DriverBolt:
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}

	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	if c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100 {
		return fmt.Errorf("github.per_page must be between 1 and 100, got %d", c.GitHub.PerPage)
	}

	if c.Resolver.MaxAttempts < 1 {
		return fmt.Errorf("resolver.max_attempts must be positive, got %d", c.Resolver.MaxAttempts)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// Policy converts the resolver section into a retry policy.
func (c *Config) Policy() resolver.Policy {
	p := resolver.DefaultPolicy()
	p.MaxAttempts = c.Resolver.MaxAttempts
	p.InitialBackoff = c.Resolver.InitialBackoff
	p.MaxBackoff = c.Resolver.MaxBackoff
	p.EmptyIsNotFound = c.Resolver.EmptyIsNotFound
	p.EmptyAttempts = c.Resolver.EmptyAttempts
	p.EmptyBackoff = c.Resolver.EmptyBackoff

	return p
}

// Addr returns the web API listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ConfigPath returns the default config file location.
func ConfigPath() (string, error) {
	dir, err := application.GetApplicationDirectory()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "config.yaml"), nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}

	return level, nil
}

// NewLogger builds the slog logger described by c, writing to w.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if c.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
