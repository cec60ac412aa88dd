// Package config loads the funnel server configuration from a YAML file and
// FUNNEL_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigFile = "FUNNEL_CONFIG_FILE"

	defaultHTTPAddr    = ":8080"
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultPacing      = time.Second
	defaultStorage     = StorageMemory
	defaultDefinitions = "./funnels"
	defaultLockTTL     = 30 * time.Second
	defaultSQLitePath  = "funnel.db"
	defaultSessionDir  = ".funnel/sessions"
	defaultRedisAddr   = "localhost:6379"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Definition sources.
const (
	DefinitionsFile = "file"
	DefinitionsSQL  = "sql"
)

type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MessagePacing is the pause after a MESSAGE node before the funnel moves on.
	MessagePacing time.Duration `yaml:"message_pacing"`

	Storage     StorageConfig     `yaml:"storage"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	Discord     DiscordConfig     `yaml:"discord"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Payments    PaymentsConfig    `yaml:"payments"`

	BotUsername string `yaml:"bot_username"`
	// BotLinkFormat overrides the link template; see funnel.DefaultLinkFormat.
	BotLinkFormat string        `yaml:"bot_link_format"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
}

type StorageConfig struct {
	Backend   string `yaml:"backend"`
	DSN       string `yaml:"dsn"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	// RedisPassword is only read from the environment.
	RedisPassword string `yaml:"-"`
}

type DefinitionsConfig struct {
	Source string `yaml:"source"`
	Dir    string `yaml:"dir"`
}

type DiscordConfig struct {
	Token string `yaml:"-"`
}

type WebhookConfig struct {
	URL string `yaml:"url"`
}

type PaymentsConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Default returns the configuration used when no file or environment
// variable says otherwise.
func Default() Config {
	return Config{
		HTTPAddr:      defaultHTTPAddr,
		LogLevel:      defaultLogLevel,
		LogFormat:     defaultLogFormat,
		MessagePacing: defaultPacing,
		Storage: StorageConfig{
			Backend:   defaultStorage,
			RedisAddr: defaultRedisAddr,
		},
		Definitions: DefinitionsConfig{
			Source: DefinitionsFile,
			Dir:    defaultDefinitions,
		},
		LockTTL: defaultLockTTL,
	}
}

// Load reads path (or FUNNEL_CONFIG_FILE when path is empty), applies the
// environment and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from FUNNEL_* variables. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s is invalid: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("FUNNEL_HTTP_ADDR", &c.HTTPAddr)
	str("FUNNEL_LOG_LEVEL", &c.LogLevel)
	str("FUNNEL_LOG_FORMAT", &c.LogFormat)
	str("FUNNEL_STORAGE", &c.Storage.Backend)
	str("FUNNEL_DSN", &c.Storage.DSN)
	str("FUNNEL_REDIS_ADDR", &c.Storage.RedisAddr)
	str("FUNNEL_REDIS_PASSWORD", &c.Storage.RedisPassword)
	str("FUNNEL_DEFINITIONS", &c.Definitions.Source)
	str("FUNNEL_DEFINITIONS_DIR", &c.Definitions.Dir)
	str("FUNNEL_WEBHOOK_URL", &c.Webhook.URL)
	str("FUNNEL_PAYMENTS_BASE_URL", &c.Payments.BaseURL)
	str("FUNNEL_BOT_USERNAME", &c.BotUsername)
	str("FUNNEL_BOT_LINK_FORMAT", &c.BotLinkFormat)
	str("DISCORD_BOT_TOKEN", &c.Discord.Token)

	if err := dur("FUNNEL_MESSAGE_PACING", &c.MessagePacing); err != nil {
		return err
	}
	return dur("FUNNEL_LOCK_TTL", &c.LockTTL)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("http_addr must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.MessagePacing < 0 {
		return fmt.Errorf("message_pacing must not be negative")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock_ttl must be positive")
	}
	if c.BotLinkFormat != "" && !strings.Contains(c.BotLinkFormat, "{funnel}") {
		return fmt.Errorf("bot_link_format must contain {funnel}")
	}

	switch c.Storage.Backend {
	case StorageMemory, StorageFile, StorageSQLite, StorageRedis:
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Definitions.Source {
	case DefinitionsFile:
		if strings.TrimSpace(c.Definitions.Dir) == "" {
			return fmt.Errorf("definitions.dir is required for file definitions")
		}
	case DefinitionsSQL:
		if c.Storage.Backend != StorageSQLite && c.Storage.Backend != StoragePostgres {
			return fmt.Errorf("sql definitions need a sqlite or postgres storage backend")
		}
	default:
		return fmt.Errorf("unknown definitions source %q", c.Definitions.Source)
	}

	for name, raw := range map[string]string{
		"webhook.url":       c.Webhook.URL,
		"payments.base_url": c.Payments.BaseURL,
	} {
		if raw == "" {
			continue
		}
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// SQLDSN returns the DSN for the SQL backends, defaulting sqlite to a local file.
func (c Config) SQLDSN() string {
	if c.Storage.DSN == "" && c.Storage.Backend == StorageSQLite {
		return defaultSQLitePath
	}
	return c.Storage.DSN
}

// SessionDir is where the file backend keeps sessions. The DSN doubles as
// the directory.
func (c Config) SessionDir() string {
	if c.Storage.DSN == "" {
		return defaultSessionDir
	}
	return c.Storage.DSN
}

func validateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("url must include scheme and host")
	}
	return nil
}
