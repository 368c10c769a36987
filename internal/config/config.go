// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Site        SiteConfig        `mapstructure:"site"`
	Environment EnvironmentConfig `mapstructure:"environment"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Crawlers    CrawlersConfig    `mapstructure:"crawlers"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Auth        AuthConfig        `mapstructure:"auth"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int   `mapstructure:"port"`
	RequestTimeoutSeconds int   `mapstructure:"request_timeout_seconds"`
	MaxBodyBytes          int64 `mapstructure:"max_body_bytes"`
}

// SiteConfig describes the public site that article links point at.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Name          string `mapstructure:"name"`
	Locale        string `mapstructure:"locale"`
	FallbackImage string `mapstructure:"fallback_image"`
}

// EnvironmentConfig controls deployment-mode behavior such as error detail exposure.
type EnvironmentConfig struct {
	Name            string `mapstructure:"name"`
	ExposeInternals bool   `mapstructure:"expose_internals"`
}

// CacheConfig bounds the read-through response cache.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
	MaxEntries int `mapstructure:"max_entries"`
}

// CrawlersConfig points at the versioned crawler signature set.
type CrawlersConfig struct {
	File       string   `mapstructure:"file"`
	Version    string   `mapstructure:"version"`
	Signatures []string `mapstructure:"signatures"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// StorageConfig selects and configures the image blob backend.
type StorageConfig struct {
	Backend        string      `mapstructure:"backend"`
	Bucket         string      `mapstructure:"bucket"`
	Prefix         string      `mapstructure:"prefix"`
	PublicBaseURL  string      `mapstructure:"public_base_url"`
	MaxUploadBytes int64       `mapstructure:"max_upload_bytes"`
	Local          LocalConfig `mapstructure:"local"`
	S3             S3Config    `mapstructure:"s3"`
}

// LocalConfig captures the parameters for the local filesystem blob store.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// S3Config configures an S3-compatible endpoint (MinIO, Supabase Storage).
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// PubSubConfig holds metadata for article lifecycle notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// AuthConfig configures the delegated identity provider.
type AuthConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	SupabaseURL    string `mapstructure:"supabase_url"`
	AnonKey        string `mapstructure:"anon_key"`
	JWTSecret      string `mapstructure:"jwt_secret"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxAge         int      `mapstructure:"max_age"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig enables OTLP trace export.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MAGAZINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Site.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Site.BaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultSignatures is the crawler signature set used when no file is configured.
var DefaultSignatures = []string{
	"facebookexternalhit",
	"WhatsApp",
	"Twitterbot",
	"LinkedInBot",
	"Pinterest",
	"Slackbot",
	"TelegramBot",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("site.base_url", "http://localhost:3001")
	v.SetDefault("site.name", "Havaasa")
	v.SetDefault("site.locale", "dv_MV")
	v.SetDefault("site.fallback_image", "/og-image.png")
	v.SetDefault("environment.name", "production")
	v.SetDefault("environment.expose_internals", false)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("crawlers.version", "builtin")
	v.SetDefault("crawlers.signatures", DefaultSignatures)
	v.SetDefault("database.max_conns", 8)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "articles")
	v.SetDefault("storage.max_upload_bytes", 5<<20)
	v.SetDefault("storage.local.base_dir", "data/uploads")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.timeout_seconds", 10)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("cors.max_age", 86400)
	v.SetDefault("logging.development", false)
	v.SetDefault("telemetry.service_name", "magazine-cms")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("site.base_url must be an absolute http(s) URL, got %q", c.Site.BaseURL)
	}
	if c.Site.Name == "" {
		return fmt.Errorf("site.name is required")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be > 0")
	}
	if c.Crawlers.File == "" && len(c.Crawlers.Signatures) == 0 {
		return fmt.Errorf("crawlers.signatures must not be empty when crawlers.file is unset")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage.max_upload_bytes must be > 0")
	}
	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	case "s3":
		if c.Storage.Bucket == "" || c.Storage.S3.Endpoint == "" {
			return fmt.Errorf("storage.bucket and storage.s3.endpoint are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Auth.Enabled && c.Auth.SupabaseURL == "" {
		return fmt.Errorf("auth.supabase_url must be set when auth is enabled")
	}
	if c.Auth.Enabled && c.Auth.AnonKey == "" {
		return fmt.Errorf("auth.anon_key must be set when auth is enabled")
	}
	return nil
}

// CacheTTL returns the response cache entry lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// RequestTimeout returns the per-request handler budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// AuthTimeout returns the identity provider call budget.
func (c Config) AuthTimeout() time.Duration {
	if c.Auth.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Auth.TimeoutSeconds) * time.Second
}
