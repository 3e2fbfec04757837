package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix                 = "MEMEVERSE"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
	defaultCatalogURL         = "https://api.imgflip.com/get_memes"
	defaultCatalogTimeout     = 10
	defaultTrendingLimit      = 10
	defaultStorageDriver      = DriverSQLite
	defaultDatabasePath       = "memeverse.db"
	defaultBadgerPath         = "memeverse-kv"
	defaultMinioBucket        = "memeverse"
	defaultCookieName         = "memeverse_session"
	defaultSessionIssuer      = "memeverse"
	defaultSessionTTLMinutes  = 60
	defaultPageSize           = 12
	defaultAllowedOrigin      = "*"
	defaultCatalogFailures    = 5
	defaultCatalogOpenSeconds = 30
)

// Storage drivers accepted by storage.driver.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMinio  = "minio"
)

// ErrMissingSigningSecret indicates that the server cannot issue sessions.
var ErrMissingSigningSecret = errors.New("session.signing_secret is required")

// AppConfig captures runtime configuration for the feed server and CLI.
type AppConfig struct {
	HTTPAddress    string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string

	CatalogURL            string
	CatalogTimeoutSeconds int
	CatalogFailures       int
	CatalogOpenSeconds    int
	TrendingLimit         int

	StorageDriver string
	DatabasePath  string
	BadgerPath    string
	Minio         MinioConfig

	SessionSigningSecret string
	SessionCookieName    string
	SessionIssuer        string
	SessionTTLMinutes    int

	PageSize int
}

// MinioConfig holds the object storage settings used by the minio driver.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// LoadDotEnv reads KEY=value pairs from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = ".env"
	}
	if _, err := os.Stat(trimmed); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(trimmed)
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.allowed_origins", []string{defaultAllowedOrigin})
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("catalog.url", defaultCatalogURL)
	configViper.SetDefault("catalog.timeout_seconds", defaultCatalogTimeout)
	configViper.SetDefault("catalog.failure_threshold", defaultCatalogFailures)
	configViper.SetDefault("catalog.open_seconds", defaultCatalogOpenSeconds)
	configViper.SetDefault("catalog.trending_limit", defaultTrendingLimit)
	configViper.SetDefault("storage.driver", defaultStorageDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("badger.path", defaultBadgerPath)
	configViper.SetDefault("minio.bucket", defaultMinioBucket)
	configViper.SetDefault("minio.use_ssl", false)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.issuer", defaultSessionIssuer)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTLMinutes)
	configViper.SetDefault("feed.page_size", defaultPageSize)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:           configViper.GetString("http.address"),
		AllowedOrigins:        normalizeList(configViper.GetStringSlice("http.allowed_origins")),
		LogLevel:              configViper.GetString("log.level"),
		LogFormat:             strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		CatalogURL:            strings.TrimSpace(configViper.GetString("catalog.url")),
		CatalogTimeoutSeconds: configViper.GetInt("catalog.timeout_seconds"),
		CatalogFailures:       configViper.GetInt("catalog.failure_threshold"),
		CatalogOpenSeconds:    configViper.GetInt("catalog.open_seconds"),
		TrendingLimit:         configViper.GetInt("catalog.trending_limit"),
		StorageDriver:         strings.ToLower(strings.TrimSpace(configViper.GetString("storage.driver"))),
		DatabasePath:          configViper.GetString("database.path"),
		BadgerPath:            configViper.GetString("badger.path"),
		Minio: MinioConfig{
			Endpoint:  configViper.GetString("minio.endpoint"),
			AccessKey: configViper.GetString("minio.access_key"),
			SecretKey: configViper.GetString("minio.secret_key"),
			Bucket:    configViper.GetString("minio.bucket"),
			Region:    configViper.GetString("minio.region"),
			UseSSL:    configViper.GetBool("minio.use_ssl"),
		},
		SessionSigningSecret: configViper.GetString("session.signing_secret"),
		SessionCookieName:    configViper.GetString("session.cookie_name"),
		SessionIssuer:        configViper.GetString("session.issuer"),
		SessionTTLMinutes:    configViper.GetInt("session.ttl_minutes"),
		PageSize:             configViper.GetInt("feed.page_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// RequireSessionSecret reports whether the configuration can issue session tokens.
func (c AppConfig) RequireSessionSecret() error {
	if strings.TrimSpace(c.SessionSigningSecret) == "" {
		return ErrMissingSigningSecret
	}
	return nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.CatalogURL) == "" {
		return fmt.Errorf("catalog.url is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.LogFormat)
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DriverBadger:
		if strings.TrimSpace(c.BadgerPath) == "" {
			return fmt.Errorf("badger.path is required")
		}
	case DriverMinio:
		if strings.TrimSpace(c.Minio.Endpoint) == "" {
			return fmt.Errorf("minio.endpoint is required")
		}
		if strings.TrimSpace(c.Minio.Bucket) == "" {
			return fmt.Errorf("minio.bucket is required")
		}
	default:
		return fmt.Errorf("storage.driver must be one of memory, sqlite, badger, minio, got %q", c.StorageDriver)
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	return nil
}

func normalizeList(values []string) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				normalized = append(normalized, trimmed)
			}
		}
	}
	return normalized
}
