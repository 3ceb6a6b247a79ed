package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultServerAddress    = ":8090"
	DefaultFileBaseDir      = "./data/uploads"
	DefaultSessionTTL       = 2 * time.Hour
	DefaultMaxUploadMB      = 10
	DefaultProvider         = "gemini"
	DefaultExpiredInterval  = 5 * time.Minute
	DefaultStaleInterval    = 30 * time.Minute
	DefaultStaleAge         = 24 * time.Hour
	providerAPIKeyEnvPrefix = "REPHRASE_"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Cleanup     CleanupConfig             `json:"cleanup"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress         string `json:"server_address"`
	FileBaseDir           string `json:"file_base_dir"`
	SessionTTLMinutes     int    `json:"session_ttl_minutes"`
	MaxUploadMB           int    `json:"max_upload_mb"`
	MaxConcurrentRewrites int    `json:"max_concurrent_rewrites"`
	Provider              string `json:"provider"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// CleanupConfig drives the background sweeps.
type CleanupConfig struct {
	ExpiredIntervalMinutes int `json:"expired_interval_minutes"`
	StaleIntervalMinutes   int `json:"stale_interval_minutes"`
	StaleAgeHours          int `json:"stale_age_hours"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	sqliteCfg, ok := cfg.Databases["sqlite3"]
	if ok {
		if sqliteCfg.DSN == "" {
			return nil, fmt.Errorf("databases.sqlite3.dsn must be configured")
		}
		sqliteCfg.DSN = resolveSQLitePath(sqliteCfg.DSN, filepath.Dir(absPath))
		cfg.Databases["sqlite3"] = sqliteCfg
	}

	if _, ok := cfg.Providers[cfg.BasicConfig.Provider]; !ok {
		return nil, fmt.Errorf("provider %s not configured", cfg.BasicConfig.Provider)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.FileBaseDir == "" {
		c.BasicConfig.FileBaseDir = DefaultFileBaseDir
	}
	if c.BasicConfig.SessionTTLMinutes <= 0 {
		c.BasicConfig.SessionTTLMinutes = int(DefaultSessionTTL / time.Minute)
	}
	if c.BasicConfig.MaxUploadMB <= 0 {
		c.BasicConfig.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.BasicConfig.MaxConcurrentRewrites < 0 {
		c.BasicConfig.MaxConcurrentRewrites = 0
	}
	if c.BasicConfig.Provider == "" {
		c.BasicConfig.Provider = DefaultProvider
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "127.0.0.1"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Cleanup.ExpiredIntervalMinutes <= 0 {
		c.Cleanup.ExpiredIntervalMinutes = int(DefaultExpiredInterval / time.Minute)
	}
	if c.Cleanup.StaleIntervalMinutes <= 0 {
		c.Cleanup.StaleIntervalMinutes = int(DefaultStaleInterval / time.Minute)
	}
	if c.Cleanup.StaleAgeHours <= 0 {
		c.Cleanup.StaleAgeHours = int(DefaultStaleAge / time.Hour)
	}
}

// applyEnv lets REPHRASE_<PROVIDER>_API_KEY override the configured key.
func (c *Config) applyEnv() {
	for name, prov := range c.Providers {
		key := providerAPIKeyEnvPrefix + strings.ToUpper(name) + "_API_KEY"
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			prov.APIKey = v
			c.Providers[name] = prov
		}
	}
}

func resolveSQLitePath(dsn, baseDir string) string {
	if strings.Contains(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(baseDir, dsn)
}

// SessionTTL is the lifetime of sessions and uploaded files.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.BasicConfig.SessionTTLMinutes) * time.Minute
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.BasicConfig.MaxUploadMB) << 20
}

func (c *Config) ExpiredInterval() time.Duration {
	return time.Duration(c.Cleanup.ExpiredIntervalMinutes) * time.Minute
}

func (c *Config) StaleInterval() time.Duration {
	return time.Duration(c.Cleanup.StaleIntervalMinutes) * time.Minute
}

func (c *Config) StaleAge() time.Duration {
	return time.Duration(c.Cleanup.StaleAgeHours) * time.Hour
}
