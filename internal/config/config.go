package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the console.
type Config struct {
	API     APIConfig
	Poll    PollConfig
	Storage StorageConfig
	Log     LogConfig
	Locale  string
}

type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	CacheTTL   time.Duration
	CacheSize  int
}

type PollConfig struct {
	Interval time.Duration
}

type StorageConfig struct {
	Backend       string // database, keyring, redis, memory
	Encrypt       bool
	DatabaseURL   string
	RedisURL      string
	EncryptionKey string
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

var validBackends = map[string]bool{
	"database": true,
	"keyring":  true,
	"redis":    true,
	"memory":   true,
}

var validLocales = map[string]bool{
	"ru": true,
	"en": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// When GVS_CONFIG names a YAML file, its keys (the same names as the
// environment variables) fill in whatever the environment leaves unset.
func Load() (*Config, error) {
	src, err := newSource(os.Getenv("GVS_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:    strings.TrimRight(src.String("GVS_API_URL", "http://localhost:8080"), "/"),
			Timeout:    src.Duration("API_TIMEOUT", 30*time.Second),
			RetryCount: src.Int("API_RETRY_COUNT", 0),
			CacheTTL:   src.Duration("API_CACHE_TTL", 60*time.Second),
			CacheSize:  src.Int("API_CACHE_SIZE", 256),
		},
		Poll: PollConfig{
			Interval: src.Duration("POLL_INTERVAL", 5*time.Second),
		},
		Storage: StorageConfig{
			Backend:       src.String("STORAGE_BACKEND", "database"),
			Encrypt:       src.Bool("STORAGE_ENCRYPT", true),
			DatabaseURL:   src.String("DATABASE_URL", ""),
			RedisURL:      src.String("REDIS_URL", ""),
			EncryptionKey: src.String("ENCRYPTION_KEY", ""),
		},
		Log: LogConfig{
			Level:  src.String("LOG_LEVEL", "info"),
			Format: src.String("LOG_FORMAT", "text"),
		},
		Locale: src.String("LOCALE", "ru"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("GVS_API_URL must start with http:// or https://, got %q", c.API.BaseURL)
	}
	if c.API.RetryCount < 0 {
		return fmt.Errorf("API_RETRY_COUNT must not be negative, got %d", c.API.RetryCount)
	}
	if c.API.CacheSize <= 0 {
		return fmt.Errorf("API_CACHE_SIZE must be positive, got %d", c.API.CacheSize)
	}

	// cron's Every schedule has one-second resolution
	if c.Poll.Interval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s, got %s", c.Poll.Interval)
	}

	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("STORAGE_BACKEND must be one of database, keyring, redis, memory; got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "redis" && c.Storage.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when STORAGE_BACKEND is redis")
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}

	if !validLocales[c.Locale] {
		return fmt.Errorf("LOCALE must be ru or en, got %q", c.Locale)
	}

	return nil
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	src := &source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &src.file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return src, nil
}

func (s *source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s *source) String(key, defaultVal string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *source) Int(key string, defaultVal int) int {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s *source) Bool(key string, defaultVal bool) bool {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func (s *source) Duration(key string, defaultVal time.Duration) time.Duration {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
