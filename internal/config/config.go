package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const keychainService = "fixhive"

type Config struct {
	Remote      RemoteConfig
	Cache       CacheConfig
	Contributor ContributorConfig
	Storage     StorageConfig
	Log         LogConfig
	Sync        SyncConfig
	LLM         LLMConfig
	Ollama      OllamaConfig
	Anthropic   AnthropicConfig
	Server      ServerConfig
}

type RemoteConfig struct {
	URL         string
	Key         string
	DatabaseURL string
	RateLimit   float64
	Timeout     string
}

type CacheConfig struct {
	RedisURL string
	TTL      string
}

type ContributorConfig struct {
	ID string
}

type StorageConfig struct {
	DBPath string
}

type LogConfig struct {
	Level string
}

type SyncConfig struct {
	Interval  string
	BatchSize int
}

type LLMConfig struct {
	Provider string
	Model    string
}

type OllamaConfig struct {
	BaseURL string
}

type AnthropicConfig struct {
	APIKey string
}

type ServerConfig struct {
	Port int
}

func defaults() Config {
	return Config{
		Remote: RemoteConfig{
			RateLimit: 10,
			Timeout:   "10s",
		},
		Cache: CacheConfig{
			TTL: "5m",
		},
		Storage: StorageConfig{
			DBPath: "~/.fixhive/data.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Sync: SyncConfig{
			Interval:  "30s",
			BatchSize: 50,
		},
		LLM: LLMConfig{
			Provider: "auto",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Server: ServerConfig{
			Port: 4747,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.fixhive.app) and secrets
// fall back to macOS Keychain (service: fixhive).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/fixhive/config.json
// and secrets fall back to $XDG_DATA_HOME/fixhive/secrets.json.
//
// Environment variables (FIXHIVE_*) override backend values on all platforms.
// A contributor id is generated and persisted on first load.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if cfg.Contributor.ID == "" {
		cfg.Contributor.ID = uuid.NewString()
		if err := b.Set("contributor.id", cfg.Contributor.ID); err != nil {
			return Config{}, fmt.Errorf("persisting contributor id: %w", err)
		}
	}

	path, err := expandHome(cfg.Storage.DBPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Storage.DBPath = path

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applySecrets fills secrets that neither the environment nor the backend
// supplied from the platform keychain.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

// Validate checks the cross-field rules and that every duration parses.
func (c Config) Validate() error {
	var errs []error

	if (c.Remote.URL == "") != (c.Remote.Key == "") {
		errs = append(errs, errors.New("remote.url and remote.key must be set together"))
	}
	if _, err := uuid.Parse(c.Contributor.ID); err != nil {
		errs = append(errs, fmt.Errorf("contributor.id %q is not a UUID", c.Contributor.ID))
	}
	if c.Remote.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("remote.rate_limit must not be negative, got %v", c.Remote.RateLimit))
	}
	if c.Sync.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("sync.batch_size must be positive, got %d", c.Sync.BatchSize))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	for key, v := range map[string]string{
		"remote.timeout": c.Remote.Timeout,
		"cache.ttl":      c.Cache.TTL,
		"sync.interval":  c.Sync.Interval,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
		}
	}
	switch c.LLM.Provider {
	case "auto", "ollama", "anthropic", "none":
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be one of auto, ollama, anthropic, none; got %q", c.LLM.Provider))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// CloudEnabled reports whether a remote backend is configured.
func (c Config) CloudEnabled() bool {
	return c.Remote.DatabaseURL != "" || (c.Remote.URL != "" && c.Remote.Key != "")
}

// RemoteTimeout, CacheTTL and SyncInterval return the parsed durations.
// They assume Validate passed.
func (c Config) RemoteTimeout() time.Duration { return mustDuration(c.Remote.Timeout) }
func (c Config) CacheTTL() time.Duration      { return mustDuration(c.Cache.TTL) }
func (c Config) SyncInterval() time.Duration  { return mustDuration(c.Sync.Interval) }

func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// LogLevel returns the slog level for log.level.
func (c Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", s)
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
