package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain map[string]string

func (m mockKeychain) Get(service, account string) (string, error) {
	if service != keychainService {
		return "", errors.New("unknown service")
	}
	v, ok := m[account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

// memBackend is an in-memory ConfigBackend.
type memBackend map[string]string

func (m memBackend) Get(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memBackend) Set(key, val string) error { m[key] = val; return nil }

// clearEnv blanks every FIXHIVE_* override so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
	t.Setenv("FIXHIVE_API_TOKEN", "")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	b := memBackend{}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4747 {
		t.Errorf("Server.Port = %d, want 4747", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.LLM.Provider != "auto" {
		t.Errorf("LLM.Provider = %q, want auto", cfg.LLM.Provider)
	}
	if cfg.Remote.RateLimit != 10 {
		t.Errorf("Remote.RateLimit = %v, want 10", cfg.Remote.RateLimit)
	}
	if cfg.Sync.BatchSize != 50 || cfg.SyncInterval() != 30*time.Second {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if cfg.RemoteTimeout() != 10*time.Second || cfg.CacheTTL() != 5*time.Minute {
		t.Errorf("durations = %v, %v", cfg.RemoteTimeout(), cfg.CacheTTL())
	}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel())
	}
	if cfg.CloudEnabled() {
		t.Error("CloudEnabled = true with no remote configured")
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".fixhive", "data.db"); cfg.Storage.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.Storage.DBPath, want)
	}
}

func TestContributorIDGeneratedOnce(t *testing.T) {
	clearEnv(t)
	b := memBackend{}

	first, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := uuid.Parse(first.Contributor.ID); err != nil {
		t.Fatalf("generated id %q is not a UUID", first.Contributor.ID)
	}
	if b["contributor.id"] != first.Contributor.ID {
		t.Errorf("id not persisted: backend = %v", b["contributor.id"])
	}

	second, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if second.Contributor.ID != first.Contributor.ID {
		t.Errorf("id changed between loads: %s -> %s", first.Contributor.ID, second.Contributor.ID)
	}
}

func TestBackendAndEnvOverride(t *testing.T) {
	clearEnv(t)
	b := memBackend{
		"server.port":       "5000",
		"llm.provider":      "ollama",
		"remote.rate_limit": "2.5",
		"storage.db_path":   "/tmp/fixhive-test.db",
	}
	t.Setenv("FIXHIVE_LLM_PROVIDER", "none")
	t.Setenv("FIXHIVE_SYNC_BATCH_SIZE", "7")

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Remote.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.Remote.RateLimit)
	}
	if cfg.LLM.Provider != "none" {
		t.Errorf("LLM.Provider = %q, want env value none", cfg.LLM.Provider)
	}
	if cfg.Sync.BatchSize != 7 {
		t.Errorf("BatchSize = %d, want 7", cfg.Sync.BatchSize)
	}
	if cfg.Storage.DBPath != "/tmp/fixhive-test.db" {
		t.Errorf("DBPath = %q", cfg.Storage.DBPath)
	}
}

func TestSecretsFromEnvAndKeychain(t *testing.T) {
	clearEnv(t)
	t.Setenv("FIXHIVE_SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("FIXHIVE_SUPABASE_KEY", "env-key")

	kc := mockKeychain{"supabase_key": "kc-key", "anthropic_api_key": "kc-anthropic"}
	cfg, err := loadWith(memBackend{}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Remote.Key != "env-key" {
		t.Errorf("Remote.Key = %q, env must win over keychain", cfg.Remote.Key)
	}
	if cfg.Anthropic.APIKey != "kc-anthropic" {
		t.Errorf("Anthropic.APIKey = %q, want keychain value", cfg.Anthropic.APIKey)
	}
	if !cfg.CloudEnabled() {
		t.Error("CloudEnabled = false with url and key set")
	}
}

func TestSecretsIgnoredInBackend(t *testing.T) {
	clearEnv(t)
	cfg, err := loadWith(memBackend{"remote.database_url": "postgres://leak"}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Remote.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, secrets must not come from the plain backend", cfg.Remote.DatabaseURL)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"url without key", map[string]string{"FIXHIVE_SUPABASE_URL": "https://x"}, "set together"},
		{"key without url", map[string]string{"FIXHIVE_SUPABASE_KEY": "k"}, "set together"},
		{"bad contributor", map[string]string{"FIXHIVE_CONTRIBUTOR_ID": "me"}, "not a UUID"},
		{"bad provider", map[string]string{"FIXHIVE_LLM_PROVIDER": "gpt"}, "llm.provider"},
		{"bad duration", map[string]string{"FIXHIVE_SYNC_INTERVAL": "soon"}, "sync.interval"},
		{"bad level", map[string]string{"FIXHIVE_LOG_LEVEL": "loud"}, "log.level"},
		{"negative rate", map[string]string{"FIXHIVE_REMOTE_RATE_LIMIT": "-1"}, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadWith(memBackend{}, mockKeychain{})
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestCloudEnabledWithDatabaseURL(t *testing.T) {
	cfg := defaults()
	cfg.Remote.DatabaseURL = "postgres://localhost/fixhive"
	if !cfg.CloudEnabled() {
		t.Error("CloudEnabled = false with a database url")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~/x/data.db": filepath.Join(home, "x", "data.db"),
		"~":           home,
		"/abs/path":   "/abs/path",
		"rel/~/path":  "rel/~/path",
	}
	for in, want := range tests {
		got, err := expandHome(in)
		if err != nil || got != want {
			t.Errorf("expandHome(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestSetKey(t *testing.T) {
	b := memBackend{}

	if err := setKey(b, "server.port", "9000"); err != nil {
		t.Fatalf("set server.port: %v", err)
	}
	if b["server.port"] != "9000" {
		t.Errorf("server.port = %v", b["server.port"])
	}
	if err := setKey(b, "remote.rate_limit", "0.5"); err != nil {
		t.Fatalf("set remote.rate_limit: %v", err)
	}

	bad := []struct{ key, value string }{
		{"server.port", "abc"},
		{"remote.rate_limit", "fast"},
		{"contributor.id", "me"},
		{"remote.key", "secret"},
		{"no.such.key", "x"},
	}
	for _, c := range bad {
		if err := setKey(b, c.key, c.value); err == nil {
			t.Errorf("setKey(%s, %s) succeeded, want error", c.key, c.value)
		}
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Remote.Key = "super-secret"
	for _, k := range ShowAll(cfg) {
		if strings.Contains(k.Value, "super-secret") {
			t.Fatalf("secret leaked for %s", k.Key)
		}
		if k.Key == "remote.key" && k.Value != "(set)" {
			t.Errorf("remote.key = %q, want (set)", k.Value)
		}
	}
	for _, k := range ValidKeys() {
		if k == "remote.key" || k == "anthropic.api_key" {
			t.Errorf("secret %s listed as settable", k)
		}
	}
}

func TestAPIToken(t *testing.T) {
	clearEnv(t)
	stored := map[string]string{}
	store := func(service, account, value string) error {
		stored[account] = value
		return nil
	}

	tok, err := apiToken(mockKeychain{}, store)
	if err != nil {
		t.Fatalf("apiToken: %v", err)
	}
	if len(tok) != 64 || stored[apiTokenAccount] != tok {
		t.Errorf("token %q not generated and stored (stored %v)", tok, stored)
	}

	tok2, err := apiToken(mockKeychain{apiTokenAccount: "existing"}, store)
	if err != nil || tok2 != "existing" {
		t.Errorf("apiToken with keychain = %q, %v", tok2, err)
	}

	t.Setenv("FIXHIVE_API_TOKEN", "from-env")
	tok3, _ := apiToken(mockKeychain{apiTokenAccount: "existing"}, store)
	if tok3 != "from-env" {
		t.Errorf("apiToken with env = %q", tok3)
	}
}
