//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	b := newPlatformBackend()
	if err := b.Set("server.port", "5001"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reopened := newPlatformBackend()
	v, ok, err := reopened.Get("server.port")
	if err != nil || !ok || v != "5001" {
		t.Errorf("Get = %q, %v, %v; want 5001", v, ok, err)
	}
	if _, ok, _ := reopened.Get("log.level"); ok {
		t.Error("unset key reported as present")
	}
}

func TestReadJSONFile_HandWritten(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	raw := `{"server.port": 4800, "remote.rate_limit": 2.5, "llm.provider": "none", "debug": true}`
	if err := os.WriteFile(p, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := readJSONFile(p)
	if err != nil {
		t.Fatalf("readJSONFile: %v", err)
	}
	want := map[string]string{
		"server.port":       "4800",
		"remote.rate_limit": "2.5",
		"llm.provider":      "none",
		"debug":             "true",
	}
	for k, v := range want {
		if f.data[k] != v {
			t.Errorf("%s = %q, want %q", k, f.data[k], v)
		}
	}
}

func TestReadJSONFile_Corrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(p, []byte("{not json"), 0o600)

	f, err := readJSONFile(p)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if f == nil || len(f.data) != 0 {
		t.Errorf("corrupt file should still yield an empty object, got %+v", f)
	}
}

func TestSecretsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	if _, err := keychainGet(keychainService, "api_token"); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if err := keychainSet(keychainService, "api_token", "tok"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	got, err := keychainGet(keychainService, "api_token")
	if err != nil || string(got) != "tok" {
		t.Errorf("keychainGet = %q, %v", got, err)
	}

	info, err := os.Stat(filepath.Join(dir, "fixhive", "secrets.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}
