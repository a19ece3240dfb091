//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// jsonFile is a flat JSON object on disk. The settings file and the secrets
// file share it.
type jsonFile struct {
	path string
	data map[string]string
}

// xdgPath returns $<env>/fixhive/<name>, falling back to ~/<fallback>.
func xdgPath(env, fallback, name string) string {
	dir := os.Getenv(env)
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, fallback)
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "fixhive", name)
}

// readJSONFile loads path. A missing file is an empty object. Numbers and
// booleans written by hand are read back as their text.
func readJSONFile(path string) (*jsonFile, error) {
	f := &jsonFile{path: path, data: map[string]string{}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, fmt.Errorf("reading %s: %w", path, err)
	}

	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return f, fmt.Errorf("parsing %s: %w", path, err)
	}
	for k, v := range loose {
		switch v := v.(type) {
		case string:
			f.data[k] = v
		case float64:
			f.data[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			f.data[k] = strconv.FormatBool(v)
		}
	}
	return f, nil
}

// write replaces the file through a temp file so a crash never leaves it
// half written.
func (f *jsonFile) write() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(f.path), err)
	}
	out, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, f.path)
}

// fileBackend keeps settings in $XDG_CONFIG_HOME/fixhive/config.json.
type fileBackend struct {
	file *jsonFile
}

func newPlatformBackend() ConfigBackend {
	f, err := readJSONFile(xdgPath("XDG_CONFIG_HOME", ".config", "config.json"))
	if err != nil {
		slog.Warn("config file unusable, using defaults", "error", err)
	}
	return &fileBackend{file: f}
}

func (b *fileBackend) Get(key string) (string, bool, error) {
	v, ok := b.file.data[key]
	return v, ok, nil
}

func (b *fileBackend) Set(key, val string) error {
	b.file.data[key] = val
	return b.file.write()
}
