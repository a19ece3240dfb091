package config

// ConfigBackend persists non-secret settings between runs. Values are kept
// as strings and parsed by the key table, so a backend only moves text.
type ConfigBackend interface {
	Get(key string) (val string, ok bool, err error)
	Set(key, val string) error
}
