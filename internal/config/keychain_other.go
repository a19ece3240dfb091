//go:build !darwin

package config

import "fmt"

// Without a system keychain, secrets live in
// $XDG_DATA_HOME/fixhive/secrets.json (mode 0600) keyed "service/account".

func secretsFile() (*jsonFile, error) {
	return readJSONFile(xdgPath("XDG_DATA_HOME", ".local/share", "secrets.json"))
}

func keychainGet(service, account string) ([]byte, error) {
	f, err := secretsFile()
	if err != nil {
		return nil, err
	}
	v, ok := f.data[service+"/"+account]
	if !ok || v == "" {
		return nil, fmt.Errorf("no secret %s/%s in %s", service, account, f.path)
	}
	return []byte(v), nil
}

func keychainSet(service, account, value string) error {
	f, err := secretsFile()
	if err != nil {
		return err
	}
	f.data[service+"/"+account] = value
	return f.write()
}
