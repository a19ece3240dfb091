//go:build darwin

package config

import (
	"fmt"
	"os/exec"
)

// Secrets are generic passwords in the login keychain under the "fixhive"
// service.

func keychainGet(service, account string) ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", service, "-a", account, "-w").Output()
	if err != nil {
		return nil, fmt.Errorf("keychain lookup %s/%s: %w", service, account, err)
	}
	return out, nil
}

// keychainSet adds the item, or updates it in place (-U) when it exists.
func keychainSet(service, account, value string) error {
	if out, err := exec.Command("security", "add-generic-password", "-U", "-s", service, "-a", account, "-w", value).CombinedOutput(); err != nil {
		return fmt.Errorf("keychain store %s/%s: %w: %s", service, account, err, out)
	}
	return nil
}
