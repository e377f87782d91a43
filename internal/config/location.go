package config

import (
	"os"
	"path/filepath"
)

// EnvPath overrides the config file location.
const EnvPath = "SDKBRIDGE_CONFIG"

// Path returns $SDKBRIDGE_CONFIG, or ~/.sdk-bridge/config.
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sdk-bridge", "config"), nil
}
