package configs

import (
	"os"
)

// DetermineConfigPath resolves the config file from the flag value, then
// RELAY_CONFIG, then well-known locations. An empty result means defaults only.
func DetermineConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if configPath := os.Getenv(envPrefix + "CONFIG"); configPath != "" {
		return configPath
	}

	candidates := []string{
		"./config.yaml",
		"./config.yml",
		"/etc/relay/config.yaml",
		"/app/config.yaml", // common in Docker
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
