package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment overrides
const (
	EnvRedisURL  = "LABDESK_REDIS_URL"
	EnvWorkspace = "LABDESK_WORKSPACE"
	EnvUser      = "LABDESK_USER"
)

// LoadDotEnv loads dir/.env into the process environment. Variables that
// are already set win over the file. A missing file is not an error.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides the store URL and workspace from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		if c.Store == nil {
			c.Store = &StoreConfig{}
		}
		c.Store.RedisURL = v
	}
	if v := os.Getenv(EnvWorkspace); v != "" {
		c.Workspace = v
	}
}

// CurrentUser returns the acting member: the flag value if set, otherwise
// LABDESK_USER.
func CurrentUser(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(EnvUser); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no user given: pass --as or set %s", EnvUser)
}
