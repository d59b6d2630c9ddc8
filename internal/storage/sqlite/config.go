package sqlite

import (
	"fmt"
)

type Config struct {
	DatabasePath string
	// EncryptionKey enables at-rest encryption of token columns when set.
	EncryptionKey string
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		DatabasePath: "./crm_bridge.db",
	}
}
