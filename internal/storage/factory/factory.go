// Package factory selects a storage backend from configuration. It lives
// apart from the storage contract so the adapters can depend on the
// contract without a cycle.
package factory

import (
	"fmt"
	"strconv"

	"crm-bridge/internal/common/errors"
	"crm-bridge/internal/config"
	"crm-bridge/internal/storage"
	"crm-bridge/internal/storage/postgres"
	"crm-bridge/internal/storage/sqlite"
)

// NewStorage creates a storage adapter based on configuration.
func NewStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		return sqlite.NewAdapter(&sqlite.Config{
			DatabasePath:  cfg.DatabasePath,
			EncryptionKey: cfg.EncryptionKey,
		})

	case "postgres", "postgresql":
		port, err := strconv.Atoi(cfg.PostgresPort)
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid PostgreSQL port: %s", cfg.PostgresPort))
		}
		return postgres.NewAdapter(&postgres.Config{
			Host:          cfg.PostgresHost,
			Port:          port,
			Database:      cfg.PostgresDB,
			Username:      cfg.PostgresUser,
			Password:      cfg.PostgresPassword,
			SSLMode:       cfg.PostgresSSLMode,
			EncryptionKey: cfg.EncryptionKey,
		})

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}
}
