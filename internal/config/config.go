// Package config provides configuration management for the CRM bridge
// service. It handles loading configuration from environment variables with
// sensible defaults and validates the configuration so the application starts
// safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Provider OAuth Settings:
//   - GHL_CLIENT_ID: OAuth2 client id issued by the provider (required)
//   - GHL_CLIENT_SECRET: OAuth2 client secret (required)
//   - GHL_TOKEN_URL: Token endpoint (default: provider production endpoint)
//   - GHL_AUTH_URL: Authorization/chooselocation endpoint
//   - GHL_REDIRECT_URI: OAuth callback URL registered with the provider
//   - GHL_API_BASE: Provider REST API base URL
//   - GHL_OAUTH_SCOPES: Space separated scopes requested at install
//   - GHL_SSO_KEY: Shared secret for decoding embedded SSO context payloads
//
// Database Configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./crm_bridge.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE: PostgreSQL settings
//
// Redis Configuration (optional, enables distributed per-tenant locks):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
//
// Security Configuration:
//   - JWT_SECRET: admin API token signing secret (required, min 32 chars)
//   - CONFIG_ENCRYPTION_KEY: at-rest encryption key for stored tokens
//
// Sweeps:
//   - REFRESH_SWEEP_CONCURRENCY: parallel refreshes per sweep (default: 4)
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration values for the CRM bridge service.
// All fields correspond to environment variables that can be set to override
// the default values. Load() populates it; Validate() must pass before use.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Provider OAuth settings
	ClientID     string // OAuth2 client id
	ClientSecret string // OAuth2 client secret
	TokenURL     string // Provider token endpoint
	AuthURL      string // Provider authorization endpoint
	RedirectURI  string // OAuth callback URL
	APIBase      string // Provider REST API base
	OAuthScopes  string // Scopes requested on install
	SSOKey       string // Shared secret for SSO context decoding

	// Database configuration
	DatabaseType     string // "sqlite" or "postgres"
	DatabasePath     string // SQLite database file path
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration for distributed coordination (optional)
	RedisAddress  string
	RedisPassword string
	RedisDB       string
	RedisPoolSize string

	// Security
	JWTSecret     string // Admin API token signing secret (required)
	EncryptionKey string // At-rest encryption key for token columns

	// Sweep tuning
	RefreshSweepConcurrency int // Parallel tenant refreshes per sweep
}

// Load creates a new Config instance with values loaded from environment
// variables. It does not validate; call Validate() on the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ClientID:     getEnv("GHL_CLIENT_ID", ""),
		ClientSecret: getEnv("GHL_CLIENT_SECRET", ""),
		TokenURL:     getEnv("GHL_TOKEN_URL", "https://services.leadconnectorhq.com/oauth/token"),
		AuthURL:      getEnv("GHL_AUTH_URL", "https://marketplace.gohighlevel.com/oauth/chooselocation"),
		RedirectURI:  getEnv("GHL_REDIRECT_URI", "http://localhost:8080/app/callback"),
		APIBase:      getEnv("GHL_API_BASE", "https://rest.gohighlevel.com/v1/"),
		OAuthScopes:  getEnv("GHL_OAUTH_SCOPES", "contacts.readonly contacts.write locations.readonly users.readonly"),
		SSOKey:       getEnv("GHL_SSO_KEY", ""),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./crm_bridge.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "crm_bridge"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		EncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),

		RefreshSweepConcurrency: getIntEnv("REFRESH_SWEEP_CONCURRENCY", 4),
	}
}

// getEnv retrieves an environment variable value or returns a default value
// if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a
// default value if not set or invalid.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all required
// fields are present and all values are valid. The application should call
// this after Load and before starting.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("GHL_CLIENT_ID environment variable is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("GHL_CLIENT_SECRET environment variable is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if c.RefreshSweepConcurrency < 1 {
		return fmt.Errorf("REFRESH_SWEEP_CONCURRENCY must be at least 1")
	}

	return nil
}
