package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                    "8080",
		ClientID:                "client-id",
		ClientSecret:            "client-secret",
		JWTSecret:               "0123456789abcdef0123456789abcdef",
		DatabaseType:            "sqlite",
		DatabasePath:            "./test.db",
		RedisDB:                 "0",
		RefreshSweepConcurrency: 4,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("GHL_TOKEN_URL", "")
	t.Setenv("REFRESH_SWEEP_CONCURRENCY", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "https://services.leadconnectorhq.com/oauth/token", cfg.TokenURL)
	assert.Equal(t, 4, cfg.RefreshSweepConcurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("GHL_CLIENT_ID", "cid")
	t.Setenv("REFRESH_SWEEP_CONCURRENCY", "8")

	cfg := Load()

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "cid", cfg.ClientID)
	assert.Equal(t, 8, cfg.RefreshSweepConcurrency)
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing client id", func(c *Config) { c.ClientID = "" }},
		{"missing client secret", func(c *Config) { c.ClientSecret = "" }},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "too-short" }},
		{"bad port", func(c *Config) { c.Port = "not-a-port" }},
		{"bad database type", func(c *Config) { c.DatabaseType = "oracle" }},
		{"postgres without host", func(c *Config) {
			c.DatabaseType = "postgres"
			c.PostgresHost = ""
		}},
		{"bad redis db", func(c *Config) {
			c.RedisAddress = "localhost:6379"
			c.RedisDB = "99"
		}},
		{"zero sweep concurrency", func(c *Config) { c.RefreshSweepConcurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_PostgresComplete(t *testing.T) {
	cfg := validConfig()
	cfg.DatabaseType = "postgres"
	cfg.PostgresHost = "db.internal"
	cfg.PostgresPort = "5432"
	cfg.PostgresDB = "crm_bridge"
	cfg.PostgresUser = "bridge"

	require.NoError(t, cfg.Validate())
}
