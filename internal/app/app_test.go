package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-bridge/internal/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Port:         "8080",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     "https://provider.example/oauth/token",
		AuthURL:      "https://provider.example/oauth/chooselocation",
		RedirectURI:  "http://localhost:8080/app/callback",
		APIBase:      "https://provider.example/v1/",
		SSOKey:       "app-test-sso-key",
		JWTSecret:    "0123456789abcdef0123456789abcdef",
		DatabaseType: "sqlite",
		DatabasePath: filepath.Join(t.TempDir(), "app.db"),
	}
}

func TestNewWiresAllComponents(t *testing.T) {
	app, err := New(newTestConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	assert.NotNil(t, app.Storage)
	assert.NotNil(t, app.LockManager)
	assert.NotNil(t, app.Engine)
	assert.NotNil(t, app.Monitor)
	assert.NotNil(t, app.Reconciler)
	assert.NotNil(t, app.Auth)
	assert.NotNil(t, app.SSODecoder)
	assert.NotNil(t, app.Guard)
	assert.NotNil(t, app.Handlers)
	assert.NotNil(t, app.Scheduler)

	// Without Redis configured, locking is in-process.
	assert.Nil(t, app.RedisClient)
}

func TestSetupRoutesServesHealth(t *testing.T) {
	app, err := New(newTestConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	router := mux.NewRouter()
	app.SetupRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Admin routes sit behind JWT auth.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/integrations", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
