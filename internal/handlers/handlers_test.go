package handlers

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-bridge/internal/auth"
	"crm-bridge/internal/config"
	"crm-bridge/internal/crypto"
	"crm-bridge/internal/guard"
	"crm-bridge/internal/health"
	"crm-bridge/internal/locks"
	"crm-bridge/internal/models"
	"crm-bridge/internal/storage/sqlite"
	"crm-bridge/internal/tokens"
	"crm-bridge/internal/webhooks"
)

const testSSOKey = "handlers-sso-shared-secret"

type fixture struct {
	handlers *Handlers
	store    *sqlite.Adapter
	router   *mux.Router
	provider *httptest.Server
	config   *config.Config

	providerStatus int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{providerStatus: http.StatusOK}

	f.provider = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.providerStatus)
		if f.providerStatus != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
			"token_type":    "Bearer",
			"expires_in":    86400,
			"locationId":    "loc_cb",
			"userType":      "Company",
		})
	}))
	t.Cleanup(f.provider.Close)

	store, err := sqlite.NewAdapter(&sqlite.Config{
		DatabasePath: filepath.Join(t.TempDir(), "handlers.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	f.store = store

	f.config = &config.Config{
		ClientID:                "client-id",
		ClientSecret:            "client-secret",
		TokenURL:                f.provider.URL,
		AuthURL:                 "https://provider.example/oauth/chooselocation",
		RedirectURI:             "http://localhost:8080/app/callback",
		APIBase:                 f.provider.URL + "/v1/",
		OAuthScopes:             "contacts.readonly",
		SSOKey:                  testSSOKey,
		JWTSecret:               "0123456789abcdef0123456789abcdef",
		RefreshSweepConcurrency: 2,
	}

	engine := tokens.NewEngine(f.config, store, locks.NewLocalManager(), nil)
	authService, err := auth.New(store, f.config.JWTSecret)
	require.NoError(t, err)
	ssoDecoder, err := crypto.NewSSODecoder(f.config.SSOKey)
	require.NoError(t, err)

	f.handlers = New(
		store,
		engine,
		health.NewMonitor(store),
		webhooks.NewReconciler(store, nil, nil),
		authService,
		ssoDecoder,
		f.config,
		nil,
		nil,
	)

	r := mux.NewRouter()
	r.HandleFunc("/app/install", f.handlers.HandleInstall).Methods(http.MethodGet)
	r.HandleFunc("/app/callback", f.handlers.HandleCallback).Methods(http.MethodGet)
	r.HandleFunc("/app/webhook", f.handlers.HandleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/app/sso/decode", f.handlers.HandleSSODecode).Methods(http.MethodPost)
	r.HandleFunc("/health", f.handlers.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/login", f.handlers.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", f.handlers.HandleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/token-health", f.handlers.HandleTokenHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/integrations", f.handlers.HandleListIntegrations).Methods(http.MethodGet)
	r.HandleFunc("/api/integrations/bulk-refresh", f.handlers.HandleBulkRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/integrations/bulk-deactivate", f.handlers.HandleBulkDeactivate).Methods(http.MethodPost)
	r.HandleFunc("/api/integrations/{locationID}", f.handlers.HandleIntegrationStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/integrations/{locationID}/token", f.handlers.HandleGetToken).Methods(http.MethodGet)
	r.HandleFunc("/api/integrations/{locationID}/refresh", f.handlers.HandleRefreshIntegration).Methods(http.MethodPost)
	r.HandleFunc("/api/integrations/{locationID}/deactivate", f.handlers.HandleDeactivateIntegration).Methods(http.MethodPost)
	r.HandleFunc("/api/integrations/{locationID}/activate", f.handlers.HandleActivateIntegration).Methods(http.MethodPost)
	r.HandleFunc("/api/integrations/{locationID}/whatsapp-token", f.handlers.HandleGetWhatsAppToken).Methods(http.MethodGet)
	r.HandleFunc("/api/integrations/{locationID}/whatsapp-token", f.handlers.HandlePutWhatsAppToken).Methods(http.MethodPut)
	r.HandleFunc("/api/integrations/{locationID}/whatsapp-token", f.handlers.HandleDeleteWhatsAppToken).Methods(http.MethodDelete)
	r.HandleFunc("/api/webhooks/replay", f.handlers.HandleReplayWebhooks).Methods(http.MethodPost)
	f.router = r

	return f
}

func (f *fixture) seed(t *testing.T, locationID string, expiresIn time.Duration, active bool) *models.Integration {
	t.Helper()

	integration, err := f.store.UpsertIntegrationByLocation(context.Background(), &models.Integration{
		LocationID:   locationID,
		AccessToken:  "seed-access",
		RefreshToken: "seed-refresh",
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(expiresIn),
		IsActive:     active,
	})
	require.NoError(t, err)
	return integration
}

func (f *fixture) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestInstallRedirectsToProvider(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/app/install", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, f.config.AuthURL))
	assert.Contains(t, location, "client_id=client-id")
	assert.Contains(t, location, "response_type=code")
}

func TestCallbackCreatesIntegration(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/app/callback?code=auth-code-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "installed", body["status"])

	stored, err := f.store.GetIntegrationByLocation(context.Background(), "loc_cb")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", stored.AccessToken)
	assert.True(t, stored.IsActive)
}

func TestCallbackMissingCode(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/app/callback", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookInstallEvent(t *testing.T) {
	f := newFixture(t)

	payload := []byte(`{"type":"INSTALL","locationId":"loc_wh","companyId":"co_1"}`)
	rec := f.do(t, http.MethodPost, "/app/webhook", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "processed", body["status"])
	assert.Equal(t, "INSTALL", body["event_type"])

	stored, err := f.store.GetIntegrationByLocation(context.Background(), "loc_wh")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Equal(t, "co_1", stored.CompanyID)
}

func TestWebhookMalformedPayload(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/app/webhook", []byte(`{"type":"INSTALL"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenHealthSummary(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_ok", 12*time.Hour, true)
	f.seed(t, "loc_due", 30*time.Minute, true)
	f.seed(t, "loc_dead", -time.Hour, true)

	rec := f.do(t, http.MethodGet, "/api/token-health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(3), summary["total"])
	assert.Equal(t, float64(1), summary["expired"])
	assert.Equal(t, float64(1), summary["needs_refresh"])
	assert.Equal(t, float64(1), summary["healthy"])
}

func TestTokenHealthExpiringWithin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_soon", 2*time.Hour, true)
	f.seed(t, "loc_later", 48*time.Hour, true)

	rec := f.do(t, http.MethodGet, "/api/token-health?hours=6", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	expiring := body["expiring"].([]interface{})
	require.Len(t, expiring, 1)

	rec = f.do(t, http.MethodGet, "/api/token-health?hours=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTokenServesFreshToken(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_fresh", 12*time.Hour, true)

	rec := f.do(t, http.MethodGet, "/api/integrations/loc_fresh/token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "seed-access", body["access_token"])
	assert.Equal(t, false, body["was_refreshed"])
}

func TestGetTokenRefreshesWhenDue(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_due", 10*time.Minute, true)

	rec := f.do(t, http.MethodGet, "/api/integrations/loc_due/token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "fresh-access", body["access_token"])
	assert.Equal(t, true, body["was_refreshed"])
}

func TestGetTokenUnknownLocation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/integrations/loc_missing/token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTokenInactiveIntegration(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_off", 12*time.Hour, false)

	rec := f.do(t, http.MethodGet, "/api/integrations/loc_off/token", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListIntegrationsActiveFilter(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_a", 12*time.Hour, true)
	f.seed(t, "loc_b", 12*time.Hour, false)

	rec := f.do(t, http.MethodGet, "/api/integrations?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	rec = f.do(t, http.MethodGet, "/api/integrations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
}

func TestIntegrationStatus(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_stat", 30*time.Minute, true)

	rec := f.do(t, http.MethodGet, "/api/integrations/loc_stat", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["is_expired"])
	assert.Equal(t, true, body["needs_refresh"])

	rec = f.do(t, http.MethodGet, "/api/integrations/loc_none", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManualRefresh(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_manual", 12*time.Hour, true)

	rec := f.do(t, http.MethodPost, "/api/integrations/loc_manual/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := f.store.GetIntegrationByLocation(context.Background(), "loc_manual")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", stored.AccessToken)
}

func TestManualRefreshProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.providerStatus = http.StatusBadRequest
	f.seed(t, "loc_fail", 12*time.Hour, true)

	rec := f.do(t, http.MethodPost, "/api/integrations/loc_fail/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDeactivateAndActivate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_toggle", 12*time.Hour, true)
	ctx := context.Background()

	rec := f.do(t, http.MethodPost, "/api/integrations/loc_toggle/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := f.store.GetIntegrationByLocation(ctx, "loc_toggle")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	rec = f.do(t, http.MethodPost, "/api/integrations/loc_toggle/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err = f.store.GetIntegrationByLocation(ctx, "loc_toggle")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
}

func TestBulkRefreshTallies(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_due_1", 30*time.Minute, true)
	f.seed(t, "loc_due_2", 45*time.Minute, true)
	f.seed(t, "loc_ok", 12*time.Hour, true)

	rec := f.do(t, http.MethodPost, "/api/integrations/bulk-refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["refreshed_count"])
	assert.Equal(t, float64(0), body["failed_count"])
}

func TestBulkDeactivate(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_x", 12*time.Hour, true)
	f.seed(t, "loc_y", 12*time.Hour, true)

	rec := f.do(t, http.MethodPost, "/api/integrations/bulk-deactivate",
		[]byte(`{"location_ids":["loc_x","loc_y","loc_ghost"]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["deactivated"])
	missing := body["missing"].([]interface{})
	require.Len(t, missing, 1)
	assert.Equal(t, "loc_ghost", missing[0])

	stored, err := f.store.GetIntegrationByLocation(context.Background(), "loc_x")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestBulkDeactivateRequiresIDs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/integrations/bulk-deactivate",
		[]byte(`{"location_ids":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWhatsAppTokenLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_wa", 12*time.Hour, true)

	rec := f.do(t, http.MethodPut, "/api/integrations/loc_wa/whatsapp-token",
		[]byte(`{"access_token":"wa-secret"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "stored", body["status"])
	// The stored token value never appears in a response.
	assert.NotContains(t, rec.Body.String(), "wa-secret")

	rec = f.do(t, http.MethodGet, "/api/integrations/loc_wa/whatsapp-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "configured", body["status"])

	stored, err := f.store.GetWhatsAppToken(context.Background(), "loc_wa")
	require.NoError(t, err)
	assert.Equal(t, "wa-secret", stored.AccessToken)

	rec = f.do(t, http.MethodDelete, "/api/integrations/loc_wa/whatsapp-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/integrations/loc_wa/whatsapp-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWhatsAppTokenRequiresIntegration(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/integrations/loc_ghost/whatsapp-token",
		[]byte(`{"access_token":"wa-secret"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWhatsAppTokenRequiresValue(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_wa", 12*time.Hour, true)

	rec := f.do(t, http.MethodPut, "/api/integrations/loc_wa/whatsapp-token",
		[]byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginWithDefaultUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/login",
		[]byte(`{"username":"admin","password":"admin"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "admin", body["username"])
	assert.Equal(t, true, body["is_default"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/login",
		[]byte(`{"username":"admin","password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRequiresBothFields(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/auth/login", []byte(`{"username":"admin"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["storage"])
}

func TestWebhookReplayEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	event := &models.WebhookEvent{
		LocationID: "loc_replay",
		EventType:  "INSTALL",
		Payload:    `{"type":"INSTALL","locationId":"loc_replay"}`,
	}
	_, err := f.store.CreateWebhookEvent(ctx, event)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/webhooks/replay", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["replayed"])

	_, err = f.store.GetIntegrationByLocation(ctx, "loc_replay")
	require.NoError(t, err)
}

// encryptSSOPayload builds the OpenSSL salted envelope the embedded app
// sends, so the decode endpoint is tested against the real wire format.
func encryptSSOPayload(t *testing.T, key string, doc map[string]interface{}) string {
	t.Helper()

	plaintext, err := json.Marshal(doc)
	require.NoError(t, err)

	salt := make([]byte, 8)
	_, err = rand.Read(salt)
	require.NoError(t, err)

	var derived []byte
	var block []byte
	for len(derived) < 48 {
		h := md5.New()
		h.Write(block)
		h.Write([]byte(key))
		h.Write(salt)
		block = h.Sum(nil)
		derived = append(derived, block...)
	}
	aesKey, iv := derived[:32], derived[32:48]

	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(plaintext, bytes.Repeat([]byte{byte(pad)}, pad)...)

	c, err := aes.NewCipher(aesKey)
	require.NoError(t, err)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c, iv).CryptBlocks(ciphertext, padded)

	envelope := append([]byte("Salted__"), salt...)
	envelope = append(envelope, ciphertext...)
	return base64.StdEncoding.EncodeToString(envelope)
}

func TestSSODecodeFromHeader(t *testing.T) {
	f := newFixture(t)

	payload := encryptSSOPayload(t, testSSOKey, map[string]interface{}{
		"userId":         "u_1",
		"activeLocation": "loc_sso",
	})

	req := httptest.NewRequest(http.MethodPost, "/app/sso/decode", nil)
	req.Header.Set("X-Sso-Session", payload)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "aes-256-cbc-evp", body["strategy"])
	session := body["session"].(map[string]interface{})
	assert.Equal(t, "loc_sso", session["activeLocation"])
}

func TestSSODecodeFromBody(t *testing.T) {
	f := newFixture(t)

	payload := encryptSSOPayload(t, testSSOKey, map[string]interface{}{"userId": "u_2"})
	body, err := json.Marshal(map[string]string{"payload": payload})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/app/sso/decode", body)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSSODecodeMissingPayload(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/app/sso/decode", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSSODecodeNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.handlers.sso = nil

	rec := f.do(t, http.MethodPost, "/app/sso/decode", []byte(`{"payload":"x"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestContactLookupThroughGuard(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "loc_contacts", 12*time.Hour, true)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer seed-access", r.Header.Get("Authorization"))
		assert.Equal(t, "jane", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"contacts": []map[string]string{{"id": "c_1", "email": "jane@example.com"}},
		})
	}))
	defer api.Close()
	f.config.APIBase = api.URL + "/v1/"

	g := guard.New(f.handlers.engine, f.store, nil, "/app/api/contacts/lookup")
	router := mux.NewRouter()
	router.Handle("/app/api/contacts/lookup",
		g.Middleware(http.HandlerFunc(f.handlers.HandleContactLookup))).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet,
		"/app/api/contacts/lookup?location_id=loc_contacts&query=jane", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	contacts := body["contacts"].([]interface{})
	require.Len(t, contacts, 1)
}

func TestContactLookupWithoutGuardContext(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/app/api/contacts/lookup?query=jane", nil)
	rec := httptest.NewRecorder()
	f.handlers.HandleContactLookup(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
