package webhooks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "crm-bridge/internal/common/errors"
	"crm-bridge/internal/locks"
	"crm-bridge/internal/models"
	"crm-bridge/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Adapter {
	t.Helper()

	store, err := sqlite.NewAdapter(&sqlite.Config{
		DatabasePath: filepath.Join(t.TempDir(), "webhooks.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestParseExtractsLocationVariants(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"camelCase", `{"type":"INSTALL","locationId":"loc_1"}`, "loc_1"},
		{"snake_case", `{"type":"INSTALL","location_id":"loc_2"}`, "loc_2"},
		{"nested location", `{"type":"INSTALL","location":{"id":"loc_3"}}`, "loc_3"},
		{"nested data", `{"type":"INSTALL","data":{"locationId":"loc_4"}}`, "loc_4"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := Parse([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, payload.LocationID)
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	payload, err := Parse([]byte(`{"locationId":"loc_first","location_id":"loc_second"}`))
	require.NoError(t, err)
	assert.Equal(t, "loc_first", payload.LocationID)
}

func TestParseEventType(t *testing.T) {
	payload, err := Parse([]byte(`{"eventType":"UNINSTALL","locationId":"loc_1"}`))
	require.NoError(t, err)
	assert.Equal(t, "UNINSTALL", payload.EventType)

	payload, err = Parse([]byte(`{"locationId":"loc_1"}`))
	require.NoError(t, err)
	assert.Equal(t, EventUnknown, payload.EventType)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMalformedWebhook))

	_, err = Parse([]byte(`{"type":"INSTALL"}`))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeMalformedWebhook))
}

func TestInstallCreatesPlaceholder(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, nil, nil)
	ctx := context.Background()

	payload, err := Parse([]byte(`{"type":"INSTALL","locationId":"loc_1","companyId":"comp_1"}`))
	require.NoError(t, err)
	require.NoError(t, reconciler.Handle(ctx, payload))

	integration, err := store.GetIntegrationByLocation(ctx, "loc_1")
	require.NoError(t, err)
	assert.True(t, integration.IsActive)
	assert.Empty(t, integration.AccessToken)
	assert.Equal(t, "comp_1", integration.CompanyID)
	assert.WithinDuration(t, time.Now().Add(models.PlaceholderExpiry), integration.ExpiresAt, 5*time.Second)

	// The event is durably recorded and marked processed.
	pending, err := store.ListUnprocessedWebhookEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInstallReactivatesAndMerges(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, nil, nil)
	ctx := context.Background()

	existing, err := store.UpsertIntegrationByLocation(ctx, &models.Integration{
		LocationID:   "loc_1",
		AccessToken:  "kept-access",
		RefreshToken: "kept-refresh",
		CompanyName:  "Kept Name",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		IsActive:     false,
	})
	require.NoError(t, err)

	payload, err := Parse([]byte(`{"type":"INSTALL","locationId":"loc_1","companyId":"comp_new"}`))
	require.NoError(t, err)
	require.NoError(t, reconciler.Handle(ctx, payload))

	integration, err := store.GetIntegrationByLocation(ctx, "loc_1")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, integration.ID)
	assert.True(t, integration.IsActive)
	assert.Equal(t, "kept-access", integration.AccessToken)
	// Empty event fields never blank stored values.
	assert.Equal(t, "Kept Name", integration.CompanyName)
	assert.Equal(t, "comp_new", integration.CompanyID)
}

func TestUninstallDeactivatesAndCascades(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, nil, nil)
	ctx := context.Background()

	_, err := store.UpsertIntegrationByLocation(ctx, &models.Integration{
		LocationID:   "loc_1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		IsActive:     true,
	})
	require.NoError(t, err)

	_, err = store.UpsertWhatsAppToken(ctx, &models.WhatsAppToken{
		LocationID:  "loc_1",
		AccessToken: "wa-token",
	})
	require.NoError(t, err)

	payload, err := Parse([]byte(`{"type":"UNINSTALL","locationId":"loc_1"}`))
	require.NoError(t, err)
	require.NoError(t, reconciler.Handle(ctx, payload))

	integration, err := store.GetIntegrationByLocation(ctx, "loc_1")
	require.NoError(t, err)
	assert.False(t, integration.IsActive)
	// Soft deactivation keeps the tokens.
	assert.Equal(t, "access", integration.AccessToken)

	_, err = store.GetWhatsAppToken(ctx, "loc_1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestUninstallIdempotent(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, nil, nil)
	ctx := context.Background()

	_, err := store.UpsertIntegrationByLocation(ctx, &models.Integration{
		LocationID: "loc_1",
		ExpiresAt:  time.Now().Add(time.Hour),
		IsActive:   true,
	})
	require.NoError(t, err)

	payload, err := Parse([]byte(`{"type":"UNINSTALL","locationId":"loc_1"}`))
	require.NoError(t, err)
	require.NoError(t, reconciler.Handle(ctx, payload))
	require.NoError(t, reconciler.Handle(ctx, payload))

	integration, err := store.GetIntegrationByLocation(ctx, "loc_1")
	require.NoError(t, err)
	assert.False(t, integration.IsActive)
}

func TestUninstallWaitsForRefreshLock(t *testing.T) {
	store := newTestStore(t)
	manager := locks.NewLocalManager()
	reconciler := NewReconciler(store, manager, nil)
	ctx := context.Background()

	_, err := store.UpsertIntegrationByLocation(ctx, &models.Integration{
		LocationID:   "loc_1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		IsActive:     true,
	})
	require.NoError(t, err)

	// Hold the tenant's refresh lock as a concurrent rotation would.
	held, err := manager.AcquireLock(ctx, locks.RefreshKey("loc_1"), 30*time.Second)
	require.NoError(t, err)

	payload, err := Parse([]byte(`{"type":"UNINSTALL","locationId":"loc_1"}`))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- reconciler.Handle(ctx, payload)
	}()

	select {
	case err := <-done:
		t.Fatalf("uninstall applied while the refresh lock was held: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	integration, err := store.GetIntegrationByLocation(ctx, "loc_1")
	require.NoError(t, err)
	assert.True(t, integration.IsActive)

	require.NoError(t, held.Release(ctx))
	require.NoError(t, <-done)

	integration, err = store.GetIntegrationByLocation(ctx, "loc_1")
	require.NoError(t, err)
	assert.False(t, integration.IsActive)
}

func TestUninstallUnknownLocationIsAuditOnly(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, nil, nil)
	ctx := context.Background()

	payload, err := Parse([]byte(`{"type":"UNINSTALL","locationId":"loc_ghost"}`))
	require.NoError(t, err)
	require.NoError(t, reconciler.Handle(ctx, payload))

	pending, err := store.ListUnprocessedWebhookEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUnknownEventRecordedWithoutStateChange(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, nil, nil)
	ctx := context.Background()

	payload, err := Parse([]byte(`{"type":"ContactCreate","locationId":"loc_1"}`))
	require.NoError(t, err)
	require.NoError(t, reconciler.Handle(ctx, payload))

	_, err = store.GetIntegrationByLocation(ctx, "loc_1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestReplayUnprocessed(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, nil, nil)
	ctx := context.Background()

	// Simulate a crash after durable receipt but before apply.
	_, err := store.CreateWebhookEvent(ctx, &models.WebhookEvent{
		LocationID: "loc_1",
		EventType:  EventInstall,
		Payload:    `{"type":"INSTALL","locationId":"loc_1"}`,
	})
	require.NoError(t, err)

	replayed, err := reconciler.ReplayUnprocessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	integration, err := store.GetIntegrationByLocation(ctx, "loc_1")
	require.NoError(t, err)
	assert.True(t, integration.IsActive)

	pending, err := store.ListUnprocessedWebhookEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReplayDropsUnparseableEvents(t *testing.T) {
	store := newTestStore(t)
	reconciler := NewReconciler(store, nil, nil)
	ctx := context.Background()

	_, err := store.CreateWebhookEvent(ctx, &models.WebhookEvent{
		EventType: EventUnknown,
		Payload:   `corrupted`,
	})
	require.NoError(t, err)

	replayed, err := reconciler.ReplayUnprocessed(ctx)
	require.NoError(t, err)
	assert.Zero(t, replayed)

	pending, err := store.ListUnprocessedWebhookEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
