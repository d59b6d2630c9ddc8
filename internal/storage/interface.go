// Package storage defines the persistence contract for integrations,
// webhook events, WhatsApp tokens, and admin users, plus the factory that
// selects a backend from configuration.
package storage

import (
	"context"
	"time"

	"crm-bridge/internal/models"
)

// IntegrationFilters narrows ListIntegrations. Zero values mean "no filter".
type IntegrationFilters struct {
	// ActiveOnly restricts results to active integrations.
	ActiveOnly bool
	// LocationIDs restricts results to the given tenants when non-empty.
	LocationIDs []string
	// Limit caps the number of rows returned; 0 means no cap.
	Limit int
	// Offset skips rows for paging.
	Offset int
}

// Store is the persistence contract. All implementations encrypt token
// columns at rest when an encryption key is configured, and all writes are
// safe for concurrent use.
type Store interface {
	// GetIntegration returns the integration with the given primary key.
	GetIntegration(ctx context.Context, id string) (*models.Integration, error)

	// GetIntegrationByLocation returns the integration for a tenant.
	GetIntegrationByLocation(ctx context.Context, locationID string) (*models.Integration, error)

	// UpsertIntegrationByLocation creates or updates the single record for
	// the integration's location, preserving the existing primary key and
	// installed-at timestamp on update.
	UpsertIntegrationByLocation(ctx context.Context, integration *models.Integration) (*models.Integration, error)

	// SaveIntegration persists changes to an existing integration.
	SaveIntegration(ctx context.Context, integration *models.Integration) error

	// TouchIntegrationLastUsed updates only the last-used timestamp, so the
	// read path never races a concurrent full-record write.
	TouchIntegrationLastUsed(ctx context.Context, id string, usedAt time.Time) error

	// ListActiveIntegrations returns all active integrations.
	ListActiveIntegrations(ctx context.Context) ([]*models.Integration, error)

	// ListIntegrations returns integrations matching the filters, newest
	// install first.
	ListIntegrations(ctx context.Context, filters IntegrationFilters) ([]*models.Integration, error)

	// CreateWebhookEvent durably records an inbound webhook before any
	// mutation derived from it is applied.
	CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error)

	// MarkWebhookProcessed flags a stored event as applied.
	MarkWebhookProcessed(ctx context.Context, id string) error

	// ListUnprocessedWebhookEvents returns stored events not yet applied,
	// oldest first.
	ListUnprocessedWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error)

	// GetWhatsAppToken returns the messaging token for a tenant.
	GetWhatsAppToken(ctx context.Context, locationID string) (*models.WhatsAppToken, error)

	// UpsertWhatsAppToken creates or replaces the messaging token for a
	// tenant.
	UpsertWhatsAppToken(ctx context.Context, token *models.WhatsAppToken) (*models.WhatsAppToken, error)

	// DeleteWhatsAppToken removes the messaging token for a tenant. It is a
	// no-op when none exists.
	DeleteWhatsAppToken(ctx context.Context, locationID string) error

	// CreateUser creates an admin user with a bcrypt-hashed password.
	CreateUser(ctx context.Context, username, password string, isDefault bool) (*models.User, error)

	// ValidateUser checks a username/password pair and returns the user on
	// success.
	ValidateUser(ctx context.Context, username, password string) (*models.User, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
