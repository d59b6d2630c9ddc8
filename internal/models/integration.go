// Package models defines the persistent records managed by the credential
// store: the per-location integration record, the durable webhook event log,
// and the linked WhatsApp access token.
package models

import (
	"time"
)

// RefreshWindow is the freshness window before expiry within which a token
// is considered due for refresh. The boundary is inclusive: a token with
// exactly this much lifetime left already needs a refresh.
const RefreshWindow = 1 * time.Hour

// PlaceholderExpiry is the default expiry assigned to integration records
// created from an install webhook before any real token exchange has
// happened.
const PlaceholderExpiry = 1 * time.Hour

// Integration stores a GoHighLevel app installation and its OAuth tokens.
// One record exists per location (tenant); location_id is unique.
type Integration struct {
	ID           string `json:"id"`
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
	UserID       string `json:"user_id"`
	UserEmail    string `json:"user_email"`

	// OAuth tokens and provider-supplied token metadata
	AccessToken        string    `json:"-"`
	RefreshToken       string    `json:"-"`
	RefreshTokenID     string    `json:"refresh_token_id"`
	TokenType          string    `json:"token_type"`
	ExpiresAt          time.Time `json:"expires_at"`
	UserType           string    `json:"user_type"`
	Scope              string    `json:"scope"`
	IsBulkInstallation bool      `json:"is_bulk_installation"`

	// Installation metadata
	InstalledAt time.Time `json:"installed_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
	IsActive    bool      `json:"is_active"`

	// Company details from the provider
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
}

// IsExpired reports whether the access token has already expired.
func (i *Integration) IsExpired() bool {
	return i.IsExpiredAt(time.Now())
}

// IsExpiredAt reports expiry relative to the given instant.
func (i *Integration) IsExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// NeedsRefresh reports whether the token is inside the refresh window.
// An expired token always needs a refresh.
func (i *Integration) NeedsRefresh() bool {
	return i.NeedsRefreshAt(time.Now())
}

// NeedsRefreshAt reports the refresh window check relative to the given
// instant. The window boundary is inclusive.
func (i *Integration) NeedsRefreshAt(now time.Time) bool {
	return i.ExpiresAt.Sub(now) <= RefreshWindow
}

// WebhookEvent is a durably recorded provider lifecycle event. Events are
// stored before they are applied and marked processed only after the state
// transition completes, so a crash leaves a replayable unprocessed event.
type WebhookEvent struct {
	ID         string    `json:"id"`
	LocationID string    `json:"location_id"`
	EventType  string    `json:"event_type"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
	Processed  bool      `json:"processed"`
}

// WhatsAppToken is the downstream messaging credential linked one-to-one to
// an integration. It is not OAuth-managed; the reconciler cascade-deletes it
// when the owning integration is uninstalled.
type WhatsAppToken struct {
	ID          string    `json:"id"`
	LocationID  string    `json:"location_id"`
	AccessToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is an administrative account for the management API.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}
