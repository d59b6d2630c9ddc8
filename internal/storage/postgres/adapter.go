// Package postgres implements the storage contract on PostgreSQL via the
// pgx stdlib driver. It mirrors the SQLite backend with positional
// placeholders and native upserts.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"

	apperrors "crm-bridge/internal/common/errors"
	"crm-bridge/internal/models"
	"crm-bridge/internal/storage"
)

type Adapter struct {
	db     *sql.DB
	config *Config
	cipher *storage.TokenCipher
}

func NewAdapter(config *Config) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	db, err := sql.Open("pgx", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cipher, err := storage.NewTokenCipher(config.EncryptionKey)
	if err != nil {
		return nil, err
	}

	adapter := &Adapter{
		db:     db,
		config: config,
		cipher: cipher,
	}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := adapter.createDefaultUser(); err != nil {
		return nil, fmt.Errorf("failed to create default user: %w", err)
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS integrations (
			id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL UNIQUE,
			location_name TEXT DEFAULT '',
			user_id TEXT DEFAULT '',
			user_email TEXT DEFAULT '',
			access_token TEXT DEFAULT '',
			refresh_token TEXT DEFAULT '',
			refresh_token_id TEXT DEFAULT '',
			token_type TEXT DEFAULT 'Bearer',
			expires_at TIMESTAMPTZ NOT NULL,
			user_type TEXT DEFAULT '',
			scope TEXT DEFAULT '',
			is_bulk_installation BOOLEAN DEFAULT FALSE,
			installed_at TIMESTAMPTZ DEFAULT NOW(),
			last_used_at TIMESTAMPTZ,
			is_active BOOLEAN DEFAULT TRUE,
			company_id TEXT DEFAULT '',
			company_name TEXT DEFAULT '',
			phone TEXT DEFAULT '',
			website TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_integrations_expires_at ON integrations(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_integrations_is_active ON integrations(is_active)`,
		`CREATE TABLE IF NOT EXISTS webhook_events (
			id TEXT PRIMARY KEY,
			location_id TEXT DEFAULT '',
			event_type TEXT NOT NULL,
			payload TEXT DEFAULT '{}',
			received_at TIMESTAMPTZ DEFAULT NOW(),
			processed BOOLEAN DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_events_processed ON webhook_events(processed, received_at)`,
		`CREATE TABLE IF NOT EXISTS whatsapp_tokens (
			id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL UNIQUE,
			access_token TEXT DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_default BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := a.db.Exec(query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const integrationColumns = `id, location_id, location_name, user_id, user_email,
	access_token, refresh_token, refresh_token_id, token_type, expires_at,
	user_type, scope, is_bulk_installation, installed_at, last_used_at,
	is_active, company_id, company_name, phone, website`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (a *Adapter) scanIntegration(row rowScanner) (*models.Integration, error) {
	var i models.Integration
	var lastUsed sql.NullTime

	err := row.Scan(
		&i.ID, &i.LocationID, &i.LocationName, &i.UserID, &i.UserEmail,
		&i.AccessToken, &i.RefreshToken, &i.RefreshTokenID, &i.TokenType, &i.ExpiresAt,
		&i.UserType, &i.Scope, &i.IsBulkInstallation, &i.InstalledAt, &lastUsed,
		&i.IsActive, &i.CompanyID, &i.CompanyName, &i.Phone, &i.Website,
	)
	if err != nil {
		return nil, err
	}

	if lastUsed.Valid {
		i.LastUsedAt = lastUsed.Time
	}

	if i.AccessToken, err = a.cipher.Open(i.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if i.RefreshToken, err = a.cipher.Open(i.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return &i, nil
}

func (a *Adapter) GetIntegration(ctx context.Context, id string) (*models.Integration, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE id = $1`, id)

	integration, err := a.scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundError(fmt.Sprintf("integration %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

func (a *Adapter) GetIntegrationByLocation(ctx context.Context, locationID string) (*models.Integration, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE location_id = $1`, locationID)

	integration, err := a.scanIntegration(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundError(fmt.Sprintf("no integration for location %s", locationID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return integration, nil
}

// UpsertIntegrationByLocation inserts a new record or merges into the
// existing one atomically. On conflict, non-empty incoming fields win and
// empty ones keep the stored value; identity columns (id, installed_at,
// last_used_at) are never overwritten.
func (a *Adapter) UpsertIntegrationByLocation(ctx context.Context, integration *models.Integration) (*models.Integration, error) {
	if integration.LocationID == "" {
		return nil, apperrors.ValidationError("location_id is required")
	}

	if integration.ID == "" {
		integration.ID = uuid.NewString()
	}
	if integration.InstalledAt.IsZero() {
		integration.InstalledAt = time.Now()
	}

	accessToken, refreshToken, err := a.sealTokens(integration)
	if err != nil {
		return nil, err
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO integrations (`+integrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (location_id) DO UPDATE SET
			location_name = COALESCE(NULLIF(EXCLUDED.location_name, ''), integrations.location_name),
			user_id = COALESCE(NULLIF(EXCLUDED.user_id, ''), integrations.user_id),
			user_email = COALESCE(NULLIF(EXCLUDED.user_email, ''), integrations.user_email),
			access_token = COALESCE(NULLIF(EXCLUDED.access_token, ''), integrations.access_token),
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), integrations.refresh_token),
			refresh_token_id = COALESCE(NULLIF(EXCLUDED.refresh_token_id, ''), integrations.refresh_token_id),
			token_type = COALESCE(NULLIF(EXCLUDED.token_type, ''), integrations.token_type),
			expires_at = EXCLUDED.expires_at,
			user_type = COALESCE(NULLIF(EXCLUDED.user_type, ''), integrations.user_type),
			scope = COALESCE(NULLIF(EXCLUDED.scope, ''), integrations.scope),
			is_bulk_installation = integrations.is_bulk_installation OR EXCLUDED.is_bulk_installation,
			is_active = EXCLUDED.is_active,
			company_id = COALESCE(NULLIF(EXCLUDED.company_id, ''), integrations.company_id),
			company_name = COALESCE(NULLIF(EXCLUDED.company_name, ''), integrations.company_name),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), integrations.phone),
			website = COALESCE(NULLIF(EXCLUDED.website, ''), integrations.website)`,
		integration.ID, integration.LocationID, integration.LocationName,
		integration.UserID, integration.UserEmail,
		accessToken, refreshToken, integration.RefreshTokenID,
		integration.TokenType, integration.ExpiresAt,
		integration.UserType, integration.Scope, integration.IsBulkInstallation,
		integration.InstalledAt, nullableTime(integration.LastUsedAt),
		integration.IsActive, integration.CompanyID, integration.CompanyName,
		integration.Phone, integration.Website,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert integration: %w", err)
	}

	return a.GetIntegrationByLocation(ctx, integration.LocationID)
}

func (a *Adapter) SaveIntegration(ctx context.Context, integration *models.Integration) error {
	accessToken, refreshToken, err := a.sealTokens(integration)
	if err != nil {
		return err
	}

	result, err := a.db.ExecContext(ctx, `
		UPDATE integrations SET
			location_id = $1, location_name = $2, user_id = $3, user_email = $4,
			access_token = $5, refresh_token = $6, refresh_token_id = $7,
			token_type = $8, expires_at = $9, user_type = $10, scope = $11,
			is_bulk_installation = $12, installed_at = $13, last_used_at = $14,
			is_active = $15, company_id = $16, company_name = $17,
			phone = $18, website = $19
		WHERE id = $20`,
		integration.LocationID, integration.LocationName,
		integration.UserID, integration.UserEmail,
		accessToken, refreshToken, integration.RefreshTokenID,
		integration.TokenType, integration.ExpiresAt,
		integration.UserType, integration.Scope, integration.IsBulkInstallation,
		integration.InstalledAt, nullableTime(integration.LastUsedAt),
		integration.IsActive, integration.CompanyID, integration.CompanyName,
		integration.Phone, integration.Website,
		integration.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update integration: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFoundError(fmt.Sprintf("integration %s not found", integration.ID))
	}

	return nil
}

// TouchIntegrationLastUsed writes only the last_used_at column, leaving
// concurrent token rotations untouched.
func (a *Adapter) TouchIntegrationLastUsed(ctx context.Context, id string, usedAt time.Time) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE integrations SET last_used_at = $1 WHERE id = $2`, usedAt, id)
	if err != nil {
		return fmt.Errorf("failed to record integration use: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFoundError(fmt.Sprintf("integration %s not found", id))
	}

	return nil
}

func (a *Adapter) ListActiveIntegrations(ctx context.Context) ([]*models.Integration, error) {
	return a.ListIntegrations(ctx, storage.IntegrationFilters{ActiveOnly: true})
}

func (a *Adapter) ListIntegrations(ctx context.Context, filters storage.IntegrationFilters) ([]*models.Integration, error) {
	query := `SELECT ` + integrationColumns + ` FROM integrations`
	var conditions []string
	var args []interface{}

	if filters.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if len(filters.LocationIDs) > 0 {
		placeholders := make([]string, len(filters.LocationIDs))
		for i, id := range filters.LocationIDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, "location_id IN ("+strings.Join(placeholders, ", ")+")")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY installed_at DESC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filters.Offset > 0 {
			args = append(args, filters.Offset)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var integrations []*models.Integration
	for rows.Next() {
		integration, err := a.scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		integrations = append(integrations, integration)
	}

	return integrations, rows.Err()
}

func (a *Adapter) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT INTO webhook_events (id, location_id, event_type, payload, received_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.LocationID, event.EventType, event.Payload,
		event.ReceivedAt, event.Processed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return event, nil
}

func (a *Adapter) MarkWebhookProcessed(ctx context.Context, id string) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE webhook_events SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFoundError(fmt.Sprintf("webhook event %s not found", id))
	}

	return nil
}

func (a *Adapter) ListUnprocessedWebhookEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	query := `SELECT id, location_id, event_type, payload, received_at, processed
		FROM webhook_events WHERE processed = FALSE ORDER BY received_at ASC`
	var args []interface{}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	defer rows.Close()

	var events []*models.WebhookEvent
	for rows.Next() {
		var e models.WebhookEvent
		if err := rows.Scan(&e.ID, &e.LocationID, &e.EventType, &e.Payload, &e.ReceivedAt, &e.Processed); err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

func (a *Adapter) GetWhatsAppToken(ctx context.Context, locationID string) (*models.WhatsAppToken, error) {
	var t models.WhatsAppToken
	err := a.db.QueryRowContext(ctx, `
		SELECT id, location_id, access_token, created_at, updated_at
		FROM whatsapp_tokens WHERE location_id = $1`, locationID).
		Scan(&t.ID, &t.LocationID, &t.AccessToken, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFoundError(fmt.Sprintf("no WhatsApp token for location %s", locationID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get WhatsApp token: %w", err)
	}

	if t.AccessToken, err = a.cipher.Open(t.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt WhatsApp token: %w", err)
	}

	return &t, nil
}

func (a *Adapter) UpsertWhatsAppToken(ctx context.Context, token *models.WhatsAppToken) (*models.WhatsAppToken, error) {
	if token.LocationID == "" {
		return nil, apperrors.ValidationError("location_id is required")
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	sealed, err := a.cipher.Seal(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt WhatsApp token: %w", err)
	}

	now := time.Now()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO whatsapp_tokens (id, location_id, access_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (location_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			updated_at = EXCLUDED.updated_at`,
		token.ID, token.LocationID, sealed, token.CreatedAt, token.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert WhatsApp token: %w", err)
	}

	return token, nil
}

func (a *Adapter) DeleteWhatsAppToken(ctx context.Context, locationID string) error {
	_, err := a.db.ExecContext(ctx,
		`DELETE FROM whatsapp_tokens WHERE location_id = $1`, locationID)
	if err != nil {
		return fmt.Errorf("failed to delete WhatsApp token: %w", err)
	}
	return nil
}

func (a *Adapter) createDefaultUser() error {
	var count int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = a.db.Exec(`
		INSERT INTO users (username, password_hash, is_default) VALUES ($1, $2, TRUE)`,
		"admin", string(hashedPassword))
	return err
}

func (a *Adapter) CreateUser(ctx context.Context, username, password string, isDefault bool) (*models.User, error) {
	if username == "" || password == "" {
		return nil, apperrors.ValidationError("username and password are required")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var id int
	err = a.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, is_default)
		VALUES ($1, $2, $3) RETURNING id`,
		username, string(hashedPassword), isDefault).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{
		ID:        id,
		Username:  username,
		IsDefault: isDefault,
		CreatedAt: time.Now(),
	}, nil
}

func (a *Adapter) ValidateUser(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	var passwordHash string

	err := a.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_default, created_at
		FROM users WHERE username = $1`, username).
		Scan(&user.ID, &user.Username, &passwordHash, &user.IsDefault, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.AuthError("invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return nil, apperrors.AuthError("invalid credentials")
	}

	return &user, nil
}

func (a *Adapter) sealTokens(integration *models.Integration) (string, string, error) {
	accessToken, err := a.cipher.Seal(integration.AccessToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt access token: %w", err)
	}
	refreshToken, err := a.cipher.Seal(integration.RefreshToken)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
