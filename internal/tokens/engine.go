// Package tokens implements the OAuth2 credential lifecycle for installed
// integrations: code exchange on install, proactive refresh inside the
// expiry window, and on-demand delivery of valid access tokens.
package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"crm-bridge/internal/circuitbreaker"
	"crm-bridge/internal/common/errors"
	commonhttp "crm-bridge/internal/common/http"
	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/config"
	"crm-bridge/internal/locks"
	"crm-bridge/internal/models"
	"crm-bridge/internal/storage"
)

// defaultExpiresIn is assumed when the provider omits expires_in.
const defaultExpiresIn = 3600

// refreshLockExpiry bounds how long a tenant's refresh lock is held.
const refreshLockExpiry = 30 * time.Second

// TokenResponse maps the provider's token endpoint response. Beyond the
// RFC 6749 fields the provider returns installation metadata in camelCase.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`

	RefreshTokenID     string `json:"refreshTokenId,omitempty"`
	UserType           string `json:"userType,omitempty"`
	LocationID         string `json:"locationId,omitempty"`
	CompanyID          string `json:"companyId,omitempty"`
	UserID             string `json:"userId,omitempty"`
	IsBulkInstallation bool   `json:"isBulkInstallation,omitempty"`
}

// SweepResult tallies a bulk refresh pass. Failures never abort the sweep;
// each tenant is counted exactly once.
type SweepResult struct {
	RefreshedCount int `json:"refreshed_count"`
	FailedCount    int `json:"failed_count"`
}

// Engine drives the credential lifecycle. Refreshes for the same tenant are
// serialized through the lock manager so concurrent callers never race a
// rotation of the same refresh token.
type Engine struct {
	config     *config.Config
	store      storage.Store
	locks      locks.Manager
	breaker    *circuitbreaker.Breaker
	httpClient *http.Client
	logger     logging.Logger
}

func NewEngine(cfg *config.Config, store storage.Store, lockManager locks.Manager, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Engine{
		config:     cfg,
		store:      store,
		locks:      lockManager,
		breaker:    circuitbreaker.New("oauth-token-endpoint", circuitbreaker.OAuthConfig(), logger),
		httpClient: commonhttp.NewHTTPClientWithTimeout(30 * time.Second),
		logger:     logger,
	}
}

// ExchangeCode trades an authorization code for tokens and upserts the
// integration record for the location the provider reports.
func (e *Engine) ExchangeCode(ctx context.Context, code string) (*models.Integration, error) {
	if code == "" {
		return nil, errors.ValidationError("authorization code is required")
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", e.config.ClientID)
	data.Set("client_secret", e.config.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", e.config.RedirectURI)
	data.Set("user_type", "Company")

	tokenResp, err := e.requestToken(ctx, data)
	if err != nil {
		return nil, err
	}

	if tokenResp.LocationID == "" {
		return nil, errors.ValidationError("token response carries no location id")
	}

	now := time.Now()
	integration := &models.Integration{
		LocationID:         tokenResp.LocationID,
		UserID:             tokenResp.UserID,
		CompanyID:          tokenResp.CompanyID,
		IsBulkInstallation: tokenResp.IsBulkInstallation,
		IsActive:           true,
	}
	applyTokenResponse(integration, tokenResp, now)

	saved, err := e.store.UpsertIntegrationByLocation(ctx, integration)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Authorization code exchanged",
		logging.String("location_id", saved.LocationID),
		logging.Time("expires_at", saved.ExpiresAt),
		logging.Bool("bulk_installation", saved.IsBulkInstallation),
	)

	return saved, nil
}

// RefreshOne refreshes the tokens for a single tenant. The stored record is
// only modified on success; transport failures and provider rejections leave
// it untouched so the next sweep can retry.
func (e *Engine) RefreshOne(ctx context.Context, locationID string) (*models.Integration, error) {
	lock, err := e.locks.AcquireLock(ctx, locks.RefreshKey(locationID), refreshLockExpiry)
	if err != nil {
		return nil, errors.InternalError("failed to acquire refresh lock", err)
	}
	defer lock.Release(ctx)

	integration, err := e.store.GetIntegrationByLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}

	return e.refreshIntegration(ctx, integration)
}

// refreshIntegration performs the token request for an already loaded record.
// Callers must hold the tenant's refresh lock.
func (e *Engine) refreshIntegration(ctx context.Context, integration *models.Integration) (*models.Integration, error) {
	if integration.RefreshToken == "" {
		return nil, errors.MissingRefreshTokenError(integration.LocationID)
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", e.config.ClientID)
	data.Set("client_secret", e.config.ClientSecret)
	data.Set("refresh_token", integration.RefreshToken)
	data.Set("user_type", "Company")

	tokenResp, err := e.requestToken(ctx, data)
	if err != nil {
		e.logger.Warn("Token refresh failed",
			logging.String("location_id", integration.LocationID),
			logging.String("error", err.Error()),
		)
		return nil, err
	}

	applyTokenResponse(integration, tokenResp, time.Now())

	if err := e.store.SaveIntegration(ctx, integration); err != nil {
		return nil, err
	}

	e.logger.Info("Token refreshed",
		logging.String("location_id", integration.LocationID),
		logging.Time("expires_at", integration.ExpiresAt),
	)

	return integration, nil
}

// applyTokenResponse merges a successful token response into the record.
// The provider rotates refresh tokens on most responses but occasionally
// omits the field; the previous refresh token is kept in that case.
func applyTokenResponse(integration *models.Integration, resp *TokenResponse, now time.Time) {
	integration.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		integration.RefreshToken = resp.RefreshToken
	}
	if resp.RefreshTokenID != "" {
		integration.RefreshTokenID = resp.RefreshTokenID
	}

	integration.TokenType = resp.TokenType
	if integration.TokenType == "" {
		integration.TokenType = "Bearer"
	}

	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	integration.ExpiresAt = now.Add(time.Duration(expiresIn) * time.Second)

	if resp.Scope != "" {
		integration.Scope = resp.Scope
	}
	if resp.UserType != "" {
		integration.UserType = resp.UserType
	}
	if resp.IsBulkInstallation {
		integration.IsBulkInstallation = true
	}
}

// GetValid returns an access token ready for an API call, refreshing first
// when the stored token is inside the refresh window. The second return
// reports whether a refresh happened.
func (e *Engine) GetValid(ctx context.Context, locationID string) (string, bool, error) {
	integration, err := e.store.GetIntegrationByLocation(ctx, locationID)
	if err != nil {
		return "", false, err
	}

	if !integration.IsActive {
		return "", false, errors.InactiveIntegrationError(locationID)
	}

	if !integration.NeedsRefresh() {
		return integration.AccessToken, false, nil
	}

	refreshed, err := e.RefreshOne(ctx, locationID)
	if err != nil {
		// Retry policy belongs to the caller; a token inside the refresh
		// window is never handed out after a failed repair.
		return "", false, errors.RefreshFailedError(
			fmt.Sprintf("no valid token for location %s", locationID), err)
	}

	return refreshed.AccessToken, true, nil
}

// RefreshAllDue sweeps every active integration and refreshes the ones
// inside the refresh window. Tenants are processed by a bounded worker pool
// and one tenant's failure never stops the others.
func (e *Engine) RefreshAllDue(ctx context.Context) (*SweepResult, error) {
	integrations, err := e.store.ListActiveIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	var due []*models.Integration
	for _, integration := range integrations {
		if !integration.NeedsRefresh() {
			continue
		}
		// Placeholders have no refresh token; the sweep cannot repair them.
		if integration.RefreshToken == "" {
			e.logger.Warn("Skipping unrecoverable credential in sweep",
				logging.String("location_id", integration.LocationID),
			)
			continue
		}
		due = append(due, integration)
	}

	if len(due) == 0 {
		return &SweepResult{}, nil
	}

	concurrency := e.config.RefreshSweepConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	result := &SweepResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, integration := range due {
		wg.Add(1)
		go func(locationID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			refreshed, err := e.refreshIfDue(ctx, locationID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.FailedCount++
			case refreshed:
				result.RefreshedCount++
			}
		}(integration.LocationID)
	}

	wg.Wait()

	e.logger.Info("Refresh sweep completed",
		logging.Int("refreshed", result.RefreshedCount),
		logging.Int("failed", result.FailedCount),
		logging.Int("due", len(due)),
	)

	return result, nil
}

// refreshIfDue re-checks the window under the tenant lock before refreshing.
// A concurrent guard-triggered refresh may already have repaired the record
// between the sweep's listing and this worker running.
func (e *Engine) refreshIfDue(ctx context.Context, locationID string) (bool, error) {
	lock, err := e.locks.AcquireLock(ctx, locks.RefreshKey(locationID), refreshLockExpiry)
	if err != nil {
		return false, errors.InternalError("failed to acquire refresh lock", err)
	}
	defer lock.Release(ctx)

	integration, err := e.store.GetIntegrationByLocation(ctx, locationID)
	if err != nil {
		return false, err
	}

	if !integration.NeedsRefresh() || integration.RefreshToken == "" {
		return false, nil
	}

	if _, err := e.refreshIntegration(ctx, integration); err != nil {
		return false, err
	}
	return true, nil
}

// requestToken performs the HTTP exchange with the provider token endpoint.
// Transport failures surface as network errors, non-200 responses as refresh
// failures carrying the provider's error description.
func (e *Engine) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.TokenURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.InternalError("failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp *http.Response
	err = e.breaker.Execute(ctx, func() error {
		var httpErr error
		resp, httpErr = e.httpClient.Do(req)
		if httpErr != nil {
			return errors.NetworkError("token request failed", httpErr)
		}
		return nil
	})
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNetwork) {
			return nil, err
		}
		return nil, errors.NetworkError("token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error != "" {
			return nil, errors.NetworkError(
				fmt.Sprintf("provider rejected token request: %s - %s", errResp.Error, errResp.Description), nil)
		}
		return nil, errors.NetworkError(
			fmt.Sprintf("token request failed with status %d", resp.StatusCode), nil)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, errors.InternalError("failed to decode token response", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, errors.NetworkError("token response carries no access token", nil)
	}

	return &tokenResp, nil
}
