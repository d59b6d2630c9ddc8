// Package guard interposes on proxied API calls that need a live provider
// token. It resolves the tenant from the request, repairs the credential
// synchronously when it is stale, and attaches the valid token to the
// request context. No caller downstream of the guard ever sees a token that
// was already inside the refresh window.
package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"crm-bridge/internal/common/errors"
	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/models"
	"crm-bridge/internal/storage"
	"crm-bridge/internal/tokens"
)

// LocationHeader is the dedicated tenant header checked after the request
// parameters.
const LocationHeader = "X-Location-ID"

// maxBodyPeek bounds how much of a JSON body is read during tenant
// resolution.
const maxBodyPeek = 1 << 20

type contextKey int

const (
	integrationContextKey contextKey = iota
	tokenContextKey
)

// Guard wires tenant resolution and refresh-on-demand into the router as
// middleware. Only requests whose exact path is registered are guarded;
// everything else passes through untouched.
type Guard struct {
	engine    *tokens.Engine
	store     storage.Store
	protected map[string]struct{}
	logger    logging.Logger
}

func New(engine *tokens.Engine, store storage.Store, logger logging.Logger, protectedPaths ...string) *Guard {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	protected := make(map[string]struct{}, len(protectedPaths))
	for _, path := range protectedPaths {
		protected[path] = struct{}{}
	}

	return &Guard{
		engine:    engine,
		store:     store,
		protected: protected,
		logger:    logger,
	}
}

// Middleware validates the tenant credential for registered paths before the
// wrapped handler runs.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.protected[r.URL.Path]; !ok {
			next.ServeHTTP(w, r)
			return
		}

		locationID := g.resolveLocationID(r)
		if locationID == "" {
			next.ServeHTTP(w, r)
			return
		}

		integration, err := g.store.GetIntegrationByLocation(r.Context(), locationID)
		if err != nil {
			if errors.IsType(err, errors.ErrTypeNotFound) {
				g.logger.Debug("Guarded request for unknown location",
					logging.String("location_id", locationID),
					logging.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusInternalServerError, "credential lookup failed")
			return
		}

		token, wasRefreshed, err := g.engine.GetValid(r.Context(), locationID)
		if err != nil {
			g.logger.Warn("Guarded request rejected",
				logging.String("location_id", locationID),
				logging.String("path", r.URL.Path),
				logging.String("error", err.Error()),
			)
			writeError(w, http.StatusUnauthorized, "token validation failed")
			return
		}

		if wasRefreshed {
			// Reload so downstream sees the rotated credential.
			integration, err = g.store.GetIntegrationByLocation(r.Context(), locationID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "credential lookup failed")
				return
			}
		}

		g.touchLastUsed(r.Context(), integration)

		ctx := context.WithValue(r.Context(), integrationContextKey, integration)
		ctx = context.WithValue(ctx, tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveLocationID finds the tenant id: request parameters first, then the
// dedicated header, then a JSON body field. First non-empty match wins.
func (g *Guard) resolveLocationID(r *http.Request) string {
	if id := r.URL.Query().Get("location_id"); id != "" {
		return id
	}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err == nil {
			if id := r.PostForm.Get("location_id"); id != "" {
				return id
			}
		}
	}

	if id := r.Header.Get(LocationHeader); id != "" {
		return id
	}

	if strings.HasPrefix(contentType, "application/json") && r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyPeek))
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var doc struct {
			LocationID string `json:"location_id"`
		}
		if err := json.Unmarshal(body, &doc); err == nil {
			return doc.LocationID
		}
	}

	return ""
}

// touchLastUsed is the only place last_used_at changes on the read path. It
// writes the single column so a rotation running in parallel is never
// overwritten with the stale record this request loaded.
func (g *Guard) touchLastUsed(ctx context.Context, integration *models.Integration) {
	integration.LastUsedAt = time.Now()
	if err := g.store.TouchIntegrationLastUsed(ctx, integration.ID, integration.LastUsedAt); err != nil {
		g.logger.Warn("Failed to record credential use",
			logging.String("location_id", integration.LocationID),
			logging.String("error", err.Error()),
		)
	}
}

// IntegrationFromContext returns the integration attached by the guard.
func IntegrationFromContext(ctx context.Context) (*models.Integration, bool) {
	integration, ok := ctx.Value(integrationContextKey).(*models.Integration)
	return integration, ok
}

// TokenFromContext returns the validated access token attached by the guard.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
