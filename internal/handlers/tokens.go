package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/health"
	"crm-bridge/internal/storage"
)

// healthCacheKey and healthCacheTTL control the short-lived Redis cache in
// front of the health summary.
const (
	healthCacheKey = "token-health:summary"
	healthCacheTTL = 30 * time.Second
)

// HandleTokenHealth returns the aggregate freshness summary, optionally
// with the records expiring within ?hours=N.
func (h *Handlers) HandleTokenHealth(w http.ResponseWriter, r *http.Request) {
	summary, err := h.cachedSummary(r)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	response := map[string]interface{}{"summary": summary}

	if hoursParam := r.URL.Query().Get("hours"); hoursParam != "" {
		hours, err := strconv.Atoi(hoursParam)
		if err != nil || hours <= 0 {
			h.respondError(w, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		expiring, err := h.monitor.ExpiringWithin(r.Context(), hours)
		if err != nil {
			h.respondAppError(w, err)
			return
		}
		response["expiring"] = expiring
	}

	h.respondJSON(w, http.StatusOK, response)
}

// cachedSummary serves the summary from Redis when available. Cache misses
// and Redis failures fall back to a direct read.
func (h *Handlers) cachedSummary(r *http.Request) (*health.Summary, error) {
	if h.redis != nil {
		var cached health.Summary
		if err := h.redis.GetJSON(r.Context(), healthCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	summary, err := h.monitor.Summary(r.Context())
	if err != nil {
		return nil, err
	}

	if h.redis != nil {
		if err := h.redis.Set(r.Context(), healthCacheKey, summary, healthCacheTTL); err != nil {
			h.logger.Debug("Failed to cache health summary",
				logging.String("error", err.Error()),
			)
		}
	}

	return summary, nil
}

// HandleBulkRefresh runs a refresh sweep over every integration inside the
// refresh window and reports the tallies.
func (h *Handlers) HandleBulkRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.RefreshAllDue(r.Context())
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.invalidateHealthCache(r)
	h.respondJSON(w, http.StatusOK, result)
}

// HandleGetToken returns a valid access token for a location, refreshing
// first when needed. This is the read-your-writes path for API consumers.
func (h *Handlers) HandleGetToken(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationID"]

	token, wasRefreshed, err := h.engine.GetValid(r.Context(), locationID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"location_id":   locationID,
		"access_token":  token,
		"was_refreshed": wasRefreshed,
	})
}

// HandleIntegrationStatus returns one integration record without exposing
// its secrets.
func (h *Handlers) HandleIntegrationStatus(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationID"]

	integration, err := h.store.GetIntegrationByLocation(r.Context(), locationID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"integration":   integration,
		"is_expired":    integration.IsExpired(),
		"needs_refresh": integration.NeedsRefresh(),
	})
}

// HandleListIntegrations lists integration records with optional filters:
// ?active=true, ?limit=N, ?offset=N.
func (h *Handlers) HandleListIntegrations(w http.ResponseWriter, r *http.Request) {
	filters := storage.IntegrationFilters{}
	query := r.URL.Query()

	if query.Get("active") == "true" {
		filters.ActiveOnly = true
	}
	if limitParam := query.Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filters.Limit = limit
	}
	if offsetParam := query.Get("offset"); offsetParam != "" {
		offset, err := strconv.Atoi(offsetParam)
		if err != nil || offset < 0 {
			h.respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filters.Offset = offset
	}

	integrations, err := h.store.ListIntegrations(r.Context(), filters)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"integrations": integrations,
		"count":        len(integrations),
	})
}

func (h *Handlers) invalidateHealthCache(r *http.Request) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Delete(r.Context(), healthCacheKey); err != nil {
		h.logger.Debug("Failed to invalidate health summary cache",
			logging.String("error", err.Error()),
		)
	}
}
