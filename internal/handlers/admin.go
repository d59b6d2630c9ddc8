package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"crm-bridge/internal/common/logging"
)

// HandleRefreshIntegration forces an immediate refresh for one location,
// regardless of the refresh window.
func (h *Handlers) HandleRefreshIntegration(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationID"]

	integration, err := h.engine.RefreshOne(r.Context(), locationID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.invalidateHealthCache(r)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "refreshed",
		"integration": integration,
	})
}

// HandleDeactivateIntegration soft-deactivates one integration. The record
// and its tokens are kept for a later reinstall.
func (h *Handlers) HandleDeactivateIntegration(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationID"]

	integration, err := h.store.GetIntegrationByLocation(r.Context(), locationID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	if integration.IsActive {
		integration.IsActive = false
		if err := h.store.SaveIntegration(r.Context(), integration); err != nil {
			h.respondAppError(w, err)
			return
		}
		h.logger.Info("Integration deactivated by operator",
			logging.String("location_id", locationID),
		)
	}

	h.invalidateHealthCache(r)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "deactivated",
		"integration": integration,
	})
}

// HandleActivateIntegration reverses a soft deactivation.
func (h *Handlers) HandleActivateIntegration(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationID"]

	integration, err := h.store.GetIntegrationByLocation(r.Context(), locationID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	if !integration.IsActive {
		integration.IsActive = true
		if err := h.store.SaveIntegration(r.Context(), integration); err != nil {
			h.respondAppError(w, err)
			return
		}
		h.logger.Info("Integration reactivated by operator",
			logging.String("location_id", locationID),
		)
	}

	h.invalidateHealthCache(r)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "activated",
		"integration": integration,
	})
}

type bulkDeactivateRequest struct {
	LocationIDs []string `json:"location_ids"`
}

// HandleBulkDeactivate soft-deactivates a batch of integrations. Unknown
// location ids are reported, not fatal.
func (h *Handlers) HandleBulkDeactivate(w http.ResponseWriter, r *http.Request) {
	var req bulkDeactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.LocationIDs) == 0 {
		h.respondError(w, http.StatusBadRequest, "location_ids is required")
		return
	}

	deactivated := 0
	var missing []string
	for _, locationID := range req.LocationIDs {
		integration, err := h.store.GetIntegrationByLocation(r.Context(), locationID)
		if err != nil {
			missing = append(missing, locationID)
			continue
		}
		if !integration.IsActive {
			continue
		}
		integration.IsActive = false
		if err := h.store.SaveIntegration(r.Context(), integration); err != nil {
			h.respondAppError(w, err)
			return
		}
		deactivated++
	}

	h.logger.Info("Bulk deactivation finished",
		logging.Int("deactivated", deactivated),
		logging.Int("missing", len(missing)),
	)

	h.invalidateHealthCache(r)
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "deactivated",
		"deactivated": deactivated,
		"missing":     missing,
	})
}

// HandleReplayWebhooks reapplies any webhook events that were recorded but
// never successfully processed.
func (h *Handlers) HandleReplayWebhooks(w http.ResponseWriter, r *http.Request) {
	replayed, err := h.reconciler.ReplayUnprocessed(r.Context())
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "replayed",
		"replayed": replayed,
	})
}
