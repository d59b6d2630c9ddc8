package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/models"
)

// HandleGetWhatsAppToken reports whether a WhatsApp token is stored for the
// location. The token value itself is never returned.
func (h *Handlers) HandleGetWhatsAppToken(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationID"]

	token, err := h.store.GetWhatsAppToken(r.Context(), locationID)
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "configured",
		"token":  token,
	})
}

type whatsAppTokenRequest struct {
	AccessToken string `json:"access_token"`
}

// HandlePutWhatsAppToken stores or replaces the WhatsApp token for a
// location. The location must have an integration record.
func (h *Handlers) HandlePutWhatsAppToken(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationID"]

	var req whatsAppTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccessToken == "" {
		h.respondError(w, http.StatusBadRequest, "access_token is required")
		return
	}

	if _, err := h.store.GetIntegrationByLocation(r.Context(), locationID); err != nil {
		h.respondAppError(w, err)
		return
	}

	token, err := h.store.UpsertWhatsAppToken(r.Context(), &models.WhatsAppToken{
		LocationID:  locationID,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		h.respondAppError(w, err)
		return
	}

	h.logger.Info("WhatsApp token stored",
		logging.String("location_id", locationID),
	)

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "stored",
		"token":  token,
	})
}

// HandleDeleteWhatsAppToken removes the WhatsApp token for a location.
// Deleting an absent token succeeds.
func (h *Handlers) HandleDeleteWhatsAppToken(w http.ResponseWriter, r *http.Request) {
	locationID := mux.Vars(r)["locationID"]

	if err := h.store.DeleteWhatsAppToken(r.Context(), locationID); err != nil {
		h.respondAppError(w, err)
		return
	}

	h.logger.Info("WhatsApp token removed",
		logging.String("location_id", locationID),
	)

	h.respondJSON(w, http.StatusOK, map[string]string{
		"status": "deleted",
	})
}
