package handlers

import (
	"io"
	"net/http"

	"crm-bridge/internal/common/errors"
	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/webhooks"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

// HandleWebhook receives provider lifecycle events. Malformed payloads are
// rejected without being persisted; valid ones are durably recorded and
// applied before the 200 goes out.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	payload, err := webhooks.Parse(body)
	if err != nil {
		h.logger.Warn("Rejected malformed webhook",
			logging.String("error", err.Error()),
		)
		h.respondAppError(w, err)
		return
	}

	if err := h.reconciler.Handle(r.Context(), payload); err != nil {
		if errors.IsType(err, errors.ErrTypeMalformedWebhook) {
			h.respondAppError(w, err)
			return
		}
		h.respondError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":      "processed",
		"event_type":  payload.EventType,
		"location_id": payload.LocationID,
	})
}
