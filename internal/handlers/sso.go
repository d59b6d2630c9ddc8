package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"crm-bridge/internal/common/logging"
)

// ssoSessionHeader carries the encrypted session context when the embedded
// app calls back into us.
const ssoSessionHeader = "X-Sso-Session"

type ssoDecodeRequest struct {
	Payload string `json:"payload"`
}

// HandleSSODecode decrypts an embedded-app session payload and returns the
// decoded session document along with the strategy that succeeded. The
// payload arrives in the X-Sso-Session header or a JSON body field.
func (h *Handlers) HandleSSODecode(w http.ResponseWriter, r *http.Request) {
	if h.sso == nil {
		h.respondError(w, http.StatusServiceUnavailable, "sso decoding is not configured")
		return
	}

	payload := r.Header.Get(ssoSessionHeader)
	if payload == "" {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err == nil && len(body) > 0 {
			var req ssoDecodeRequest
			if err := json.Unmarshal(body, &req); err == nil {
				payload = req.Payload
			}
		}
	}
	if payload == "" {
		h.respondError(w, http.StatusBadRequest, "missing sso session payload")
		return
	}

	doc, strategy, err := h.sso.Decode(payload)
	if err != nil {
		h.logger.Warn("Failed to decode sso session",
			logging.String("error", err.Error()),
		)
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session":  doc,
		"strategy": strategy,
	})
}
