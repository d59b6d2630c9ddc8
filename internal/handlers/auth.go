package handlers

import (
	"encoding/json"
	"net/http"

	"crm-bridge/internal/common/logging"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin exchanges admin credentials for a signed API token.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, claims, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("Failed login attempt",
			logging.String("username", req.Username),
		)
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"username":   claims.Username,
		"is_default": claims.IsDefault,
		"expires_at": claims.ExpiresAt.Time,
	})
}

// HandleLogout exists for client symmetry. Tokens are stateless; clients
// discard them.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
