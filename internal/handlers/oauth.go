package handlers

import (
	"net/http"
	"net/url"

	"crm-bridge/internal/common/errors"
	"crm-bridge/internal/common/logging"
)

// HandleInstall starts the OAuth authorization flow by redirecting to the
// provider's location chooser.
func (h *Handlers) HandleInstall(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", h.config.ClientID)
	params.Set("redirect_uri", h.config.RedirectURI)
	params.Set("scope", h.config.OAuthScopes)

	http.Redirect(w, r, h.config.AuthURL+"?"+params.Encode(), http.StatusFound)
}

// HandleCallback completes the authorization flow. The provider redirects
// here with a code; agency-level installs produce a token response without a
// location id, which is acknowledged but creates no record.
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		h.respondError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	integration, err := h.engine.ExchangeCode(r.Context(), code)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeValidation) {
			// Agency installs return tokens without a location id.
			h.logger.Warn("Callback exchange yielded no location id",
				logging.String("error", err.Error()),
			)
			h.respondJSON(w, http.StatusOK, map[string]string{
				"status":  "accepted",
				"message": "installation completed without a location id; per-location install required",
			})
			return
		}
		h.respondAppError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "installed",
		"integration": integration,
	})
}

// HandleHealth reports service liveness and storage reachability.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "storage": "ok"}
	code := http.StatusOK

	if err := h.store.Health(r.Context()); err != nil {
		status["status"] = "degraded"
		status["storage"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	if h.redis != nil {
		status["redis"] = "ok"
		if err := h.redis.Health(); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, code, status)
}
