package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	commonhttp "crm-bridge/internal/common/http"
	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/guard"
)

// contactsClient is shared across requests; the guard supplies a fresh
// provider token per call.
var contactsClient = commonhttp.NewHTTPClientWithTimeout(15 * time.Second)

// HandleContactLookup proxies a contact search to the provider API on behalf
// of the tenant resolved by the guard middleware. The guard has already
// attached a valid access token to the request context.
func (h *Handlers) HandleContactLookup(w http.ResponseWriter, r *http.Request) {
	token, ok := guard.TokenFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "no tenant credential resolved")
		return
	}
	integration, _ := guard.IntegrationFromContext(r.Context())

	query := r.URL.Query().Get("query")
	if query == "" {
		h.respondError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	params := url.Values{}
	params.Set("query", query)
	if integration != nil {
		params.Set("locationId", integration.LocationID)
	}

	endpoint := strings.TrimSuffix(h.config.APIBase, "/") + "/contacts/lookup?" + params.Encode()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, endpoint, nil)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to build provider request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := contactsClient.Do(req)
	if err != nil {
		h.logger.Warn("Contact lookup failed",
			logging.String("error", err.Error()),
		)
		h.respondError(w, http.StatusBadGateway, "provider request failed")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		h.respondError(w, http.StatusBadGateway, "failed to read provider response")
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.logger.Warn("Provider rejected contact lookup",
			logging.Int("status", resp.StatusCode),
		)
		h.respondError(w, http.StatusBadGateway,
			fmt.Sprintf("provider returned status %d", resp.StatusCode))
		return
	}

	// Forward the provider's JSON verbatim when it parses; wrap raw text
	// otherwise.
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		h.respondJSON(w, http.StatusOK, map[string]string{"raw": string(body)})
		return
	}
	h.respondJSON(w, http.StatusOK, parsed)
}
