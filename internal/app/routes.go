package app

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all HTTP routes for the application
func (app *App) SetupRoutes(router *mux.Router) {
	h := app.Handlers

	// Provider-facing routes (no auth; the provider calls these directly)
	router.HandleFunc("/app/install", h.HandleInstall).Methods("GET")
	router.HandleFunc("/app/callback", h.HandleCallback).Methods("GET")
	router.HandleFunc("/app/webhook", h.HandleWebhook).Methods("POST")
	router.HandleFunc("/app/sso/decode", h.HandleSSODecode).Methods("POST")

	// Tenant-guarded proxy routes. The guard resolves the tenant from the
	// request and attaches a valid token before the handler runs.
	router.Handle(contactLookupPath,
		app.Guard.Middleware(http.HandlerFunc(h.HandleContactLookup))).Methods("GET", "POST")

	// Health check (no auth required)
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")

	// API auth routes (no auth required for login)
	router.HandleFunc("/api/auth/login", h.HandleLogin).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.HandleLogout).Methods("POST")

	// Admin API, behind JWT auth
	api := router.PathPrefix("/api").Subrouter()
	api.Use(app.Auth.RequireAuth)

	api.HandleFunc("/token-health", h.HandleTokenHealth).Methods("GET")
	api.HandleFunc("/integrations", h.HandleListIntegrations).Methods("GET")

	// Bulk routes are registered before the {locationID} routes so the
	// literal segments win.
	api.HandleFunc("/integrations/bulk-refresh", h.HandleBulkRefresh).Methods("POST")
	api.HandleFunc("/integrations/bulk-deactivate", h.HandleBulkDeactivate).Methods("POST")

	api.HandleFunc("/integrations/{locationID}", h.HandleIntegrationStatus).Methods("GET")
	api.HandleFunc("/integrations/{locationID}/token", h.HandleGetToken).Methods("GET")
	api.HandleFunc("/integrations/{locationID}/refresh", h.HandleRefreshIntegration).Methods("POST")
	api.HandleFunc("/integrations/{locationID}/deactivate", h.HandleDeactivateIntegration).Methods("POST")
	api.HandleFunc("/integrations/{locationID}/activate", h.HandleActivateIntegration).Methods("POST")
	api.HandleFunc("/integrations/{locationID}/whatsapp-token", h.HandleGetWhatsAppToken).Methods("GET")
	api.HandleFunc("/integrations/{locationID}/whatsapp-token", h.HandlePutWhatsAppToken).Methods("PUT")
	api.HandleFunc("/integrations/{locationID}/whatsapp-token", h.HandleDeleteWhatsAppToken).Methods("DELETE")
	api.HandleFunc("/webhooks/replay", h.HandleReplayWebhooks).Methods("POST")
}
