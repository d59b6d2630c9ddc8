// Package handlers implements the HTTP surface: OAuth install/callback,
// the provider webhook endpoint, the admin token API, and the guarded
// contact lookup proxy.
package handlers

import (
	"encoding/json"
	"net/http"

	"crm-bridge/internal/auth"
	"crm-bridge/internal/common/errors"
	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/config"
	"crm-bridge/internal/crypto"
	"crm-bridge/internal/health"
	"crm-bridge/internal/redis"
	"crm-bridge/internal/storage"
	"crm-bridge/internal/tokens"
	"crm-bridge/internal/webhooks"
)

type Handlers struct {
	store      storage.Store
	engine     *tokens.Engine
	monitor    *health.Monitor
	reconciler *webhooks.Reconciler
	auth       *auth.Auth
	sso        *crypto.SSODecoder
	config     *config.Config
	redis      *redis.Client
	logger     logging.Logger
}

// New wires the handler set. The SSO decoder and Redis client are optional;
// endpoints depending on them degrade explicitly when absent.
func New(
	store storage.Store,
	engine *tokens.Engine,
	monitor *health.Monitor,
	reconciler *webhooks.Reconciler,
	authService *auth.Auth,
	ssoDecoder *crypto.SSODecoder,
	cfg *config.Config,
	redisClient *redis.Client,
	logger logging.Logger,
) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Handlers{
		store:      store,
		engine:     engine,
		monitor:    monitor,
		reconciler: reconciler,
		auth:       authService,
		sso:        ssoDecoder,
		config:     cfg,
		redis:      redisClient,
		logger:     logger,
	}
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondAppError maps the error taxonomy onto HTTP statuses.
func (h *Handlers) respondAppError(w http.ResponseWriter, err error) {
	switch errors.GetType(err) {
	case errors.ErrTypeNotFound:
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.ErrTypeValidation, errors.ErrTypeMalformedWebhook:
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.ErrTypeAuth:
		h.respondError(w, http.StatusUnauthorized, err.Error())
	case errors.ErrTypeInactiveIntegration, errors.ErrTypeMissingRefreshToken, errors.ErrTypeRefreshFailed:
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.ErrTypeNetwork:
		h.respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
