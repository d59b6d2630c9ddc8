// Package app wires the application components together and owns their
// lifecycle.
package app

import (
	"strconv"

	"crm-bridge/internal/auth"
	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/config"
	"crm-bridge/internal/crypto"
	"crm-bridge/internal/guard"
	"crm-bridge/internal/handlers"
	"crm-bridge/internal/health"
	"crm-bridge/internal/locks"
	"crm-bridge/internal/redis"
	"crm-bridge/internal/scheduler"
	"crm-bridge/internal/storage"
	"crm-bridge/internal/storage/factory"
	"crm-bridge/internal/tokens"
	"crm-bridge/internal/webhooks"
)

// contactLookupPath is the guarded proxy endpoint. The guard resolves the
// tenant and attaches a valid token before the handler runs.
const contactLookupPath = "/app/api/contacts/lookup"

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Store
	RedisClient *redis.Client
	LockManager locks.Manager
	Engine      *tokens.Engine
	Monitor     *health.Monitor
	Reconciler  *webhooks.Reconciler
	Auth        *auth.Auth
	SSODecoder  *crypto.SSODecoder
	Guard       *guard.Guard
	Handlers    *handlers.Handlers
	Scheduler   *scheduler.Scheduler
	Logger      logging.Logger
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	store, err := factory.NewStorage(cfg)
	if err != nil {
		return nil, err
	}
	app.Storage = store

	// Redis is optional. Without it, per-tenant locks are in-process only.
	if cfg.RedisAddress != "" {
		db, _ := strconv.Atoi(cfg.RedisDB)
		poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)
		client, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       db,
			PoolSize: poolSize,
		})
		if err != nil {
			app.Logger.Warn("Redis initialization failed, continuing without Redis",
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			app.RedisClient = client
		}
	}

	app.LockManager, err = locks.NewLockManager(app.RedisClient)
	if err != nil {
		return nil, err
	}
	app.Engine = tokens.NewEngine(cfg, store, app.LockManager, app.Logger)
	app.Monitor = health.NewMonitor(store)
	app.Reconciler = webhooks.NewReconciler(store, app.LockManager, app.Logger)

	app.Auth, err = auth.New(store, cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	// SSO decoding is optional; the endpoint reports unavailable without it.
	if cfg.SSOKey != "" {
		app.SSODecoder, err = crypto.NewSSODecoder(cfg.SSOKey)
		if err != nil {
			return nil, err
		}
	}

	app.Guard = guard.New(app.Engine, store, app.Logger, contactLookupPath)
	app.Handlers = handlers.New(
		store,
		app.Engine,
		app.Monitor,
		app.Reconciler,
		app.Auth,
		app.SSODecoder,
		cfg,
		app.RedisClient,
		app.Logger,
	)
	app.Scheduler = scheduler.New(app.Engine, app.Monitor, app.Reconciler, app.Logger)

	return app, nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
	if app.LockManager != nil {
		app.LockManager.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
}
