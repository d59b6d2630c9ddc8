// Package webhooks consumes provider lifecycle events and reconciles the
// credential store. Events are durably recorded before any state change and
// marked processed only after the transition completes, so a crash leaves a
// replayable event rather than lost state.
package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"crm-bridge/internal/common/errors"
	"crm-bridge/internal/common/logging"
	"crm-bridge/internal/locks"
	"crm-bridge/internal/models"
	"crm-bridge/internal/storage"
)

// Event kinds with reconciler transitions. Anything else is recorded for
// audit only.
const (
	EventInstall   = "INSTALL"
	EventUninstall = "UNINSTALL"
	EventUnknown   = "unknown"
)

// replayBatchSize bounds how many stored events one recovery pass re-drives.
const replayBatchSize = 100

// writeLockExpiry matches the refresh engine's lock expiry; both writers
// hold the same per-tenant lock.
const writeLockExpiry = 30 * time.Second

// Payload is the parsed, normalized form of an inbound webhook body.
type Payload struct {
	LocationID  string
	EventType   string
	CompanyID   string
	UserID      string
	CompanyName string
	Raw         string
}

// Reconciler applies lifecycle transitions to the credential store. Writes
// are serialized per tenant against the refresh engine through the shared
// lock manager.
type Reconciler struct {
	store  storage.Store
	locks  locks.Manager
	logger logging.Logger
}

func NewReconciler(store storage.Store, lockManager locks.Manager, logger logging.Logger) *Reconciler {
	if lockManager == nil {
		lockManager = locks.NewLocalManager()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Reconciler{store: store, locks: lockManager, logger: logger}
}

// Parse validates and normalizes a raw webhook body. The tenant id is taken
// from the first non-empty of locationId, location_id, location.id, and
// data.locationId; the event kind from type or eventType. A body that does
// not parse as JSON or carries no tenant id is rejected and never persisted.
func Parse(body []byte) (*Payload, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, errors.MalformedWebhookError("body is not valid JSON")
	}

	locationID := firstString(
		stringField(doc, "locationId"),
		stringField(doc, "location_id"),
		nestedStringField(doc, "location", "id"),
		nestedStringField(doc, "data", "locationId"),
	)
	if locationID == "" {
		return nil, errors.MalformedWebhookError("payload carries no location id")
	}

	eventType := firstString(stringField(doc, "type"), stringField(doc, "eventType"))
	if eventType == "" {
		eventType = EventUnknown
	}

	return &Payload{
		LocationID:  locationID,
		EventType:   eventType,
		CompanyID:   firstString(stringField(doc, "companyId"), stringField(doc, "company_id")),
		UserID:      firstString(stringField(doc, "userId"), stringField(doc, "user_id")),
		CompanyName: firstString(stringField(doc, "companyName"), stringField(doc, "company_name")),
		Raw:         string(body),
	}, nil
}

// Handle records the event durably, applies its transition, and marks it
// processed. Apply failures leave the event unprocessed for the recovery
// sweep.
func (r *Reconciler) Handle(ctx context.Context, payload *Payload) error {
	event, err := r.store.CreateWebhookEvent(ctx, &models.WebhookEvent{
		LocationID: payload.LocationID,
		EventType:  payload.EventType,
		Payload:    payload.Raw,
	})
	if err != nil {
		return err
	}

	if err := r.apply(ctx, payload); err != nil {
		r.logger.Error("Webhook apply failed, event left unprocessed", err,
			logging.String("event_id", event.ID),
			logging.String("location_id", payload.LocationID),
			logging.String("event_type", payload.EventType),
		)
		return err
	}

	return r.store.MarkWebhookProcessed(ctx, event.ID)
}

// apply performs the state transition for one event. Transitions are
// idempotent; re-applying converges to the same state.
func (r *Reconciler) apply(ctx context.Context, payload *Payload) error {
	switch payload.EventType {
	case EventInstall:
		return r.applyInstall(ctx, payload)
	case EventUninstall:
		return r.applyUninstall(ctx, payload)
	default:
		r.logger.Info("Webhook event recorded for audit only",
			logging.String("location_id", payload.LocationID),
			logging.String("event_type", payload.EventType),
		)
		return nil
	}
}

// applyInstall creates a placeholder record when the install event beats the
// OAuth callback, or reactivates an existing record. Metadata from the event
// merges in without blanking stored values. Runs under the tenant write lock
// so a concurrent refresh cannot overwrite the transition.
func (r *Reconciler) applyInstall(ctx context.Context, payload *Payload) error {
	lock, err := r.locks.AcquireLock(ctx, locks.RefreshKey(payload.LocationID), writeLockExpiry)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	existing, err := r.store.GetIntegrationByLocation(ctx, payload.LocationID)
	if err != nil && !errors.IsType(err, errors.ErrTypeNotFound) {
		return err
	}

	if existing == nil {
		_, err := r.store.UpsertIntegrationByLocation(ctx, &models.Integration{
			LocationID:  payload.LocationID,
			CompanyID:   payload.CompanyID,
			CompanyName: payload.CompanyName,
			UserID:      payload.UserID,
			ExpiresAt:   time.Now().Add(models.PlaceholderExpiry),
			IsActive:    true,
		})
		if err != nil {
			return err
		}

		r.logger.Info("Placeholder integration created from install webhook",
			logging.String("location_id", payload.LocationID),
		)
		return nil
	}

	existing.IsActive = true
	if payload.CompanyID != "" {
		existing.CompanyID = payload.CompanyID
	}
	if payload.CompanyName != "" {
		existing.CompanyName = payload.CompanyName
	}
	if payload.UserID != "" {
		existing.UserID = payload.UserID
	}

	if err := r.store.SaveIntegration(ctx, existing); err != nil {
		return err
	}

	r.logger.Info("Integration reactivated from install webhook",
		logging.String("location_id", payload.LocationID),
	)
	return nil
}

// applyUninstall soft-deactivates the record and cascade-deletes the linked
// WhatsApp token. Tokens and metadata stay in place for a later reinstall.
func (r *Reconciler) applyUninstall(ctx context.Context, payload *Payload) error {
	lock, err := r.locks.AcquireLock(ctx, locks.RefreshKey(payload.LocationID), writeLockExpiry)
	if err != nil {
		return err
	}
	defer lock.Release(ctx)

	integration, err := r.store.GetIntegrationByLocation(ctx, payload.LocationID)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeNotFound) {
			r.logger.Warn("Uninstall webhook for unknown location",
				logging.String("location_id", payload.LocationID),
			)
			return nil
		}
		return err
	}

	integration.IsActive = false
	if err := r.store.SaveIntegration(ctx, integration); err != nil {
		return err
	}

	if err := r.store.DeleteWhatsAppToken(ctx, payload.LocationID); err != nil {
		return err
	}

	r.logger.Info("Integration deactivated from uninstall webhook",
		logging.String("location_id", payload.LocationID),
	)
	return nil
}

// ReplayUnprocessed re-drives stored events whose transition never
// completed. Returns how many events were successfully applied.
func (r *Reconciler) ReplayUnprocessed(ctx context.Context) (int, error) {
	events, err := r.store.ListUnprocessedWebhookEvents(ctx, replayBatchSize)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, event := range events {
		payload, err := Parse([]byte(event.Payload))
		if err != nil {
			// A stored payload that no longer parses cannot be re-driven;
			// mark it processed so it stops blocking the sweep.
			r.logger.Warn("Dropping unparseable stored webhook event",
				logging.String("event_id", event.ID),
			)
			if markErr := r.store.MarkWebhookProcessed(ctx, event.ID); markErr != nil {
				return replayed, markErr
			}
			continue
		}

		if err := r.apply(ctx, payload); err != nil {
			r.logger.Error("Webhook replay failed", err,
				logging.String("event_id", event.ID),
				logging.String("location_id", payload.LocationID),
			)
			continue
		}

		if err := r.store.MarkWebhookProcessed(ctx, event.ID); err != nil {
			return replayed, err
		}
		replayed++
	}

	return replayed, nil
}

func stringField(doc map[string]interface{}, key string) string {
	if value, ok := doc[key].(string); ok {
		return value
	}
	return ""
}

func nestedStringField(doc map[string]interface{}, outer, inner string) string {
	nested, ok := doc[outer].(map[string]interface{})
	if !ok {
		return ""
	}
	return stringField(nested, inner)
}

func firstString(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
