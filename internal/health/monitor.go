// Package health classifies stored credentials by freshness. The monitor
// only reads; it never triggers a refresh.
package health

import (
	"context"
	"math"
	"sort"
	"time"

	"crm-bridge/internal/models"
	"crm-bridge/internal/storage"
)

// Summary aggregates token freshness over all active integrations.
// Classification is by priority: expired first, then needs-refresh, then
// healthy, so each record counts exactly once.
type Summary struct {
	Total            int     `json:"total"`
	Expired          int     `json:"expired"`
	NeedsRefresh     int     `json:"needs_refresh"`
	Healthy          int     `json:"healthy"`
	HealthPercentage float64 `json:"health_percentage"`
}

// Monitor reads the credential store and reports freshness.
type Monitor struct {
	store storage.Store
}

func NewMonitor(store storage.Store) *Monitor {
	return &Monitor{store: store}
}

// Summary classifies every active integration at the current instant.
func (m *Monitor) Summary(ctx context.Context) (*Summary, error) {
	integrations, err := m.store.ListActiveIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	summary := &Summary{Total: len(integrations)}

	for _, integration := range integrations {
		switch {
		case integration.IsExpiredAt(now):
			summary.Expired++
		case integration.NeedsRefreshAt(now):
			summary.NeedsRefresh++
		default:
			summary.Healthy++
		}
	}

	if summary.Total > 0 {
		pct := float64(summary.Healthy) / float64(summary.Total) * 100
		summary.HealthPercentage = math.Round(pct*100) / 100
	}

	return summary, nil
}

// ExpiringWithin returns active integrations whose tokens expire within the
// given number of hours, soonest first. Already expired records qualify.
func (m *Monitor) ExpiringWithin(ctx context.Context, hours int) ([]*models.Integration, error) {
	integrations, err := m.store.ListActiveIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(time.Duration(hours) * time.Hour)
	var expiring []*models.Integration
	for _, integration := range integrations {
		if !integration.ExpiresAt.After(cutoff) {
			expiring = append(expiring, integration)
		}
	}

	sort.Slice(expiring, func(i, j int) bool {
		return expiring[i].ExpiresAt.Before(expiring[j].ExpiresAt)
	})

	return expiring, nil
}

// SeverelyExpired returns active integrations whose tokens expired more than
// the given number of days ago. These need operator attention; the hourly
// sweep has evidently been unable to repair them.
func (m *Monitor) SeverelyExpired(ctx context.Context, days int) ([]*models.Integration, error) {
	integrations, err := m.store.ListActiveIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	var severe []*models.Integration
	for _, integration := range integrations {
		if integration.ExpiresAt.Before(cutoff) {
			severe = append(severe, integration)
		}
	}

	sort.Slice(severe, func(i, j int) bool {
		return severe[i].ExpiresAt.Before(severe[j].ExpiresAt)
	})

	return severe, nil
}

// Unused returns active integrations that have not served a guarded call in
// the given number of days. Records never used at all qualify.
func (m *Monitor) Unused(ctx context.Context, days int) ([]*models.Integration, error) {
	integrations, err := m.store.ListActiveIntegrations(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	var unused []*models.Integration
	for _, integration := range integrations {
		if integration.LastUsedAt.IsZero() || integration.LastUsedAt.Before(cutoff) {
			unused = append(unused, integration)
		}
	}

	return unused, nil
}
