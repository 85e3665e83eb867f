// Package repository defines data access interfaces for engine state.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/bnema/adblock-engine/internal/models"
)

// SubscriptionRepository defines operations for subscription persistence.
type SubscriptionRepository interface {
	// GetAll retrieves all subscriptions with their filters in list order.
	GetAll(ctx context.Context) ([]*models.Subscription, error)
	// GetByURL retrieves a subscription by URL. Returns nil when absent.
	GetByURL(ctx context.Context, url string) (*models.Subscription, error)
	// Save creates or replaces a subscription including its filters.
	// New subscriptions are appended to the list.
	Save(ctx context.Context, sub *models.Subscription) error
	// SaveMetadata updates everything but the filters of a stored subscription.
	SaveMetadata(ctx context.Context, sub *models.Subscription) error
	// Delete deletes a subscription and its filters by URL.
	Delete(ctx context.Context, url string) error
	// Count returns the number of stored subscriptions.
	Count(ctx context.Context) (int64, error)
}

// PreferenceRepository defines operations for preference overrides.
type PreferenceRepository interface {
	// GetAll retrieves all stored preference values as JSON documents.
	GetAll(ctx context.Context) (map[string]string, error)
	// Set stores the JSON encoded value of a preference.
	Set(ctx context.Context, key, value string) error
	// Delete removes a stored preference so its default applies again.
	Delete(ctx context.Context, key string) error
}

// NotificationStateRepository records which notifications were shown.
type NotificationStateRepository interface {
	// ShownAt returns the time each shown notification was first shown.
	ShownAt(ctx context.Context) (map[string]time.Time, error)
	// MarkShown records a notification as shown. Marking twice keeps the first time.
	MarkShown(ctx context.Context, id string, at time.Time) error
}
