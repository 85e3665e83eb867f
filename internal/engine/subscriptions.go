package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/prefs"
	"github.com/bnema/adblock-engine/internal/synchronizer"
)

// GetSubscriptionFromURL returns the listed subscription for the URL, or a
// new unlisted one
func (e *Engine) GetSubscriptionFromURL(url string) models.Subscription {
	if sub, ok := e.store.Subscription(url); ok {
		return sub
	}
	return models.NewSubscription(url)
}

// ListedSubscriptions returns the downloadable subscriptions in list order
func (e *Engine) ListedSubscriptions() []models.Subscription {
	var out []models.Subscription
	for _, sub := range e.store.Subscriptions() {
		if !sub.IsSpecial() {
			out = append(out, sub)
		}
	}
	return out
}

// IsListedSubscription reports whether the URL is listed
func (e *Engine) IsListedSubscription(url string) bool {
	return e.store.Has(url)
}

// AddSubscriptionToList lists a subscription and starts its first download
// when it was never downloaded
func (e *Engine) AddSubscriptionToList(ctx context.Context, sub models.Subscription) error {
	if err := e.store.AddSubscription(ctx, sub); err != nil {
		return err
	}
	stored, ok := e.store.Subscription(sub.URL)
	if ok && stored.NeverDownloaded() && !stored.IsSpecial() {
		e.sync.Execute(stored)
	}
	return nil
}

// RemoveSubscriptionFromList removes a subscription. Returns false when it
// was not listed.
func (e *Engine) RemoveSubscriptionFromList(ctx context.Context, url string) (bool, error) {
	return e.store.RemoveSubscription(ctx, url)
}

// UpdateSubscription starts a download of a listed subscription. A
// download already running for the URL is returned instead.
func (e *Engine) UpdateSubscription(url string) (*synchronizer.Task, error) {
	sub, ok := e.store.Subscription(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSubscriptionNotFound, url)
	}
	return e.sync.Execute(sub), nil
}

// IsSubscriptionUpdating reports whether a download for the URL is running
func (e *Engine) IsSubscriptionUpdating(url string) bool {
	return e.sync.IsExecuting(url)
}

// RecommendedSubscriptions returns the catalog recommendations
func (e *Engine) RecommendedSubscriptions() []models.Subscription {
	return e.catalog.Recommended()
}

// IsAASubscription reports whether the URL is the acceptable ads list
func (e *Engine) IsAASubscription(url string) bool {
	return url != "" && url == e.prefs.String(prefs.KeyExceptionsURL)
}

// aaSubscription finds the listed acceptable ads subscription
func (e *Engine) aaSubscription() (models.Subscription, bool) {
	return e.store.Subscription(e.prefs.String(prefs.KeyExceptionsURL))
}

// SetAASubscriptionEnabled toggles the acceptable ads list. Enabling lists
// it when absent, enables it and downloads it when never downloaded.
// Disabling only flags a listed subscription.
func (e *Engine) SetAASubscriptionEnabled(ctx context.Context, enabled bool) error {
	e.aaMu.Lock()
	defer e.aaMu.Unlock()

	sub, listed := e.aaSubscription()
	if !enabled {
		if !listed || sub.Disabled {
			return nil
		}
		_, err := e.store.SetDisabled(ctx, sub.URL, true)
		return err
	}

	if !listed {
		aa := models.NewSubscription(e.prefs.String(prefs.KeyExceptionsURL))
		aa.Title = "Allow nonintrusive advertising"
		if err := e.store.AddSubscription(ctx, aa); err != nil && !errors.Is(err, models.ErrDuplicateSubscription) {
			return err
		}
		if sub, listed = e.aaSubscription(); !listed {
			return fmt.Errorf("%w: %s", models.ErrSubscriptionNotFound, aa.URL)
		}
	}
	if sub.Disabled {
		if _, err := e.store.SetDisabled(ctx, sub.URL, false); err != nil {
			return err
		}
	}
	if sub.NeverDownloaded() {
		e.sync.Execute(sub)
	}
	e.logger.Info("acceptable ads enabled", slog.String("url", sub.URL))
	return nil
}

// IsAASubscriptionEnabled reports whether the acceptable ads list is listed
// and enabled
func (e *Engine) IsAASubscriptionEnabled() bool {
	sub, ok := e.aaSubscription()
	return ok && !sub.Disabled
}
