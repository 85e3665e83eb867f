package engine

import (
	"context"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/notification"
	"github.com/bnema/adblock-engine/internal/signature"
	"github.com/bnema/adblock-engine/internal/urlutil"
	"github.com/bnema/adblock-engine/internal/version"
)

// ShowNextNotification returns the next notification for the page URL
// (empty for none) and notifies the show listeners
func (e *Engine) ShowNextNotification(url string) *models.Notification {
	return e.notifications.ShowNext(url)
}

// AddShowNotificationListener registers a callback for shown notifications
func (e *Engine) AddShowNotificationListener(fn func(models.Notification)) {
	e.notifications.AddShowListener(fn)
}

// NotificationTexts returns the texts of a notification in the configured locale
func (e *Engine) NotificationTexts(n models.Notification) notification.Texts {
	return e.notifications.LocalizedTexts(n)
}

// MarkNotificationAsShown keeps a notification from being shown again
func (e *Engine) MarkNotificationAsShown(ctx context.Context, id string) error {
	return e.notifications.MarkAsShown(ctx, id)
}

// RefreshNotifications reloads the notification source
func (e *Engine) RefreshNotifications(ctx context.Context) error {
	return e.notifications.Refresh(ctx)
}

// Pref returns a preference value
func (e *Engine) Pref(key string) (any, bool) {
	return e.prefs.Get(key)
}

// Prefs returns every preference with its current value
func (e *Engine) Prefs() map[string]any {
	return e.prefs.All()
}

// SetPref changes a preference; nil restores the default
func (e *Engine) SetPref(ctx context.Context, key string, value any) error {
	return e.prefs.Set(ctx, key, value)
}

// HostFromURL extracts the host name of a URL
func (e *Engine) HostFromURL(url string) string {
	return urlutil.HostFromURL(url)
}

// CompareVersions compares two application version strings
func (e *Engine) CompareVersions(a, b string) int {
	return version.Compare(a, b)
}

// VerifySignature checks a site key signature over uri, host and user agent
func (e *Engine) VerifySignature(key, sig, uri, host, userAgent string) bool {
	return e.verifier.VerifySignature(key, sig, signature.CanonicalString(uri, host, userAgent))
}
