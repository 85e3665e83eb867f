// Package notification decides which notification to show next and keeps
// track of the ones already shown.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/repository"
	"github.com/bnema/adblock-engine/internal/urlutil"
	"github.com/bnema/adblock-engine/internal/version"
	"golang.org/x/text/language"
)

// FallbackLocale is used when no text matches the requested locale
const FallbackLocale = "en-US"

// Texts are the localized strings of a notification
type Texts struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Options configures a Manager
type Options struct {
	App    models.AppInfo
	Locale func() string
	// Ignored returns the ignored notification categories; "*" ignores
	// everything except critical notifications.
	Ignored func() []string
	Logger  *slog.Logger
}

// Manager selects and tracks notifications
type Manager struct {
	mu        sync.RWMutex
	source    Source
	repo      repository.NotificationStateRepository
	local     []models.Notification
	remote    []models.Notification
	shown     map[string]time.Time
	listeners []func(models.Notification)
	opts      Options
	logger    *slog.Logger
}

// New creates a manager. A nil repository keeps the shown state in memory.
func New(source Source, repo repository.NotificationStateRepository, opts Options) *Manager {
	if source == nil {
		source = StaticSource(nil)
	}
	if opts.Locale == nil {
		opts.Locale = func() string { return FallbackLocale }
	}
	if opts.Ignored == nil {
		opts.Ignored = func() []string { return nil }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source: source,
		repo:   repo,
		shown:  make(map[string]time.Time),
		opts:   opts,
		logger: logger,
	}
}

// Load reads the shown state and the notifications of the source
func (m *Manager) Load(ctx context.Context) error {
	if m.repo != nil {
		shown, err := m.repo.ShownAt(ctx)
		if err != nil {
			return fmt.Errorf("loading notification state: %w", err)
		}
		m.mu.Lock()
		m.shown = shown
		m.mu.Unlock()
	}
	return m.Refresh(ctx)
}

// Refresh reloads the notifications of the source
func (m *Manager) Refresh(ctx context.Context) error {
	notifications, err := m.source.Notifications(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.remote = notifications
	m.mu.Unlock()

	m.logger.Debug("notifications loaded", slog.Int("count", len(notifications)))
	return nil
}

// Add queues a locally generated notification
func (m *Manager) Add(n models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.local = slices.DeleteFunc(m.local, func(o models.Notification) bool { return o.ID == n.ID })
	m.local = append(m.local, n)
}

// Remove drops a locally generated notification
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local = slices.DeleteFunc(m.local, func(o models.Notification) bool { return o.ID == id })
}

// AddShowListener registers a callback receiving every notification
// returned by ShowNext
func (m *Manager) AddShowListener(fn func(models.Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// ShowNext picks the most urgent notification for the page URL (empty for
// none) and hands it to the show listeners. It returns nil when nothing is
// due.
func (m *Manager) ShowNext(url string) *models.Notification {
	m.mu.RLock()
	next := m.next(url)
	listeners := slices.Clone(m.listeners)
	m.mu.RUnlock()

	if next == nil {
		return nil
	}
	for _, fn := range listeners {
		fn(*next)
	}
	return next
}

func (m *Manager) next(url string) *models.Notification {
	ignoreAll := slices.Contains(m.opts.Ignored(), "*")
	host := urlutil.HostFromURL(url)

	var best *models.Notification
	for _, list := range [][]models.Notification{m.local, m.remote} {
		for i := range list {
			n := &list[i]
			if n.Type != models.NotificationCritical {
				if _, shown := m.shown[n.ID]; shown || ignoreAll {
					continue
				}
			}
			// Notifications with URL filters only show on matching pages,
			// the others only outside of a page
			if url != "" || len(n.URLFilters) > 0 {
				if url == "" || len(n.URLFilters) == 0 || !matchesHost(n.URLFilters, host) {
					continue
				}
			}
			if len(n.Targets) > 0 && !m.targeted(n.Targets) {
				continue
			}
			if best == nil || n.Type.Priority() > best.Type.Priority() {
				best = n
			}
		}
	}

	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func matchesHost(domains []string, host string) bool {
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "||"))
		d = strings.TrimRight(d, "^")
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (m *Manager) targeted(targets []models.NotificationTarget) bool {
	app := m.opts.App
	for _, t := range targets {
		if t.Application != "" && !strings.EqualFold(t.Application, app.Application) {
			continue
		}
		if !inRange(app.ApplicationVersion, t.ApplicationMinVersion, t.ApplicationMaxVersion) {
			continue
		}
		if t.Platform != "" && !strings.EqualFold(t.Platform, app.Platform) {
			continue
		}
		if !inRange(app.PlatformVersion, t.PlatformMinVersion, t.PlatformMaxVersion) {
			continue
		}
		return true
	}
	return false
}

func inRange(v, lo, hi string) bool {
	if lo != "" && version.Compare(v, lo) < 0 {
		return false
	}
	if hi != "" && version.Compare(v, hi) > 0 {
		return false
	}
	return true
}

// MarkAsShown records a notification as shown so it is not offered again.
// Critical notifications stay eligible.
func (m *Manager) MarkAsShown(ctx context.Context, id string) error {
	now := time.Now()
	if m.repo != nil {
		if err := m.repo.MarkShown(ctx, id, now); err != nil {
			return fmt.Errorf("marking notification %s as shown: %w", id, err)
		}
	}

	m.mu.Lock()
	if _, ok := m.shown[id]; !ok {
		m.shown[id] = now
	}
	m.mu.Unlock()
	return nil
}

// IsShown reports whether the notification was marked as shown
func (m *Manager) IsShown(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.shown[id]
	return ok
}

// LocalizedTexts returns the texts in the configured locale, falling back
// to the closest available language and then to en-US.
func (m *Manager) LocalizedTexts(n models.Notification) Texts {
	locale := m.opts.Locale()
	return Texts{
		Title:   localize(n.Title, locale),
		Message: localize(n.Message, locale),
	}
}

func localize(texts map[string]string, locale string) string {
	if len(texts) == 0 {
		return ""
	}
	if text, ok := texts[locale]; ok {
		return text
	}

	keys := make([]string, 0, len(texts))
	for k := range texts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	// The matcher falls back to the first supported tag
	if i := slices.Index(keys, FallbackLocale); i > 0 {
		keys[0], keys[i] = keys[i], keys[0]
	}

	var tags []language.Tag
	var tagKeys []string
	for _, k := range keys {
		tag, err := language.Parse(k)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		tagKeys = append(tagKeys, k)
	}
	if len(tags) == 0 {
		return texts[keys[0]]
	}

	want, err := language.Parse(locale)
	if err != nil {
		want = language.AmericanEnglish
	}
	_, index, _ := language.NewMatcher(tags).Match(want)
	return texts[tagKeys[index]]
}
