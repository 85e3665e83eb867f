// Package prefs holds engine preferences: defaults derived from the
// configuration, overridden by values persisted through the repository.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/repository"
)

// Preference keys
const (
	KeyExceptionsURL        = "subscriptions_exceptionsurl"
	KeyAutoUpdate           = "subscriptions_autoupdate"
	KeyFallbackErrors       = "subscriptions_fallbackerrors"
	KeyNotificationsIgnored = "notifications_ignoredcategories"
	KeyNotificationsURL     = "notificationurl"
	KeyLocale               = "locale"
	KeyFirstRunDone         = "first_run_done"
)

// DefaultExceptionsURL is the acceptable ads list
const DefaultExceptionsURL = "https://easylist-downloads.adblockplus.org/exceptionrules.txt"

// Defaults returns the default preference values for a configuration
func Defaults(cfg models.Config) map[string]any {
	exceptionsURL := cfg.Subscriptions.ExceptionsURL
	if exceptionsURL == "" {
		exceptionsURL = DefaultExceptionsURL
	}
	locale := cfg.Subscriptions.Locale
	if locale == "" {
		locale = "en-US"
	}

	return map[string]any{
		KeyExceptionsURL:        exceptionsURL,
		KeyAutoUpdate:           true,
		KeyFallbackErrors:       float64(5),
		KeyNotificationsIgnored: []any{},
		KeyNotificationsURL:     cfg.Subscriptions.NotificationsFile,
		KeyLocale:               locale,
		KeyFirstRunDone:         false,
	}
}

// ChangeFunc is called after a preference changed
type ChangeFunc func(key string, value any)

// Store resolves preference values
type Store struct {
	mu        sync.RWMutex
	defaults  map[string]any
	overrides map[string]any
	repo      repository.PreferenceRepository
	listeners []ChangeFunc
	logger    *slog.Logger
}

// New creates a preference store. A nil repository keeps overrides in memory.
func New(defaults map[string]any, repo repository.PreferenceRepository) *Store {
	return &Store{
		defaults:  maps.Clone(defaults),
		overrides: make(map[string]any),
		repo:      repo,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Load reads persisted overrides. Values that no longer decode or whose key
// has no default are ignored.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	stored, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, raw := range stored {
		def, known := s.defaults[key]
		if !known {
			continue
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil || !sameKind(def, value) {
			s.logger.Warn("ignoring stored preference",
				slog.String("key", key),
				slog.String("value", raw))
			continue
		}
		s.overrides[key] = value
	}
	return nil
}

// OnChange registers a change callback
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Get returns the current value of a preference
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.overrides[key]; ok {
		return v, true
	}
	v, ok := s.defaults[key]
	return v, ok
}

// String returns a string preference or "" when unset or of another type
func (s *Store) String(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Bool returns a boolean preference or false
func (s *Store) Bool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// Strings returns a list preference
func (s *Store) Strings(key string) []string {
	v, _ := s.Get(key)
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	return out
}

// All returns every preference with its current value
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := maps.Clone(s.defaults)
	maps.Copy(all, s.overrides)
	return all
}

// Set changes a preference. The value must have the JSON type of the
// default; setting nil restores the default.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	s.mu.Lock()

	def, known := s.defaults[key]
	if !known {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", models.ErrUnknownPreference, key)
	}

	if value == nil {
		if s.repo != nil {
			if err := s.repo.Delete(ctx, key); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("resetting preference %s: %w", key, err)
			}
		}
		delete(s.overrides, key)
		value = def
	} else {
		raw, err := json.Marshal(value)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("encoding preference %s: %w", key, err)
		}
		// Normalize to the JSON representation used after a reload
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("encoding preference %s: %w", key, err)
		}
		if !sameKind(def, decoded) {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s expects a %s value", models.ErrPreferenceType, key, kindOf(def))
		}
		if s.repo != nil {
			if err := s.repo.Set(ctx, key, string(raw)); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("saving preference %s: %w", key, err)
			}
		}
		s.overrides[key] = decoded
		value = decoded
	}

	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(key, value)
	}
	return nil
}

func kindOf(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	}
	return "unknown"
}

func sameKind(a, b any) bool {
	return kindOf(a) == kindOf(b)
}
