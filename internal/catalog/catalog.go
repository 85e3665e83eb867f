// Package catalog provides the built-in list of recommended subscriptions.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/bnema/adblock-engine/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed subscriptions.yaml
var defaultCatalog []byte

// Entry is one recommended subscription
type Entry struct {
	Title          string   `yaml:"title"`
	Specialization string   `yaml:"specialization"`
	URL            string   `yaml:"url"`
	Homepage       string   `yaml:"homepage"`
	Author         string   `yaml:"author"`
	Prefixes       []string `yaml:"prefixes"`
	Type           string   `yaml:"type"`
}

// Catalog is a parsed list of recommendations
type Catalog struct {
	entries []Entry
}

// Default returns the embedded catalog
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded subscription catalog: %v", err))
	}
	return c
}

// Parse reads a catalog document
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Subscriptions []Entry `yaml:"subscriptions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing subscription catalog: %w", err)
	}

	seen := make(map[string]bool, len(doc.Subscriptions))
	for i, e := range doc.Subscriptions {
		if e.URL == "" {
			return nil, fmt.Errorf("catalog entry %d (%q) has no url", i, e.Title)
		}
		if seen[e.URL] {
			return nil, fmt.Errorf("duplicate catalog url %s", e.URL)
		}
		seen[e.URL] = true
	}
	return &Catalog{entries: doc.Subscriptions}, nil
}

// Entries returns the raw catalog entries
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Recommended returns a fresh subscription for every entry, carrying the
// catalog's display metadata
func (c *Catalog) Recommended() []models.Subscription {
	subs := make([]models.Subscription, 0, len(c.entries))
	for _, e := range c.entries {
		sub := models.NewSubscription(e.URL)
		sub.Title = e.Title
		sub.Homepage = e.Homepage
		sub.Author = e.Author
		sub.Specialization = e.Specialization
		sub.Prefixes = append([]string(nil), e.Prefixes...)
		subs = append(subs, sub)
	}
	return subs
}

// ForLocale returns the ads subscription recommended for a locale such as
// "de-DE", falling back to the first ads entry
func (c *Catalog) ForLocale(locale string) (models.Subscription, bool) {
	lang := strings.ToLower(strings.SplitN(strings.ReplaceAll(locale, "_", "-"), "-", 2)[0])

	var fallback *Entry
	for i := range c.entries {
		e := &c.entries[i]
		if e.Type != "ads" {
			continue
		}
		if fallback == nil {
			fallback = e
		}
		for _, p := range e.Prefixes {
			if strings.EqualFold(p, lang) {
				return c.subscription(e), true
			}
		}
	}
	if fallback == nil {
		return models.Subscription{}, false
	}
	return c.subscription(fallback), true
}

func (c *Catalog) subscription(e *Entry) models.Subscription {
	for _, sub := range c.Recommended() {
		if sub.URL == e.URL {
			return sub
		}
	}
	return models.NewSubscription(e.URL)
}
