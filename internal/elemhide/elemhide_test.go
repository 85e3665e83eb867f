package elemhide

import (
	"testing"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriptionWith(t *testing.T, url string, texts ...string) models.Subscription {
	t.Helper()
	sub := models.NewSubscription(url)
	for _, text := range texts {
		f, err := parser.FromText(text)
		require.NoError(t, err)
		sub.Filters = append(sub.Filters, f)
	}
	return sub
}

func newHider(t *testing.T) *ElementHider {
	h := New()
	h.Rebuild([]models.Subscription{
		subscriptionWith(t, "https://lists.example/list.txt",
			"##.banner",
			"example.com##.sidebar-ad",
			"example.com,~shop.example.com##.promo",
			"news.example.com##.sticky",
			"##.generic-ad",
			"example.com#@#.generic-ad",
			"example.com#?#div:-abp-has(.sponsored)",
			"example.com,~forum.example.com#?#article:-abp-contains(Promoted)",
			"example.com#@#article:-abp-contains(Promoted)",
			"other.org##.banner",
		),
		subscriptionWith(t, "~user~1", "##.banner", "foo.example.com##.user-rule"),
	})
	return h
}

func TestSelectorsForDomain(t *testing.T) {
	h := newHider(t)

	tests := []struct {
		name           string
		domain         string
		includeGeneric bool
		expected       []string
	}{
		{
			name:           "specific and generic with exception",
			domain:         "example.com",
			includeGeneric: true,
			expected:       []string{".banner", ".sidebar-ad", ".promo"},
		},
		{
			name:     "specific only",
			domain:   "example.com",
			expected: []string{".sidebar-ad", ".promo"},
		},
		{
			name:     "subdomain inherits parent domain filters",
			domain:   "news.example.com",
			expected: []string{".sidebar-ad", ".promo", ".sticky"},
		},
		{
			name:     "excluded subdomain",
			domain:   "shop.example.com",
			expected: []string{".sidebar-ad"},
		},
		{
			name:           "generic only on unrelated domain",
			domain:         "unrelated.net",
			includeGeneric: true,
			expected:       []string{".banner", ".generic-ad"},
		},
		{
			name:           "duplicate selector reported once",
			domain:         "other.org",
			includeGeneric: true,
			expected:       []string{".banner", ".generic-ad"},
		},
		{
			name:     "case and trailing dot",
			domain:   "Foo.Example.com.",
			expected: []string{".sidebar-ad", ".promo", ".user-rule"},
		},
		{
			name:   "nothing specific",
			domain: "unrelated.net",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, h.SelectorsForDomain(tt.domain, tt.includeGeneric))
		})
	}
}

func TestRulesForDomain(t *testing.T) {
	h := newHider(t)

	rules := h.RulesForDomain("www.example.com")
	require.Len(t, rules, 1)
	assert.Equal(t, "div:-abp-has(.sponsored)", rules[0].Selector)
	assert.Equal(t, "example.com#?#div:-abp-has(.sponsored)", rules[0].Text)

	assert.Empty(t, h.RulesForDomain("unrelated.net"))
}

func TestRebuildSkipsDisabled(t *testing.T) {
	sub := subscriptionWith(t, "https://lists.example/list.txt", "##.banner")
	sub.Disabled = true

	h := New()
	h.Rebuild([]models.Subscription{sub})
	assert.Empty(t, h.SelectorsForDomain("example.com", true))
	assert.Equal(t, 0, h.Stats().Generic)
}

func TestStats(t *testing.T) {
	h := newHider(t)
	stats := h.Stats()
	assert.Equal(t, 2, stats.Generic)
	assert.Equal(t, 2, stats.Exceptions)
	assert.Equal(t, 2, stats.Emulation)
	assert.Equal(t, 5, stats.Specific)
}
