package matcher

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

func filterText(f *models.Filter) string {
	if f == nil {
		return ""
	}
	return f.Text
}

func TestMatchesAny(t *testing.T) {
	m := New()
	m.Rebuild([]models.Subscription{
		subscriptionWith(t, "https://lists.example/list.txt",
			"||ads.example.com^",
			"@@||ads.example.com/allow.js",
			"||tracker.net^$third-party",
			"||img.example.com^$image",
			"/adframe.$domain=example.com|~shop.example.com",
			"/Banner/$match-case",
			"@@||cdn.example.org^$sitekey=key1",
			"||cdn.example.org^",
			"&adid=",
		),
	})

	tests := []struct {
		name        string
		url         string
		contentType models.ContentType
		docHost     string
		thirdParty  bool
		siteKey     string
		expected    string
	}{
		{
			name:        "host anchored filter",
			url:         "https://ads.example.com/banner.js",
			contentType: models.ContentScript,
			docHost:     "news.example.net",
			thirdParty:  true,
			expected:    "||ads.example.com^",
		},
		{
			name:        "subdomain of anchored host",
			url:         "https://cdn.ads.example.com/x.js",
			contentType: models.ContentScript,
			docHost:     "news.example.net",
			thirdParty:  true,
			expected:    "||ads.example.com^",
		},
		{
			name:        "host suffix that is not a subdomain",
			url:         "https://notads.example.com/x.js",
			contentType: models.ContentScript,
			docHost:     "news.example.net",
			thirdParty:  true,
		},
		{
			name:        "host as a label prefix",
			url:         "https://ads.example.com.evil.net/x.js",
			contentType: models.ContentScript,
			docHost:     "news.example.net",
			thirdParty:  true,
		},
		{
			name:        "allowlist wins",
			url:         "https://ads.example.com/allow.js",
			contentType: models.ContentScript,
			docHost:     "news.example.net",
			thirdParty:  true,
			expected:    "@@||ads.example.com/allow.js",
		},
		{
			name:        "document requests are not blocked by default",
			url:         "https://ads.example.com/",
			contentType: models.ContentDocument,
			docHost:     "ads.example.com",
		},
		{
			name:        "third-party filter on third-party request",
			url:         "https://tracker.net/pixel.gif",
			contentType: models.ContentImage,
			docHost:     "example.com",
			thirdParty:  true,
			expected:    "||tracker.net^$third-party",
		},
		{
			name:        "third-party filter on first-party request",
			url:         "https://tracker.net/pixel.gif",
			contentType: models.ContentImage,
			docHost:     "tracker.net",
			thirdParty:  false,
		},
		{
			name:        "content type matches",
			url:         "https://img.example.com/a.png",
			contentType: models.ContentImage,
			docHost:     "example.com",
			expected:    "||img.example.com^$image",
		},
		{
			name:        "content type does not match",
			url:         "https://img.example.com/a.js",
			contentType: models.ContentScript,
			docHost:     "example.com",
		},
		{
			name:        "domain option include",
			url:         "https://static.example.org/adframe.html",
			contentType: models.ContentSubdocument,
			docHost:     "www.example.com",
			thirdParty:  true,
			expected:    "/adframe.$domain=example.com|~shop.example.com",
		},
		{
			name:        "domain option exclude",
			url:         "https://static.example.org/adframe.html",
			contentType: models.ContentSubdocument,
			docHost:     "shop.example.com",
			thirdParty:  true,
		},
		{
			name:        "domain option other domain",
			url:         "https://static.example.org/adframe.html",
			contentType: models.ContentSubdocument,
			docHost:     "other.org",
			thirdParty:  true,
		},
		{
			name:        "match-case hit",
			url:         "https://example.org/Banner.gif",
			contentType: models.ContentImage,
			docHost:     "example.org",
			expected:    "/Banner/$match-case",
		},
		{
			name:        "match-case miss",
			url:         "https://example.org/banner.gif",
			contentType: models.ContentImage,
			docHost:     "example.org",
		},
		{
			name:        "sitekey allowlist",
			url:         "https://cdn.example.org/lib.js",
			contentType: models.ContentScript,
			docHost:     "parked.example",
			thirdParty:  true,
			siteKey:     "key1",
			expected:    "@@||cdn.example.org^$sitekey=key1",
		},
		{
			name:        "sitekey mismatch falls back to blocking",
			url:         "https://cdn.example.org/lib.js",
			contentType: models.ContentScript,
			docHost:     "parked.example",
			thirdParty:  true,
			siteKey:     "other",
			expected:    "||cdn.example.org^",
		},
		{
			name:        "keyword indexed filter",
			url:         "https://example.org/click?x=1&adid=42",
			contentType: models.ContentXMLHTTPRequest,
			docHost:     "example.org",
			expected:    "&adid=",
		},
		{
			name:        "no match",
			url:         "https://example.org/index.js",
			contentType: models.ContentScript,
			docHost:     "example.org",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := m.MatchesAny(tt.url, tt.contentType, tt.docHost, tt.thirdParty, tt.siteKey)
			assert.Equal(t, tt.expected, filterText(f))

			// second lookup is served from the cache
			f = m.MatchesAny(tt.url, tt.contentType, tt.docHost, tt.thirdParty, tt.siteKey)
			assert.Equal(t, tt.expected, filterText(f))
		})
	}
}

func TestRebuildDropsRemovedFilters(t *testing.T) {
	m := New()
	url := "https://ads.example.com/banner.js"

	m.Rebuild([]models.Subscription{subscriptionWith(t, "~user~1", "||ads.example.com^")})
	require.NotNil(t, m.MatchesAny(url, models.ContentScript, "news.example.net", true, ""))

	m.Rebuild(nil)
	assert.Nil(t, m.MatchesAny(url, models.ContentScript, "news.example.net", true, ""))
}

func TestRebuildSkipsDisabledSubscriptions(t *testing.T) {
	sub := subscriptionWith(t, "https://lists.example/list.txt", "||ads.example.com^")
	sub.Disabled = true

	m := New()
	m.Rebuild([]models.Subscription{sub})

	assert.Nil(t, m.MatchesAny("https://ads.example.com/x.js", models.ContentScript, "example.net", true, ""))
	assert.Equal(t, 0, m.Stats().Blocking)
}

func TestRebuildDeduplicatesFilters(t *testing.T) {
	m := New()
	m.Rebuild([]models.Subscription{
		subscriptionWith(t, "https://a.example/list.txt", "||ads.example.com^", "/banner/*"),
		subscriptionWith(t, "https://b.example/list.txt", "||ads.example.com^", "@@/banner/ok"),
	})

	stats := m.Stats()
	assert.Equal(t, 2, stats.Blocking)
	assert.Equal(t, 1, stats.Allowlist)
	assert.Equal(t, 1, stats.Hosts)
}

func TestInvalidRegexNeverMatches(t *testing.T) {
	// built by hand since the parser rejects it
	sub := models.NewSubscription("~user~1")
	sub.Filters = []*models.Filter{{
		Type:    models.FilterTypeBlocking,
		Text:    "/ads(/",
		Pattern: "/ads(/",
		Options: models.FilterOptions{ContentTypes: models.DefaultContentTypes},
	}}

	m := New()
	m.Rebuild([]models.Subscription{sub})
	assert.Nil(t, m.MatchesAny("https://example.com/ads(", models.ContentScript, "example.com", false, ""))
}

func TestMatchesAnyInternationalHost(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		url    string
	}{
		{"punycode filter, unicode url", "||xn--bcher-kva.example^", "https://bücher.example/ad.js"},
		{"unicode filter, unicode url", "||bücher.example^", "https://bücher.example/ad.js"},
		{"unicode filter, punycode url", "||bücher.example^", "https://xn--bcher-kva.example/ad.js"},
		{"unicode filter with path", "||bücher.example/ad.js", "https://bücher.example/ad.js"},
		{"scheme anchored unicode filter", "|https://bücher.example/", "https://bücher.example/ad.js"},
		{"unanchored keyword filter", "/ad.js", "https://bücher.example/ad.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.Rebuild([]models.Subscription{subscriptionWith(t, "~user~1", tt.filter)})

			f := m.MatchesAny(tt.url, models.ContentScript, "news.example.net", true, "")
			assert.Equal(t, tt.filter, filterText(f))
		})
	}

	t.Run("unicode domain option", func(t *testing.T) {
		m := New()
		m.Rebuild([]models.Subscription{subscriptionWith(t, "~user~1", "/ad.js$domain=bücher.example")})

		assert.NotNil(t, m.MatchesAny("https://cdn.example.org/ad.js", models.ContentScript, "xn--bcher-kva.example", true, ""))
		assert.NotNil(t, m.MatchesAny("https://cdn.example.org/ad.js", models.ContentScript, "bücher.example", true, ""))
		assert.Nil(t, m.MatchesAny("https://cdn.example.org/ad.js", models.ContentScript, "other.example", true, ""))
	})
}

func TestIsThirdParty(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		document string
		expected bool
	}{
		{"same host", "example.com", "example.com", false},
		{"same base domain", "ads.example.com", "www.example.com", false},
		{"different domains", "tracker.net", "example.com", true},
		{"multi-label suffix same site", "a.example.co.uk", "b.example.co.uk", false},
		{"multi-label suffix different sites", "a.co.uk", "b.co.uk", true},
		{"case and trailing dot", "ADS.Example.com.", "www.example.com", false},
		{"no document host", "tracker.net", "", false},
		{"same ip", "127.0.0.1", "127.0.0.1", false},
		{"different ips", "10.0.0.1", "10.0.0.2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsThirdParty(tt.request, tt.document))
		})
	}
}
