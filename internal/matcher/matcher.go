// Package matcher answers whether a request URL is blocked or allowed by the
// active request filters.
package matcher

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/urlutil"
	"golang.org/x/net/publicsuffix"
)

// Matcher matches requests against an immutable index that is swapped on
// every rebuild. Lookups never block.
type Matcher struct {
	index  atomic.Pointer[index]
	logger *slog.Logger
}

// IndexStats describes the current index
type IndexStats struct {
	Blocking  int `json:"blocking"`
	Allowlist int `json:"allowlist"`
	Hosts     int `json:"hosts"`    // indexed host keys across both sides
	Keywords  int `json:"keywords"` // keyword buckets across both sides
}

// request is a normalized MatchesAny query
type request struct {
	url         string
	host        string
	keywords    []string
	contentType models.ContentType
	docHost     string
	thirdParty  bool
	siteKey     string
}

type cached struct {
	filter *models.Filter
}

// New creates an empty matcher
func New() *Matcher {
	m := &Matcher{logger: slog.Default()}
	m.index.Store(newIndex(nil, nil))
	return m
}

// WithLogger sets the logger
func (m *Matcher) WithLogger(logger *slog.Logger) *Matcher {
	m.logger = logger
	return m
}

// Rebuild replaces the index with the request filters of all enabled
// subscriptions. Filters listed in several subscriptions are indexed once.
func (m *Matcher) Rebuild(subs []models.Subscription) {
	ix := newIndex(subs, m.index.Load())
	m.index.Store(ix)

	m.logger.Debug("matcher index rebuilt",
		slog.Int("blocking", ix.block.size),
		slog.Int("allowlist", ix.allow.size))
}

// MatchesAny returns the filter deciding the request, or nil. An allowlist
// filter is returned whenever one matches, otherwise the first matching
// blocking filter.
func (m *Matcher) MatchesAny(url string, contentType models.ContentType, docHost string, thirdParty bool, siteKey string) *models.Filter {
	ix := m.index.Load()
	url = urlutil.ASCIIURL(url)
	docHost = urlutil.ASCIIHostPattern(strings.ToLower(docHost))

	key := fmt.Sprintf("%s\x00%d\x00%s\x00%t\x00%s", url, contentType, docHost, thirdParty, siteKey)
	if v, ok := ix.cache.Get(key); ok {
		return v.(cached).filter
	}

	req := &request{
		url:         url,
		host:        urlutil.HostFromURL(url),
		keywords:    append(urlKeywords(url), ""),
		contentType: contentType,
		docHost:     docHost,
		thirdParty:  thirdParty,
		siteKey:     siteKey,
	}

	f := ix.match(req)
	ix.cache.Add(key, cached{filter: f})
	return f
}

// Stats returns statistics about the current index
func (m *Matcher) Stats() IndexStats {
	ix := m.index.Load()
	return IndexStats{
		Blocking:  ix.block.size,
		Allowlist: ix.allow.size,
		Hosts:     ix.block.hosts.Len() + ix.allow.hosts.Len(),
		Keywords:  len(ix.block.keywords) + len(ix.allow.keywords),
	}
}

// IsThirdParty reports whether a request to requestHost made by a document
// on docHost crosses registrable domains. Requests without a document host
// are first-party.
func IsThirdParty(requestHost, docHost string) bool {
	requestHost = strings.TrimSuffix(strings.ToLower(requestHost), ".")
	docHost = strings.TrimSuffix(strings.ToLower(docHost), ".")

	if docHost == "" || requestHost == docHost {
		return false
	}
	return baseDomain(requestHost) != baseDomain(docHost)
}

// baseDomain returns the registrable domain, or the host itself for IP
// addresses and names without a public suffix
func baseDomain(host string) string {
	if strings.Contains(host, ":") || strings.Trim(host, "0123456789.") == "" {
		return host
	}
	if base, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return base
	}
	return host
}
