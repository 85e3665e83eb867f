package engine

import (
	"github.com/bnema/adblock-engine/internal/elemhide"
	"github.com/bnema/adblock-engine/internal/matcher"
	"github.com/bnema/adblock-engine/internal/models"
	"github.com/bnema/adblock-engine/internal/urlutil"
)

// CheckFilterMatch returns the filter deciding the request, or nil. An
// allowlist filter wins over blocking ones.
func (e *Engine) CheckFilterMatch(url string, contentType models.ContentType, documentURL, siteKey string) *models.Filter {
	requestHost := urlutil.HostFromURL(url)
	documentHost := urlutil.HostFromURL(documentURL)
	thirdParty := matcher.IsThirdParty(requestHost, documentHost)
	return e.matcher.MatchesAny(url, contentType, documentHost, thirdParty, siteKey)
}

// ElementHidingSelectors returns the selectors to hide on the domain,
// generic ones included
func (e *Engine) ElementHidingSelectors(domain string) []string {
	return e.hider.SelectorsForDomain(domain, true)
}

// ElementHidingEmulationSelectors returns the emulation rules for the domain
func (e *Engine) ElementHidingEmulationSelectors(domain string) []elemhide.Rule {
	return e.hider.RulesForDomain(domain)
}
