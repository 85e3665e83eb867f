package matcher

import (
	"regexp"
	"strings"

	"github.com/bnema/adblock-engine/internal/urlutil"
)

const (
	// Separator matches anything but a letter, digit or one of _-.%, or the end of the URL
	restrSeparator = `(?:[^%.0-9A-Za-z_-]|$)`
	// Hostname anchor for patterns starting with ||
	restrHostnameAnchor1 = `^[a-z][a-z0-9+.-]*://(?:[^/?#]+\.)?`
	// Hostname anchor for patterns starting with ||.
	restrHostnameAnchor2 = `^[a-z][a-z0-9+.-]*://(?:[^/?#]+)?`
)

var (
	// Characters to escape in regex (except * and ^)
	rePlainChars = regexp.MustCompile(`[.+?${}()|[\]\\]`)
	// Dangling asterisks at start/end
	reDanglingAsterisks = regexp.MustCompile(`^\*+|\*+$`)
	// Asterisks in pattern
	reAsterisks = regexp.MustCompile(`\*+`)
	// Separator placeholder
	reSeparators = regexp.MustCompile(`\^`)
)

// PatternToRegex converts an ABP pattern to an RE2 expression
func PatternToRegex(pattern string) string {
	if pattern == "" || pattern == "*" {
		return ""
	}

	s := pattern

	// Regular expression literals are used as-is
	if isRegexLiteral(s) {
		return s[1 : len(s)-1]
	}

	anchor := 0 // 0b100 = hostname (||), 0b010 = left (|), 0b001 = right (|)

	if strings.HasPrefix(s, "||") {
		anchor = 0b100
		s = s[2:]
	} else if strings.HasPrefix(s, "|") {
		anchor = 0b010
		s = s[1:]
	}

	if strings.HasSuffix(s, "|") {
		anchor |= 0b001
		s = s[:len(s)-1]
	}

	// Escape special regex characters (except * and ^)
	reStr := rePlainChars.ReplaceAllString(s, `\$0`)

	// Convert ^ to separator pattern
	reStr = reSeparators.ReplaceAllString(reStr, restrSeparator)

	// Remove dangling asterisks
	reStr = reDanglingAsterisks.ReplaceAllString(reStr, "")

	reStr = reAsterisks.ReplaceAllString(reStr, `.*`)

	if anchor&0b100 != 0 {
		if strings.HasPrefix(reStr, `\.`) {
			reStr = restrHostnameAnchor2 + reStr
		} else {
			reStr = restrHostnameAnchor1 + reStr
		}
	} else if anchor&0b010 != 0 {
		reStr = "^" + reStr
	}

	if anchor&0b001 != 0 {
		reStr = reStr + "$"
	}

	return reStr
}

// compilePattern builds the regexp used to test request URLs
func compilePattern(pattern string, matchCase bool) (*regexp.Regexp, error) {
	expr := PatternToRegex(pattern)
	if !matchCase {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

func isRegexLiteral(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/")
}

// asciiPattern converts the host part of "||host" and "|scheme://host"
// patterns to punycode so it compares with request URLs, whose hosts are
// rewritten the same way.
func asciiPattern(pattern string) string {
	if isRegexLiteral(pattern) {
		return pattern
	}
	start := -1
	switch {
	case strings.HasPrefix(pattern, "||"):
		start = 2
	default:
		if i := strings.Index(pattern, "://"); i >= 0 {
			start = i + len("://")
		}
	}
	if start < 0 {
		return pattern
	}

	end := strings.IndexAny(pattern[start:], "^/:|?")
	if end < 0 {
		end = len(pattern) - start
	}
	host := pattern[start : start+end]
	ascii := urlutil.ASCIIHostPattern(host)
	if ascii == host {
		return pattern
	}
	return pattern[:start] + ascii + pattern[start+end:]
}

// hostOf returns the host a "||host^" style pattern is anchored to. Only
// patterns whose host part is complete and wildcard free qualify.
func hostOf(pattern string) (string, bool) {
	if !strings.HasPrefix(pattern, "||") {
		return "", false
	}
	s := pattern[2:]

	end := strings.IndexAny(s, "^/:|?")
	if end <= 0 {
		return "", false
	}
	host := strings.ToLower(s[:end])
	if strings.ContainsAny(host, "*%") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return "", false
	}
	return host, true
}

func isKeywordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '%'
}

// keywordCandidates returns the tokens of a pattern that any matching URL
// must contain: runs of at least three keyword characters bounded on both
// sides by a character that is neither a keyword character nor "*".
func keywordCandidates(pattern string) []string {
	if isRegexLiteral(pattern) {
		return nil
	}

	s := strings.ToLower(pattern)
	var out []string
	for i := 0; i < len(s); {
		if !isKeywordChar(s[i]) {
			i++
			continue
		}
		start := i
		for i < len(s) && isKeywordChar(s[i]) {
			i++
		}
		if i-start < 3 || start == 0 || i == len(s) {
			continue
		}
		if s[start-1] == '*' || s[i] == '*' {
			continue
		}
		out = append(out, s[start:i])
	}
	return out
}

// urlKeywords returns every token of a URL that can serve as a keyword
func urlKeywords(u string) []string {
	s := strings.ToLower(u)
	var out []string
	for i := 0; i < len(s); {
		if !isKeywordChar(s[i]) {
			i++
			continue
		}
		start := i
		for i < len(s) && isKeywordChar(s[i]) {
			i++
		}
		if i-start >= 3 {
			out = append(out, s[start:i])
		}
	}
	return out
}

// reverseHost turns "ads.example.com" into "com.example.ads." so that
// suffix domains become prefixes that end on a label boundary.
func reverseHost(host string) string {
	labels := strings.Split(host, ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return strings.Join(labels, ".") + "."
}
