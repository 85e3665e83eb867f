package parser

import (
	"regexp"
	"strings"
)

var (
	reNonSpaceWhitespace = regexp.MustCompile(`[^\S ]+`)
	reSpaces             = regexp.MustCompile(` +`)
	reElemHideSplit      = regexp.MustCompile(`^(.*?)(#[@?]?#?)(.*)$`)
)

// Normalize removes the whitespace that carries no meaning in a filter.
// Comments keep inner spaces; element hiding selectors keep inner spaces
// while their domain part loses all of them. Every other filter loses all
// spaces. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return text
	}

	// Line breaks, tabs etc.
	text = reNonSpaceWhitespace.ReplaceAllString(text, "")

	if strings.HasPrefix(strings.TrimLeft(text, " "), "!") {
		return strings.TrimSpace(text)
	}

	if reElemHide.MatchString(strings.TrimSpace(text)) {
		m := reElemHideSplit.FindStringSubmatch(text)
		return reSpaces.ReplaceAllString(m[1], "") + m[2] + strings.TrimSpace(m[3])
	}

	return reSpaces.ReplaceAllString(text, "")
}
