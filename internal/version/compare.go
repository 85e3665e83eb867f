package version

import (
	"math"
	"strconv"
	"strings"
)

// part is one dot separated component: <numA><strB><numC><extraD>.
// An absent string sorts after any present one, so "1.0pre1" < "1.0".
type part struct {
	numA   int64
	strB   string
	hasB   bool
	numC   int64
	extraD string
	hasD   bool
}

// Compare compares two version strings the way application toolkits do
// ("1.0" == "1.0.0", "1.0b1" < "1.0", "1.1pre" == "1.0+", "*" is the
// largest part). It returns -1, 0 or 1.
func Compare(a, b string) int {
	for a != "" || b != "" {
		var pa, pb part
		pa, a = parsePart(a)
		pb, b = parsePart(b)
		if r := comparePart(pa, pb); r != 0 {
			return r
		}
	}
	return 0
}

func parsePart(s string) (part, string) {
	var p part
	if s == "" {
		return p, ""
	}

	token, rest, _ := strings.Cut(s, ".")

	if token == "*" {
		p.numA = math.MaxInt32
		return p, rest
	}

	p.numA, token = leadingInt(token)
	if token == "" {
		return p, rest
	}

	if token[0] == '+' {
		p.numA++
		p.strB, p.hasB = "pre", true
		return p, rest
	}

	numStart := strings.IndexAny(token, "0123456789+-")
	if numStart < 0 {
		p.strB, p.hasB = token, true
		return p, rest
	}
	p.strB, p.hasB = token[:numStart], true

	var extra string
	p.numC, extra = leadingSignedInt(token[numStart:])
	if extra != "" {
		p.extraD, p.hasD = extra, true
	}
	return p, rest
}

// leadingInt parses the leading decimal digits of s
func leadingInt(s string) (int64, string) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, s
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		n = math.MaxInt64
	}
	return n, s[end:]
}

// leadingSignedInt is leadingInt with an optional sign
func leadingSignedInt(s string) (int64, string) {
	if len(s) > 1 && (s[0] == '+' || s[0] == '-') && s[1] >= '0' && s[1] <= '9' {
		n, rest := leadingInt(s[1:])
		if s[0] == '-' {
			n = -n
		}
		return n, rest
	}
	return leadingInt(s)
}

func comparePart(a, b part) int {
	if r := compareInt(a.numA, b.numA); r != 0 {
		return r
	}
	if r := compareOptional(a.strB, a.hasB, b.strB, b.hasB); r != 0 {
		return r
	}
	if r := compareInt(a.numC, b.numC); r != 0 {
		return r
	}
	return compareOptional(a.extraD, a.hasD, b.extraD, b.hasD)
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareOptional(a string, hasA bool, b string, hasB bool) int {
	switch {
	case !hasA && !hasB:
		return 0
	case !hasA:
		return 1
	case !hasB:
		return -1
	}
	return strings.Compare(a, b)
}
