// Package urlutil provides URL helpers shared by the engine components.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// URL scheme constants.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
	SchemeFile  = "file"
)

// HostFromURL extracts the lower-cased ASCII host name of a URL.
// Returns an empty string for URLs without a host (about:, data:, garbage).
//
// Examples:
//
//	"https://Ads.Example.com:8443/x" -> "ads.example.com"
//	"http://bücher.example/"         -> "xn--bcher-kva.example"
//	"about:blank"                    -> ""
func HostFromURL(u string) string {
	if u == "" {
		return ""
	}

	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}

	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	if host == "" {
		return ""
	}

	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

// ASCIIURL rewrites an internationalized host of a URL to its punycode
// form, leaving the rest of the URL untouched. URLs with an ASCII host are
// returned as is.
//
//	"https://bücher.example/ad.js" -> "https://xn--bcher-kva.example/ad.js"
func ASCIIURL(u string) string {
	if isASCII(u) {
		return u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return u
	}
	host := parsed.Hostname()
	if host == "" || isASCII(host) {
		return u
	}
	ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(host, "."))
	if err != nil {
		return u
	}

	start := strings.Index(u, "://")
	if start < 0 {
		return u
	}
	start += len("://")
	i := strings.Index(u[start:], host)
	if i < 0 {
		return u
	}
	i += start
	return u[:i] + ascii + u[i+len(strings.TrimSuffix(host, ".")):]
}

// ASCIIHostPattern converts the internationalized labels of a host, which
// may carry "*" wildcards, to punycode. Labels that cannot be converted are
// kept.
func ASCIIHostPattern(host string) string {
	if isASCII(host) {
		return host
	}
	labels := strings.Split(host, ".")
	for i, label := range labels {
		if isASCII(label) {
			continue
		}
		if ascii, err := idna.Lookup.ToASCII(label); err == nil {
			labels[i] = ascii
		}
	}
	return strings.Join(labels, ".")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// IsRemoteURL checks if a URL uses the http:// or https:// scheme.
func IsRemoteURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// IsFileURL checks if a URL uses the file:// scheme.
func IsFileURL(u string) bool {
	return strings.HasPrefix(u, "file://")
}

// GetScheme returns the scheme of a URL (http, https, file) or empty string if unknown.
func GetScheme(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

// FilePathFromURL extracts the file path from a file:// URL.
func FilePathFromURL(u string) (string, error) {
	if !IsFileURL(u) {
		return "", fmt.Errorf("not a file:// URL: %s", u)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Path == "" {
		return "", fmt.Errorf("empty path in file URL: %s", u)
	}

	return parsed.Path, nil
}

// ValidateDownloadURL checks that a subscription URL can be downloaded.
func ValidateDownloadURL(u string) error {
	if u == "" {
		return fmt.Errorf("URL is required")
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case SchemeHTTP, SchemeHTTPS:
		if parsed.Host == "" {
			return fmt.Errorf("URL has no host: %s", u)
		}
		return nil
	case SchemeFile:
		_, err := FilePathFromURL(u)
		return err
	case "":
		return fmt.Errorf("URL must include a scheme (http://, https://, or file://)")
	default:
		return fmt.Errorf("unsupported URL scheme: %s (supported: http, https, file)", parsed.Scheme)
	}
}
