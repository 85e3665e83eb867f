package parser

import (
	"bufio"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/adblock-engine/internal/models"
)

// List is a downloaded filter list with its metadata
type List struct {
	Header   string
	Title    string
	Homepage string
	Version  string
	Expires  time.Duration // zero when the list does not declare it
	Checksum string
	Filters  []*models.Filter
}

var (
	reListHeader = regexp.MustCompile(`(?i)\[Adblock(?:\s*Plus\s*([\d.]+)?)?\]`)
	reMetadata   = regexp.MustCompile(`^\s*!\s*([\w-]+)\s*:\s*(.*?)\s*$`)
	reChecksum   = regexp.MustCompile(`(?i)^\s*!\s*checksum[\s:-]+([\w+/=]+)\s*$`)
	reExpires    = regexp.MustCompile(`(?i)^(\d+)\s*(h|hours?|d|days?)?`)
)

// ParseList parses a complete filter list. The first line must be an
// "[Adblock Plus x.y]" header; when the list carries a checksum comment the
// body must match it.
func (p *Parser) ParseList(r io.Reader) (*List, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filter list: %w", err)
	}

	if len(lines) == 0 || !reListHeader.MatchString(lines[0]) {
		return nil, models.ErrInvalidListHeader
	}

	list := &List{Header: strings.TrimSpace(lines[0])}
	body := lines[1:]

	if expected, ok := findChecksum(body); ok {
		list.Checksum = expected
		if actual := Checksum(lines); actual != expected {
			return nil, fmt.Errorf("%w: expected %s, got %s", models.ErrChecksumMismatch, expected, actual)
		}
	}

	for _, line := range body {
		if m := reMetadata.FindStringSubmatch(line); m != nil {
			list.applyMetadata(strings.ToLower(m[1]), m[2])
		}
		if filter, ok := p.add(line); ok {
			list.Filters = append(list.Filters, filter)
		}
	}

	return list, nil
}

func (l *List) applyMetadata(key, value string) {
	switch key {
	case "title":
		l.Title = value
	case "homepage":
		l.Homepage = value
	case "version":
		l.Version = value
	case "expires":
		l.Expires = ParseExpires(value)
	}
}

// ParseExpires parses "N days" or "N hours" values. Unparsable values
// yield zero.
func ParseExpires(value string) time.Duration {
	m := reExpires.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		return time.Duration(n) * time.Hour
	}
	return time.Duration(n) * 24 * time.Hour
}

func findChecksum(lines []string) (string, bool) {
	for _, line := range lines {
		if m := reChecksum.FindStringSubmatch(line); m != nil {
			return strings.TrimRight(m[1], "="), true
		}
	}
	return "", false
}

// Checksum computes the list checksum: base64 MD5 without padding over the
// non-empty lines (header included) joined by "\n", the checksum line
// itself excluded.
func Checksum(lines []string) string {
	var b strings.Builder
	first := true
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" || reChecksum.MatchString(line) {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		first = false
	}
	sum := md5.Sum([]byte(b.String()))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}
