// Package keys builds cache keys for DGGS zone responses.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxSegmentLen = 96

// ZoneDataKey identifies one zone-data response. The trailing hash covers the full request URL so
// two API hosts serving the same collection never share entries.
func ZoneDataKey(collection, system, zone, requestURL string) string {
	sum := xxhash.Sum64String(strings.TrimSpace(requestURL))
	return fmt.Sprintf("dggs:%s:%s:%s:h=%016x",
		segment(collection), segment(system), segment(zone), sum)
}

// segment maps arbitrary text onto [A-Za-z0-9_-.], collapsing runs of replacements.
func segment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case isASCIIWhitespace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	out := b.String()
	if len(out) > maxSegmentLen {
		out = out[:maxSegmentLen]
	}
	return out
}

func isASCIIWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
