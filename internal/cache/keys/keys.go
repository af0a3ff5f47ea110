// Package keys builds Redis keys for cached extraction results.
package keys

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const Prefix = "emx"

// Key is deterministic in its inputs. The canonical request text is hashed;
// variable, generation, mode and window stay readable for debugging.
func Key(variable string, generation int64, mode string, start, end time.Time, canonical string) string {
	sum := xxhash.Sum64String(canonical)
	return fmt.Sprintf("%s:%s:g%d:%s:%s-%s:f=%016x",
		Prefix, sanitize(variable), generation, sanitize(mode),
		start.UTC().Format("20060102"), end.UTC().Format("20060102"), sum)
}

// GenerationKey holds the counter bumped whenever a variable's data changes.
func GenerationKey(variable string) string {
	return Prefix + ":gen:" + sanitize(variable)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
