// Package sanitize turns user-supplied file names into safe storage key fragments.
package sanitize

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is returned when nothing usable survives sanitization.
const Fallback = "file"

// MaxLength caps the sanitized fragment in bytes. The extension is kept when truncating.
const MaxLength = 200

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	dashRuns    = regexp.MustCompile(`-{2,}`)
)

// FileName returns a fragment containing only [A-Za-z0-9._-], with no leading or
// trailing '-', no run of '-', and never empty.
//
// Diacritics are dropped after canonical decomposition, so "café" becomes "cafe".
// Every other disallowed rune (spaces, separators, control characters) becomes '-'.
func FileName(name string) string {
	// Chains carry buffers, so one per call keeps FileName safe for concurrent use.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}

	s = unsafeChars.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	s = truncate(s, MaxLength)

	if s == "" {
		return Fallback
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	ext := path.Ext(s)
	if len(ext) >= max/2 {
		ext = ""
	}
	base := strings.TrimRight(s[:max-len(ext)], "-")
	return strings.Trim(base+ext, "-")
}
