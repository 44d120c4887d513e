// Package sanitize produces header-safe renderings of section identifiers.
//
// Retrieved-section identifiers travel back to the client in an HTTP response
// header, and header values must be byte-string safe. Source labels may carry
// non-ASCII characters (the section mark in "§51" being the common case), so
// everything outside printable ASCII is stripped before the value is set.
package sanitize

import "strings"

// ASCII strips every byte outside the printable ASCII range from s.
//
// Examples:
//
//	"§51"        -> "51"
//	"Chapter Ⅲ"  -> "Chapter "
//	"s 75(v)"    -> "s 75(v)"
func ASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SourceList joins section labels into a single comma-separated header value.
// Each label is ASCII-sanitized and trimmed; labels that sanitize to nothing
// are dropped. An empty input yields "".
func SourceList(labels []string) string {
	cleaned := make([]string, 0, len(labels))
	for _, l := range labels {
		c := strings.TrimSpace(ASCII(l))
		if c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return strings.Join(cleaned, ",")
}
