package paper

import (
	"strings"
	"unicode"
)

// NormalizeText lowercases text, replaces every non-alphanumeric run with
// a single space, and trims. Two titles that differ only in case,
// whitespace, or punctuation normalize to the same string.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeDOI strips URL prefixes and the doi: scheme, lowercases, and
// trims. Returns "" for empty input.
func NormalizeDOI(doi string) string {
	d := strings.TrimSpace(doi)
	for _, prefix := range []string{
		"https://doi.org/",
		"http://doi.org/",
		"https://dx.doi.org/",
		"http://dx.doi.org/",
		"doi:",
	} {
		if strings.HasPrefix(strings.ToLower(d), prefix) {
			d = d[len(prefix):]
		}
	}
	return strings.ToLower(strings.TrimSpace(d))
}

// IsArXivDOI reports whether a DOI is an arXiv-minted DOI rather than a
// publisher DOI.
func IsArXivDOI(doi string) bool {
	d := NormalizeDOI(doi)
	if d == "" {
		return false
	}
	return strings.HasPrefix(d, "10.48550/arxiv.") || strings.Contains(d, "arxiv")
}
