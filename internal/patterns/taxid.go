package patterns

import (
	"regexp"
	"strings"
)

// TaxIDMatcher extracts tax-registration numbers: a two-letter country code
// followed by 10 digits, with arbitrary interior whitespace tolerated. The
// normalized token (whitespace stripped, uppercased) must be exactly 12 chars.
type TaxIDMatcher struct {
	country string
	re      *regexp.Regexp
	spaceRe *regexp.Regexp
}

// NewTaxIDMatcher builds a matcher for the given two-letter country code.
func NewTaxIDMatcher(country string) *TaxIDMatcher {
	c := strings.ToUpper(country)
	return &TaxIDMatcher{
		country: c,
		re:      regexp.MustCompile(`(?i)` + regexp.QuoteMeta(c) + `[\s]*\d[\d\s]{9,}`),
		spaceRe: regexp.MustCompile(`\s+`),
	}
}

// Country returns the configured two-letter code.
func (m *TaxIDMatcher) Country() string { return m.country }

// Extract returns the deduplicated tax IDs found in text, in first-seen
// order. Pure: same text always yields the same result.
func (m *TaxIDMatcher) Extract(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range m.re.FindAllString(text, -1) {
		clean := strings.ToUpper(m.spaceRe.ReplaceAllString(raw, ""))
		if len(clean) != 12 || !strings.HasPrefix(clean, m.country) {
			continue
		}
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}
