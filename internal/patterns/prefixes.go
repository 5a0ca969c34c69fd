package patterns

import (
	"regexp"
	"sort"
	"strings"
)

// KnownPOPrefixes is the ordered list of purchase-order prefixes issued by
// the business units. Each is a 5-char token ending in "PO" (a few run longer).
var KnownPOPrefixes = []string{
	"AVPPO", "INAPO", "ATCPO", "AKJPO", "NREPO", "ABLPO", "TIIPO", "KAYPO", "KADPO", "IECPO",
	"NRAPO", "NRJPO", "ARCPO", "ADLPO", "DXBPO", "TFTPO", "ACSPO", "AIMSPO", "AMSPPO", "HBSPO",
	"CEOPO", "BPCPO", "ITSPO", "AACPO", "TCPPO", "SABPO", "CUIPO", "KAYAPO", "SOBPO", "MLTPO",
	"BTDPO", "BTVPO", "ARPPO",
}

// Library holds the effective prefix search set and the stem translations
// that compensate for the trailing letter being misread optically.
type Library struct {
	stemToPrefix map[string]string
	searchSet    []string
	matchers     map[string]*regexp.Regexp
	numericRe    *regexp.Regexp
}

// POMatch is one prefix hit inside a piece of text.
type POMatch struct {
	Prefix string // canonical prefix after stem translation
	Number string // prefix + digit remainder, separator stripped
}

// NewLibrary builds a Library from the given prefixes. For every prefix of
// at least 5 chars, its 4-char stem is added as an alias: scanners routinely
// read the trailing "O" as "0", leaving only the stem intact. The search set
// is sorted by descending length so a full prefix always wins over its stem
// at the same position.
func NewLibrary(prefixes []string) *Library {
	stems := make(map[string]string, len(prefixes))
	set := make(map[string]struct{}, len(prefixes)*2)
	for _, p := range prefixes {
		p = strings.ToUpper(p)
		set[p] = struct{}{}
		if len(p) >= 5 {
			stems[p[:4]] = p
			set[p[:4]] = struct{}{}
		}
	}

	search := make([]string, 0, len(set))
	for p := range set {
		search = append(search, p)
	}
	sort.Slice(search, func(i, j int) bool {
		if len(search[i]) != len(search[j]) {
			return len(search[i]) > len(search[j])
		}
		return search[i] < search[j]
	})

	matchers := make(map[string]*regexp.Regexp, len(search))
	for _, p := range search {
		matchers[p] = regexp.MustCompile(`(?i)(` + regexp.QuoteMeta(p) + `-?\d+)`)
	}

	return &Library{
		stemToPrefix: stems,
		searchSet:    search,
		matchers:     matchers,
		numericRe:    regexp.MustCompile(`\b(\d{8})\b`),
	}
}

// DefaultLibrary returns a Library over KnownPOPrefixes.
func DefaultLibrary() *Library {
	return NewLibrary(KnownPOPrefixes)
}

// SearchSet returns the effective prefixes in matching order.
func (l *Library) SearchSet() []string {
	out := make([]string, len(l.searchSet))
	copy(out, l.searchSet)
	return out
}

// FindFirstPO returns the first prefixed PO number in text, scanning the
// search set longest-first. Stem hits are translated to the canonical prefix
// and a leading zero in the remainder is dropped (the misread "O").
func (l *Library) FindFirstPO(text string) (POMatch, bool) {
	for _, prefix := range l.searchSet {
		if m := l.matchers[prefix].FindStringSubmatch(text); m != nil {
			return l.normalize(prefix, m[1]), true
		}
	}
	return POMatch{}, false
}

// FindAllPO returns at most one hit per search-set entry, longest-first.
// Multi-candidate scanning is used for OCR text where several prefixes may
// legitimately appear (quotes, headers, terms).
func (l *Library) FindAllPO(text string) []POMatch {
	var out []POMatch
	for _, prefix := range l.searchSet {
		if m := l.matchers[prefix].FindStringSubmatch(text); m != nil {
			out = append(out, l.normalize(prefix, m[1]))
		}
	}
	return out
}

func (l *Library) normalize(matched, raw string) POMatch {
	token := strings.ToUpper(strings.ReplaceAll(raw, "-", ""))
	full, ok := l.stemToPrefix[matched]
	if !ok {
		full = strings.ToUpper(matched)
	}
	remainder := token[len(matched):]
	// A remainder starting with 0 is the prefix's own trailing O misread as a
	// digit; drop exactly one.
	remainder = strings.TrimPrefix(remainder, "0")
	return POMatch{Prefix: full, Number: full + remainder}
}

// FindNumericPOs returns every bare 8-digit token in text that passes the
// date-coded serial check: digits 3-4, read as a month, must be in 1..12.
func (l *Library) FindNumericPOs(text string) []string {
	var out []string
	for _, m := range l.numericRe.FindAllStringSubmatch(text, -1) {
		if ValidNumericPO(m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}

// ValidNumericPO reports whether an 8-digit token is a plausible YYMMXXXX
// purchase-order serial.
func ValidNumericPO(token string) bool {
	if len(token) != 8 {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	mm := int(token[2]-'0')*10 + int(token[3]-'0')
	return mm >= 1 && mm <= 12
}
