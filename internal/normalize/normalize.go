package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperifyio/trialharvest/internal/record"
)

// Normalizer turns a raw model response into a fully populated trial record.
// It never fails: unparseable input yields a record of empty fields.
type Normalizer struct {
	// MaxFieldChars bounds each field value. Zero means default (100).
	MaxFieldChars int
	// Synonyms overrides the default label folding table when non-nil. Keys
	// are folded labels, values are canonical record keys.
	Synonyms map[string]string
}

// DefaultSynonyms maps folded response labels onto canonical record keys.
// Folding lowercases and joins words with underscores, so "Trial Phase",
// "trial-phase" and "Trial_Phase" all land on the same entry.
var DefaultSynonyms = map[string]string{
	"title":       "title",
	"trial_title": "title",
	"study_title": "title",

	"trial_id":            "trial_id",
	"nct_number":          "trial_id",
	"nct":                 "trial_id",
	"registration_number": "trial_id",

	"phase":       "phase",
	"trial_phase": "phase",
	"study_phase": "phase",

	"condition":   "condition",
	"cancer_type": "condition",
	"disease":     "condition",
	"indication":  "condition",

	"intervention":  "intervention",
	"drugs_studied": "intervention",
	"treatment":     "intervention",

	"sponsor":       "sponsor",
	"trial_sponsor": "sponsor",

	"outcome":         "outcome",
	"primary_outcome": "outcome",
	"novel_findings":  "outcome",
	"results":         "outcome",
	"findings":        "outcome",

	"conclusions": "conclusions",
	"conclusion":  "conclusions",

	"summary":       "summary",
	"trial_info":    "summary",
	"brief_summary": "summary",
	"description":   "summary",
}

// groupSynonyms maps folded group sub-field labels onto group keys.
var groupSynonyms = map[string]string{
	"description":      "description",
	"group_type":       "group_type",
	"drugs":            "drugs",
	"drugs_studied":    "drugs",
	"orr":              "orr",
	"treatment_orr":    "orr",
	"pfs":              "pfs",
	"os":               "os",
	"overall_survival": "os",
}

// naValues are model spellings of "no information" that fold to empty.
var naValues = map[string]struct{}{
	"na":             {},
	"n/a":            {},
	"none":           {},
	"unknown":        {},
	"not specified":  {},
	"not applicable": {},
	"not available":  {},
	"not reported":   {},
}

var (
	groupLineRe     = regexp.MustCompile(`^[Gg]roup\s*(\d+)\s*:\s*(.*)$`)
	parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)`)
	markupRe        = regexp.MustCompile("[*_`#]+")
)

// Normalize applies parse, clean and standardize in order and returns a
// record carrying the complete canonical key set.
func (n *Normalizer) Normalize(raw string) record.Record {
	rec := record.New()
	syn := n.Synonyms
	if syn == nil {
		syn = DefaultSynonyms
	}

	groups := map[int]map[string]string{}
	maxGroup := 0

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		if line == "" {
			continue
		}
		if m := groupLineRe.FindStringSubmatch(line); m != nil {
			num := atoiSafe(m[1])
			if num <= 0 {
				continue
			}
			g, ok := groups[num]
			if !ok {
				g = record.NewGroup()
				groups[num] = g
				if num > maxGroup {
					maxGroup = num
				}
			}
			n.parseGroupFields(m[2], g)
			continue
		}
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, known := syn[foldLabel(label)]
		if !known {
			continue
		}
		v := n.Clean(value)
		// First population wins; later duplicates must not blank a field.
		if v != "" && rec.Fields[key] == "" {
			rec.Fields[key] = v
		}
	}

	for i := 1; i <= maxGroup; i++ {
		g, ok := groups[i]
		if !ok {
			g = record.NewGroup()
		}
		rec.Groups = append(rec.Groups, g)
	}
	return rec
}

// parseGroupFields scans a group line body for known sub-field labels. The
// value of each field runs to the next comma or end of line, matching the
// comma-delimited shape the prompt requests. Label search runs on an
// ASCII-lowered copy whose byte offsets are guaranteed to line up with body;
// a full Unicode ToLower can change byte lengths and misalign the slices.
func (n *Normalizer) parseGroupFields(body string, g map[string]string) {
	lower := lowerASCII(body)
	for label, key := range groupSynonyms {
		needle, idx := label, -1
		for _, cand := range []string{strings.ReplaceAll(label, "_", " "), label} {
			if i := indexLabel(lower, cand); i >= 0 {
				needle, idx = cand, i
				break
			}
		}
		if idx < 0 {
			continue
		}
		rest := body[idx+len(needle)+1:]
		if c := strings.IndexByte(rest, ','); c >= 0 {
			rest = rest[:c]
		}
		v := n.Clean(rest)
		if v != "" && g[key] == "" {
			g[key] = v
		}
	}
}

// Clean trims, strips markup artifacts and parenthetical asides, folds
// NA-style placeholders to empty, collapses whitespace runs, and cuts the
// value to at most MaxFieldChars runes. The result is stable under a second
// application.
func (n *Normalizer) Clean(s string) string {
	s = norm.NFC.String(s)
	s = markupRe.ReplaceAllString(s, "")
	s = parentheticalRe.ReplaceAllString(s, "")
	s = collapseSpaces(strings.TrimSpace(s))
	if _, isNA := naValues[strings.ToLower(s)]; isNA {
		return ""
	}
	max := n.MaxFieldChars
	if max <= 0 {
		max = 100
	}
	if r := []rune(s); len(r) > max {
		s = string(r[:max])
	}
	return s
}

// indexLabel finds "label:" in s at a word boundary, so a short label like
// "os" does not match inside a longer word.
func indexLabel(s, label string) int {
	from := 0
	for {
		i := strings.Index(s[from:], label+":")
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || !isWordByte(s[i-1]) {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// lowerASCII lowercases only A-Z, leaving every other byte untouched so the
// result is byte-for-byte aligned with the input.
func lowerASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func foldLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return '_'
		}
		return r
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}

func atoiSafe(s string) int {
	v := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		v = v*10 + int(r-'0')
		if v > 1<<20 {
			return 0
		}
	}
	return v
}
