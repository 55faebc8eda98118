package usecase

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

type rewriteRule struct {
	pattern *regexp.Regexp
	replace string
}

// Normalizer applies fixed correction, filler and date-extraction tables to
// free-text questions. All patterns are compiled once at construction and the
// tables are never mutated afterwards; Normalize is a fixed point after one
// pass.
type Normalizer struct {
	phraseRules    []rewriteRule
	wordRules      []rewriteRule
	fillerPrefixes []*regexp.Regexp
	reformRules    []rewriteRule
	dataWord       *regexp.Regexp
	dateContext    *regexp.Regexp
	spaces         *regexp.Regexp
	monthRange     *regexp.Regexp
	monthYear      *regexp.Regexp
	bareYear       *regexp.Regexp
}

// Multi-word corrections run before single-word ones so phrase context wins.
var phraseCorrections = [][2]string{
	{`effective data`, "effective date"},
	{`affective date`, "effective date"},
	{`date of expiry`, "expiration date"},
	{`expiry date`, "expiration date"},
	{`end date`, "expiration date"},
	{`non disclosure`, "non-disclosure"},
	{`gov law`, "governing law"},
}

var wordCorrections = [][2]string{
	{`effecive`, "effective"},
	{`efective`, "effective"},
	{`effetive`, "effective"},
	{`expirey`, "expiration"},
	{`expiery`, "expiration"},
	{`experation`, "expiration"},
	{`expration`, "expiration"},
	{`expiry`, "expiration"},
	{`goverening`, "governing"},
	{`governng`, "governing"},
	{`goberning`, "governing"},
	{`juristiction`, "jurisdiction"},
	{`jurisdication`, "jurisdiction"},
	{`juridiction`, "jurisdiction"},
	{`agrement`, "agreement"},
	{`aggrement`, "agreement"},
	{`agreemnt`, "agreement"},
	{`confidentality`, "confidentiality"},
	{`confidentiallity`, "confidentiality"},
	{`nondisclosure`, "non-disclosure"},
	{`survial`, "survival"},
	{`surival`, "survival"},
	{`termintation`, "termination"},
	{`terminaton`, "termination"},
	{`clasue`, "clause"},
	{`cluase`, "clause"},
	{`parites`, "parties"},
	{`partes`, "parties"},
	{`mutal`, "mutual"},
	{`singed`, "signed"},
}

var fillerPrefixPatterns = []string{
	`^(?:can|could|would|will) you (?:please )?(?:tell me|show me|let me know)[,:]?\s+`,
	`^please (?:tell me|show me)[,:]?\s+`,
	`^i (?:want|would like|need) to know\s+(?:if |whether )?`,
	`^i wonder\s+(?:if |whether )?`,
	`^do you know\s+(?:if |whether )?`,
	`^tell me\s+`,
	`^please\s+`,
}

// Awkward constructions rewritten into canonical question forms.
var reformConstructions = [][2]string{
	{`^(?:what|which) ndas? (?:where|were) created`, "ndas created"},
	{`^(?:what|which) agreements? (?:where|were) (?:signed|created)`, "agreements created"},
	{`^whats `, "what is "},
	{`^whos `, "who is "},
	{`^whens `, "when is "},
}

const monthAlt = `(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?`

func NewNormalizer() *Normalizer {
	return NewNormalizerWithRules(LanguageRules{})
}

// NewNormalizerWithRules appends overlay corrections after the built-in
// tables. Overlay From strings are quoted, so a malformed entry degrades to a
// harmless literal rather than a construction failure.
func NewNormalizerWithRules(rules LanguageRules) *Normalizer {
	n := &Normalizer{
		dataWord:    regexp.MustCompile(`\bdata\b`),
		dateContext: regexp.MustCompile(`\b(effective|expiration|expiry|signed|date)\b`),
		spaces:      regexp.MustCompile(`\s+`),
		monthRange:  regexp.MustCompile(`\b` + monthAlt + `\s*(\d{4})?\s*(?:to|through|until|[-–])\s*` + monthAlt + `\s*(\d{4})\b`),
		monthYear:   regexp.MustCompile(`\b` + monthAlt + `\s+(\d{4})\b`),
		bareYear:    regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`),
	}
	for _, p := range phraseCorrections {
		n.phraseRules = append(n.phraseRules, rewriteRule{regexp.MustCompile(`\b` + p[0] + `\b`), p[1]})
	}
	n.phraseRules = appendCorrections(n.phraseRules, rules.PhraseCorrections)
	for _, p := range wordCorrections {
		n.wordRules = append(n.wordRules, rewriteRule{regexp.MustCompile(`\b` + p[0] + `\b`), p[1]})
	}
	n.wordRules = appendCorrections(n.wordRules, rules.WordCorrections)
	for _, p := range fillerPrefixPatterns {
		n.fillerPrefixes = append(n.fillerPrefixes, regexp.MustCompile(p))
	}
	for _, p := range rules.FillerPrefixes {
		// Overlay prefixes are full patterns; a bad one is dropped, not fatal.
		if re, err := regexp.Compile(p); err == nil {
			n.fillerPrefixes = append(n.fillerPrefixes, re)
		}
	}
	for _, p := range reformConstructions {
		n.reformRules = append(n.reformRules, rewriteRule{regexp.MustCompile(p[0]), p[1]})
	}
	return n
}

func appendCorrections(rules []rewriteRule, pairs []CorrectionRule) []rewriteRule {
	for _, p := range pairs {
		from := strings.ToLower(strings.TrimSpace(p.From))
		if from == "" || p.To == "" {
			continue
		}
		rules = append(rules, rewriteRule{regexp.MustCompile(`\b` + regexp.QuoteMeta(from) + `\b`), p.To})
	}
	return rules
}

// Normalize lowercases, corrects misspellings and extracts an optional date
// range. The raw text is preserved for entity extraction, which needs the
// original capitalization.
func (n *Normalizer) Normalize(raw string) domain.NormalizedQuery {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = n.spaces.ReplaceAllString(normalized, " ")

	for _, rule := range n.phraseRules {
		normalized = rule.pattern.ReplaceAllString(normalized, rule.replace)
	}
	for _, rule := range n.wordRules {
		normalized = rule.pattern.ReplaceAllString(normalized, rule.replace)
	}

	// "data" becomes "date" only in date-indicating context, so questions
	// about actual data are left alone.
	if n.dateContext.MatchString(normalized) {
		normalized = n.dataWord.ReplaceAllString(normalized, "date")
	}

	return domain.NormalizedQuery{
		Raw:          raw,
		Normalized:   normalized,
		Reformulated: n.Reformulate(normalized),
		DateRange:    n.ExtractDateRange(normalized),
	}
}

// Reformulate strips filler prefixes and rewrites known awkward constructions.
func (n *Normalizer) Reformulate(normalized string) string {
	text := strings.TrimSpace(normalized)
	for changed := true; changed; {
		changed = false
		for _, p := range n.fillerPrefixes {
			if stripped := p.ReplaceAllString(text, ""); stripped != text {
				text = stripped
				changed = true
			}
		}
	}
	for _, rule := range n.reformRules {
		text = rule.pattern.ReplaceAllString(text, rule.replace)
	}
	return strings.TrimSpace(text)
}

// ExtractDateRange recognizes month-to-month ranges, single month+year and
// bare years, returning inclusive calendar boundaries. Anything unparseable
// is treated as no match, never an error.
func (n *Normalizer) ExtractDateRange(text string) *domain.DateRange {
	if m := n.monthRange.FindStringSubmatch(text); m != nil {
		endYear, err := strconv.Atoi(m[4])
		if err != nil {
			return nil
		}
		startYear := endYear
		if m[2] != "" {
			if y, err := strconv.Atoi(m[2]); err == nil {
				startYear = y
			}
		}
		startMonth, ok1 := monthFromToken(m[1])
		endMonth, ok2 := monthFromToken(m[3])
		if !ok1 || !ok2 {
			return nil
		}
		start := time.Date(startYear, startMonth, 1, 0, 0, 0, 0, time.UTC)
		end := lastDayOfMonth(endYear, endMonth)
		if end.Before(start) {
			return nil
		}
		return &domain.DateRange{Start: start, End: end}
	}

	if m := n.monthYear.FindStringSubmatch(text); m != nil {
		year, err := strconv.Atoi(m[2])
		if err != nil {
			return nil
		}
		month, ok := monthFromToken(m[1])
		if !ok {
			return nil
		}
		return &domain.DateRange{
			Start: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
			End:   lastDayOfMonth(year, month),
		}
	}

	if m := n.bareYear.FindStringSubmatch(text); m != nil {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		return &domain.DateRange{
			Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		}
	}

	return nil
}

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func monthFromToken(token string) (time.Month, bool) {
	if len(token) < 3 {
		return 0, false
	}
	m, ok := monthsByPrefix[strings.ToLower(token[:3])]
	return m, ok
}

func lastDayOfMonth(year int, month time.Month) time.Time {
	// Day zero of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}
