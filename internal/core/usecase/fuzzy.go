package usecase

import (
	"strings"
	"unicode"
)

// fuzzyMatchScore is the maximum of the named sub-scores below, each
// independently testable. Exact match beats containment beats first-word
// similarity beats the token blend, with the plain edit ratio as fallback.
func fuzzyMatchScore(fragment, candidate string) float64 {
	a := cleanCompanyName(fragment)
	b := cleanCompanyName(candidate)
	if a == "" || b == "" {
		return 0
	}
	best := 0.0
	for _, score := range []float64{
		scoreExact(a, b),
		scoreContainment(a, b),
		scoreFirstWord(a, b),
		scoreTokenBlend(a, b),
		editRatio(a, b),
	} {
		if score > best {
			best = score
		}
	}
	return best
}

func scoreExact(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return 0
}

// scoreContainment covers one name fully containing the other. A match at
// position zero is the stronger signal.
func scoreContainment(a, b string) float64 {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 2 {
		return 0
	}
	idx := strings.Index(longer, shorter)
	if idx < 0 {
		return 0
	}
	if idx == 0 {
		return 0.95
	}
	return 0.85
}

// scoreFirstWord maps first-word similarity of at least 0.6 linearly onto
// [0.7, 0.9].
func scoreFirstWord(a, b string) float64 {
	fa, fb := firstWord(a), firstWord(b)
	if fa == "" || fb == "" {
		return 0
	}
	sim := editRatio(fa, fb)
	if sim < 0.6 {
		return 0
	}
	return 0.7 + (sim-0.6)/0.4*0.2
}

// scoreTokenBlend mixes word-set overlap with whole-string similarity,
// weighted toward the first word.
func scoreTokenBlend(a, b string) float64 {
	jac := jaccard(toTokenSet(a), toTokenSet(b))
	ratio := editRatio(a, b)
	fw := editRatio(firstWord(a), firstWord(b))
	return 0.45*fw + 0.35*jac + 0.2*ratio
}

var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "llp": true,
	"ltd": true, "limited": true, "corp": true, "corporation": true,
	"co": true, "company": true, "gmbh": true, "plc": true, "sa": true,
}

func cleanCompanyName(name string) string {
	tokens := splitAlphaNumLower(name)
	for len(tokens) > 0 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for token := range a {
		if _, ok := b[token]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// editRatio is normalized Levenshtein similarity in [0,1].
func editRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
