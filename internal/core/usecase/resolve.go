package usecase

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
)

// Tunable constants of the location re-ranking step. The boost is a
// heuristic, not a calibrated probability.
const (
	bestMatchFloor      = 0.3
	locationBoost       = 0.15
	locationWindowChars = 1200
	locationProbeLimit  = 5
	locationProbeConc   = 4
)

var officePhrases = []string{
	"corporate office",
	"principal office",
	"principal place of business",
	"registered office",
	"headquarters",
	"headquartered",
}

// EntityResolver fuzzy-matches a company fragment from the question against
// known party names and filenames.
type EntityResolver struct {
	directory        ports.PartyDirectory
	afterPreposition *regexp.Regexp
	locationIntent   *regexp.Regexp
}

func NewEntityResolver(directory ports.PartyDirectory) *EntityResolver {
	return &EntityResolver{
		directory:        directory,
		afterPreposition: regexp.MustCompile(`\b(?:of|for|with|about)\s+((?:[A-Z][\w&.'-]*)(?:,?\s+[A-Z][\w&.'-]*)*)`),
		locationIntent:   regexp.MustCompile(`\b(where|located|location|address|office|headquarters|headquartered)\b`),
	}
}

// Resolve returns every candidate with a positive score, sorted by
// confidence descending with discovery order preserved on ties. An empty
// result means no document filter, not a failure.
func (r *EntityResolver) Resolve(ctx context.Context, nq domain.NormalizedQuery) ([]domain.CandidateMatch, error) {
	fragment := r.ExtractCompanyFragment(nq.Raw)
	if fragment == "" {
		return nil, nil
	}

	parties, err := r.directory.ListParties(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "list parties", err)
	}
	files, err := r.directory.ListFilenames(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "list filenames", err)
	}

	candidates := make([]domain.CandidateMatch, 0, len(parties)+len(files))
	for _, p := range parties {
		if score := fuzzyMatchScore(fragment, p.PartyName); score > 0 {
			candidates = append(candidates, domain.CandidateMatch{
				DocumentID:   p.DocumentID,
				MatchedValue: p.PartyName,
				Kind:         domain.MatchPartyName,
				Confidence:   score,
			})
		}
	}
	for _, f := range files {
		if score := fuzzyMatchScore(fragment, filenameStem(f.Filename)); score > 0 {
			candidates = append(candidates, domain.CandidateMatch{
				DocumentID:   f.DocumentID,
				MatchedValue: f.Filename,
				Kind:         domain.MatchFilename,
				Confidence:   score,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	candidates = dedupeByDocument(candidates)

	if r.locationIntent.MatchString(nq.Normalized) {
		candidates = r.applyLocationBoost(ctx, candidates)
	}
	return candidates, nil
}

// BestMatch applies the confidence floor to the top candidate. The floor
// gates best-match selection only; the full list stays available upstream.
func BestMatch(candidates []domain.CandidateMatch) (domain.CandidateMatch, bool) {
	if len(candidates) == 0 || candidates[0].Confidence < bestMatchFloor {
		return domain.CandidateMatch{}, false
	}
	return candidates[0], true
}

// ExtractCompanyFragment looks for capitalized tokens after of/for/with,
// then falls back to the first run of capitalized or all-caps tokens outside
// the stop list. Empty means no document filter.
func (r *EntityResolver) ExtractCompanyFragment(raw string) string {
	if m := r.afterPreposition.FindStringSubmatch(raw); m != nil {
		if frag := trimStopTokens(m[1]); frag != "" {
			return frag
		}
	}

	var run []string
	for _, tok := range strings.Fields(raw) {
		word := strings.Trim(tok, `.,?!:;"'()`)
		if isNameToken(word) {
			run = append(run, word)
			continue
		}
		if len(run) > 0 {
			break
		}
	}
	return strings.Join(run, " ")
}

func isNameToken(word string) bool {
	if word == "" || fragmentStopWords[strings.ToLower(word)] {
		return false
	}
	first := rune(word[0])
	return first >= 'A' && first <= 'Z'
}

var fragmentStopWords = map[string]bool{
	"what": true, "who": true, "when": true, "where": true, "which": true,
	"how": true, "is": true, "are": true, "was": true, "does": true,
	"do": true, "can": true, "could": true, "please": true, "tell": true,
	"the": true, "a": true, "an": true, "nda": true, "ndas": true,
	"agreement": true, "agreements": true, "contract": true,
	"contracts": true, "document": true, "documents": true, "clause": true,
	"date": true, "term": true, "governing": true, "law": true,
	"state": true, "effective": true, "expiration": true, "mutual": true,
	"parties": true, "i": true,
}

func trimStopTokens(fragment string) string {
	tokens := strings.Fields(fragment)
	for len(tokens) > 0 && fragmentStopWords[strings.ToLower(strings.Trim(tokens[0], `.,?!:;"'`))] {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && fragmentStopWords[strings.ToLower(strings.Trim(tokens[len(tokens)-1], `.,?!:;"'`))] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

func dedupeByDocument(candidates []domain.CandidateMatch) []domain.CandidateMatch {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true
		out = append(out, c)
	}
	return out
}

// applyLocationBoost scans a bounded window of each surviving candidate's
// indexed text for office phrases and bumps confidence before a stable
// re-sort. Probe failures mean no boost for that candidate, nothing more.
func (r *EntityResolver) applyLocationBoost(ctx context.Context, candidates []domain.CandidateMatch) []domain.CandidateMatch {
	survivors := 0
	for _, c := range candidates {
		if c.Confidence >= bestMatchFloor {
			survivors++
		}
	}
	if survivors < 2 {
		return candidates
	}

	probes := survivors
	if probes > locationProbeLimit {
		probes = locationProbeLimit
	}

	boosted := make([]bool, probes)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(locationProbeConc)
	for i := 0; i < probes; i++ {
		i := i
		g.Go(func() error {
			excerpt, err := r.directory.DocumentExcerpt(gctx, candidates[i].DocumentID, locationWindowChars)
			if err != nil {
				return nil
			}
			boosted[i] = containsOfficePhrase(excerpt)
			return nil
		})
	}
	_ = g.Wait()

	for i := 0; i < probes; i++ {
		if boosted[i] {
			candidates[i].Confidence = clampConfidence(candidates[i].Confidence + locationBoost)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates
}

func containsOfficePhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range officePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func clampConfidence(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

func filenameStem(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return stem
}
