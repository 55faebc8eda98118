package usecase

import (
	"fmt"
	"strings"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

// Excerpt bounds keep downstream generation context small.
const (
	defaultExcerptMax        = 500
	defaultBoundaryTolerance = 120
)

// CitationAssembler turns fused hits or metadata answers into deduplicated
// citation records.
type CitationAssembler struct {
	maxExcerpt int
	tolerance  int
}

func NewCitationAssembler(maxExcerpt, tolerance int) *CitationAssembler {
	if maxExcerpt <= 0 {
		maxExcerpt = defaultExcerptMax
	}
	if tolerance < 0 {
		tolerance = defaultBoundaryTolerance
	}
	if tolerance >= maxExcerpt {
		tolerance = maxExcerpt / 4
	}
	return &CitationAssembler{maxExcerpt: maxExcerpt, tolerance: tolerance}
}

// FromHits deduplicates by (doc, span start, span end), keeping the first
// occurrence. Hits arrive in fused order, so first seen is highest ranked.
func (a *CitationAssembler) FromHits(hits []domain.FusedHit) []domain.Citation {
	type spanKey struct {
		doc        string
		start, end int
	}
	seen := make(map[spanKey]bool, len(hits))
	out := make([]domain.Citation, 0, len(hits))
	for _, hit := range hits {
		key := spanKey{hit.DocumentID, hit.SpanStart, hit.SpanEnd}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, domain.Citation{
			DocID:        hit.DocumentID,
			ClauseNumber: hit.ClauseNumber,
			PageNum:      hit.PageNum,
			SpanStart:    hit.SpanStart,
			SpanEnd:      hit.SpanEnd,
			SourceURI:    hit.SourceURI,
			Excerpt:      a.truncateExcerpt(hit.Text),
		})
	}
	return out
}

// FromMetadata emits one synthetic citation for a shortcut answer. A
// zero-length span means the field has no recorded passage evidence, which
// downstream consumers must not read as a retrieval failure.
func (a *CitationAssembler) FromMetadata(ans domain.MetadataAnswer) []domain.Citation {
	cit := domain.Citation{
		DocID:   ans.DocumentID,
		Excerpt: a.truncateExcerpt(ans.Rendered),
	}
	if loc := ans.Location; loc != nil {
		cit.PageNum = loc.PageNum
		cit.SpanStart = loc.SpanStart
		cit.SpanEnd = loc.SpanEnd
		cit.SourceURI = loc.SourceURI
	}
	return []domain.Citation{cit}
}

// FromContracts renders date-range listings, one zero-span citation per
// matching contract.
func (a *CitationAssembler) FromContracts(records []domain.ContractRecord) []domain.Citation {
	seen := make(map[string]bool, len(records))
	out := make([]domain.Citation, 0, len(records))
	for _, rec := range records {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, domain.Citation{
			DocID:     rec.ID,
			SourceURI: rec.SourceURI,
			Excerpt:   a.truncateExcerpt(renderContractSummary(rec)),
		})
	}
	return out
}

// truncateExcerpt cuts at a sentence or clause boundary when one falls
// within the tolerance window before the hard cap, otherwise at the cap.
func (a *CitationAssembler) truncateExcerpt(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= a.maxExcerpt {
		return text
	}

	cut := a.maxExcerpt
	for i := a.maxExcerpt - 1; i >= a.maxExcerpt-a.tolerance && i >= 0; i-- {
		if isBoundaryRune(runes[i]) {
			cut = i + 1
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut]))
}

func isBoundaryRune(r rune) bool {
	switch r {
	case '.', ';', '!', '?', '\n':
		return true
	}
	return false
}

func renderContractSummary(rec domain.ContractRecord) string {
	var b strings.Builder
	if rec.Counterparty != "" {
		fmt.Fprintf(&b, "NDA with %s", rec.Counterparty)
	} else {
		fmt.Fprintf(&b, "NDA %s", rec.ID)
	}
	if rec.Filename != "" {
		fmt.Fprintf(&b, " (%s)", rec.Filename)
	}
	if rec.EffectiveDate != nil {
		fmt.Fprintf(&b, ", effective %s", rec.EffectiveDate.Format("January 2, 2006"))
	}
	b.WriteString(".")
	return b.String()
}
