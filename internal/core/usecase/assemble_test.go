package usecase

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

func TestFromHitsDeduplicatesBySpan(t *testing.T) {
	a := NewCitationAssembler(0, -1)
	hits := []domain.FusedHit{
		{ChunkID: "c1", DocumentID: "doc-1", SpanStart: 100, SpanEnd: 200, PageNum: 2, ClauseNumber: "4.1", SourceURI: "s3://ndas/doc-1.pdf", Text: "first passage"},
		{ChunkID: "c2", DocumentID: "doc-1", SpanStart: 100, SpanEnd: 200, Text: "duplicate span, different chunk"},
		{ChunkID: "c3", DocumentID: "doc-1", SpanStart: 300, SpanEnd: 400, Text: "second passage"},
	}

	cits := a.FromHits(hits)
	if len(cits) != 2 {
		t.Fatalf("expected 2 citations after dedup, got %d", len(cits))
	}
	if cits[0].Excerpt != "first passage" {
		t.Fatalf("dedup must keep the first occurrence, got %q", cits[0].Excerpt)
	}
	if cits[0].ClauseNumber != "4.1" || cits[0].PageNum != 2 || cits[0].SourceURI != "s3://ndas/doc-1.pdf" {
		t.Fatalf("citation lost source fields: %+v", cits[0])
	}
	if cits[1].SpanStart != 300 {
		t.Fatalf("expected second span preserved, got %+v", cits[1])
	}
}

func TestFromHitsNeverEmitsDuplicateSpans(t *testing.T) {
	a := NewCitationAssembler(0, -1)
	var hits []domain.FusedHit
	for i := 0; i < 40; i++ {
		span := (i % 10) * 50
		hits = append(hits, domain.FusedHit{
			ChunkID:    "chunk",
			DocumentID: "doc-1",
			SpanStart:  span,
			SpanEnd:    span + 50,
			Text:       "passage",
		})
	}

	cits := a.FromHits(hits)
	if len(cits) != 10 {
		t.Fatalf("expected 10 unique spans, got %d", len(cits))
	}
	seen := make(map[[2]int]bool)
	for _, c := range cits {
		key := [2]int{c.SpanStart, c.SpanEnd}
		if seen[key] {
			t.Fatalf("duplicate span emitted: %v", key)
		}
		seen[key] = true
	}
}

func TestTruncateAtSentenceBoundary(t *testing.T) {
	a := NewCitationAssembler(40, 15)
	text := strings.Repeat("a", 30) + ". " + strings.Repeat("b", 30)

	got := a.truncateExcerpt(text)
	want := strings.Repeat("a", 30) + "."
	if got != want {
		t.Fatalf("boundary cut = %q, want %q", got, want)
	}
}

func TestTruncateHardCapWithoutBoundary(t *testing.T) {
	a := NewCitationAssembler(40, 15)

	got := a.truncateExcerpt(strings.Repeat("x", 80))
	if len(got) != 40 {
		t.Fatalf("hard cap cut length = %d, want 40", len(got))
	}
}

func TestTruncateIgnoresBoundaryOutsideTolerance(t *testing.T) {
	a := NewCitationAssembler(40, 15)
	text := strings.Repeat("y", 10) + "." + strings.Repeat("y", 60)

	got := a.truncateExcerpt(text)
	if utf8.RuneCountInString(got) != 40 {
		t.Fatalf("expected hard cap when only boundary is outside tolerance, got %d runes", utf8.RuneCountInString(got))
	}
}

func TestTruncateCountsRunesNotBytes(t *testing.T) {
	a := NewCitationAssembler(40, 15)

	got := a.truncateExcerpt(strings.Repeat("é", 80))
	if utf8.RuneCountInString(got) != 40 {
		t.Fatalf("expected 40 runes, got %d", utf8.RuneCountInString(got))
	}
}

func TestTruncateLeavesShortTextAlone(t *testing.T) {
	a := NewCitationAssembler(40, 15)

	if got := a.truncateExcerpt("  short.  "); got != "short." {
		t.Fatalf("short text = %q, want trimmed original", got)
	}
}

func TestAssemblerClampsTolerance(t *testing.T) {
	a := NewCitationAssembler(100, 100)
	if a.tolerance != 25 {
		t.Fatalf("tolerance = %d, want clamped to 25", a.tolerance)
	}
	a = NewCitationAssembler(0, -1)
	if a.maxExcerpt != defaultExcerptMax || a.tolerance != defaultBoundaryTolerance {
		t.Fatalf("defaults not applied: %+v", a)
	}
}

func TestFromMetadataCarriesFieldLocation(t *testing.T) {
	a := NewCitationAssembler(0, -1)
	ans := domain.MetadataAnswer{
		DocumentID: "doc-1",
		Field:      domain.FieldGoverningLaw,
		Rendered:   "The agreement is governed by the laws of Delaware.",
		Location:   &domain.FieldLocation{PageNum: 3, SpanStart: 120, SpanEnd: 180, SourceURI: "s3://ndas/doc-1.pdf"},
	}

	cits := a.FromMetadata(ans)
	if len(cits) != 1 {
		t.Fatalf("expected exactly one citation, got %d", len(cits))
	}
	c := cits[0]
	if c.DocID != "doc-1" || c.PageNum != 3 || c.SpanStart != 120 || c.SpanEnd != 180 {
		t.Fatalf("location not carried: %+v", c)
	}
	if c.Excerpt != ans.Rendered {
		t.Fatalf("excerpt = %q, want rendered answer", c.Excerpt)
	}
}

func TestFromMetadataWithoutLocationHasZeroSpan(t *testing.T) {
	a := NewCitationAssembler(0, -1)

	cits := a.FromMetadata(domain.MetadataAnswer{DocumentID: "doc-1", Rendered: "The confidentiality term is 24 months."})
	if len(cits) != 1 {
		t.Fatalf("expected one citation, got %d", len(cits))
	}
	if cits[0].SpanStart != 0 || cits[0].SpanEnd != 0 || cits[0].PageNum != 0 {
		t.Fatalf("expected zero span for unlocated field, got %+v", cits[0])
	}
}

func TestFromContractsRendersListing(t *testing.T) {
	a := NewCitationAssembler(0, -1)
	eff := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	records := []domain.ContractRecord{
		{ID: "doc-1", Filename: "vallen_nda.pdf", Counterparty: "Vallen Distribution", EffectiveDate: &eff, SourceURI: "s3://ndas/doc-1.pdf"},
		{ID: "doc-1", Filename: "vallen_nda.pdf", Counterparty: "Vallen Distribution"},
		{ID: "doc-2"},
	}

	cits := a.FromContracts(records)
	if len(cits) != 2 {
		t.Fatalf("expected duplicate contract dropped, got %d citations", len(cits))
	}
	want := "NDA with Vallen Distribution (vallen_nda.pdf), effective March 1, 2024."
	if cits[0].Excerpt != want {
		t.Fatalf("summary = %q, want %q", cits[0].Excerpt, want)
	}
	if cits[0].SourceURI != "s3://ndas/doc-1.pdf" {
		t.Fatalf("source uri not carried: %+v", cits[0])
	}
	if cits[1].Excerpt != "NDA doc-2." {
		t.Fatalf("fallback summary = %q", cits[1].Excerpt)
	}
}
