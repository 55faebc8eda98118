package pgvector

import (
	"strings"
	"testing"
	"time"

	pgvec "github.com/pgvector/pgvector-go"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

func TestBuildSearchQueryUnfiltered(t *testing.T) {
	vector := pgvec.NewVector([]float32{0.1, 0.2})
	query, args := buildSearchQuery(vector, domain.SearchFilters{}, 10)

	if strings.Contains(query, "WHERE") {
		t.Fatalf("unfiltered query must not carry a WHERE clause:\n%s", query)
	}
	if !strings.Contains(query, "ORDER BY embedding <=> $1") {
		t.Fatalf("query must order by cosine distance:\n%s", query)
	}
	if !strings.Contains(query, "LIMIT $2") {
		t.Fatalf("limit placeholder = want $2 in:\n%s", query)
	}
	if len(args) != 2 {
		t.Fatalf("len(args) = %d, want 2", len(args))
	}
	if args[1] != 10 {
		t.Fatalf("limit arg = %v, want 10", args[1])
	}
}

func TestBuildSearchQueryWithDocumentFilter(t *testing.T) {
	vector := pgvec.NewVector([]float32{0.1})
	query, args := buildSearchQuery(vector, domain.SearchFilters{DocumentID: "doc-7"}, 5)

	if !strings.Contains(query, "WHERE document_id = $2") {
		t.Fatalf("document filter missing from query:\n%s", query)
	}
	if !strings.Contains(query, "LIMIT $3") {
		t.Fatalf("limit placeholder = want $3 in:\n%s", query)
	}
	if args[1] != "doc-7" {
		t.Fatalf("document arg = %v, want doc-7", args[1])
	}
	if args[2] != 5 {
		t.Fatalf("limit arg = %v, want 5", args[2])
	}
}

func TestBuildSearchQueryWithDateRange(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	vector := pgvec.NewVector([]float32{0.1})

	query, args := buildSearchQuery(vector, domain.SearchFilters{
		DocumentID: "doc-7",
		DateRange:  &domain.DateRange{Start: start, End: end},
	}, 8)

	if !strings.Contains(query, "document_id = $2 AND effective_date >= $3 AND effective_date <= $4") {
		t.Fatalf("combined filter missing from query:\n%s", query)
	}
	if !strings.Contains(query, "LIMIT $5") {
		t.Fatalf("limit placeholder = want $5 in:\n%s", query)
	}
	if args[2] != start || args[3] != end {
		t.Fatalf("date args = %v, %v; want %v, %v", args[2], args[3], start, end)
	}
}
