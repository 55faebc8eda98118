package domain

// Backend names used for fusion weights, partial-result reporting and
// metrics labels.
const (
	BackendLexical = "lexical"
	BackendVector  = "vector"
)

type SearchFilters struct {
	DocumentID string     `json:"document_id,omitempty"`
	DateRange  *DateRange `json:"date_range,omitempty"`
}

// RankedHit is a single result from one backend. BackendRank is 1-based and
// unique within that backend's list; SpanEnd > SpanStart always holds for
// hits produced by the indexers.
type RankedHit struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	BackendRank  int     `json:"backend_rank"`
	BackendScore float64 `json:"backend_score"`
	SectionType  string  `json:"section_type,omitempty"`
	ClauseNumber string  `json:"clause_number,omitempty"`
	PageNum      int     `json:"page_num"`
	SpanStart    int     `json:"span_start"`
	SpanEnd      int     `json:"span_end"`
	SourceURI    string  `json:"source_uri,omitempty"`
	Text         string  `json:"text"`
}

// FusedHit merges the per-backend hits for one chunk. Passage fields are
// copied from whichever backend carried the richer text. BestRank is the
// minimum backend rank and participates in tie-breaking.
type FusedHit struct {
	ChunkID      string   `json:"chunk_id"`
	DocumentID   string   `json:"document_id"`
	RRFScore     float64  `json:"rrf_score"`
	Backends     []string `json:"backends"`
	BestRank     int      `json:"best_rank"`
	SectionType  string   `json:"section_type,omitempty"`
	ClauseNumber string   `json:"clause_number,omitempty"`
	PageNum      int      `json:"page_num"`
	SpanStart    int      `json:"span_start"`
	SpanEnd      int      `json:"span_end"`
	SourceURI    string   `json:"source_uri,omitempty"`
	Text         string   `json:"text"`
}

type RetrievalStatus string

const (
	RetrievalComplete RetrievalStatus = "complete"
	RetrievalPartial  RetrievalStatus = "partial"
	RetrievalFailed   RetrievalStatus = "failed"
)

// FusionResult carries the merged hits plus degradation state. A failed
// backend downgrades Status instead of failing the request; only both
// backends failing yields RetrievalFailed.
type FusionResult struct {
	Hits           []FusedHit      `json:"hits"`
	Status         RetrievalStatus `json:"status"`
	FailedBackends []string        `json:"failed_backends,omitempty"`
}
