package meili

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

// Chunk attributes as the ingestion pipeline indexes them. document_id and
// effective_ts must be registered as filterable attributes on the index.
const (
	attrChunkID      = "chunk_id"
	attrDocumentID   = "document_id"
	attrSectionType  = "section_type"
	attrClauseNumber = "clause_number"
	attrPageNum      = "page_num"
	attrSpanStart    = "span_start"
	attrSpanEnd      = "span_end"
	attrSourceURI    = "source_uri"
	attrText         = "text"
	attrEffectiveTS  = "effective_ts"
)

// Index is the lexical retrieval backend over a Meilisearch chunk index.
type Index struct {
	index meilisearch.IndexManager
}

func New(host, apiKey, indexName string, timeout time.Duration) *Index {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := meilisearch.New(host,
		meilisearch.WithAPIKey(apiKey),
		meilisearch.WithCustomClient(&http.Client{Timeout: timeout}),
	)
	return &Index{index: client.Index(indexName)}
}

func NewWithManager(index meilisearch.IndexManager) *Index {
	return &Index{index: index}
}

func (ix *Index) Search(_ context.Context, queryText string, filters domain.SearchFilters, k int) ([]domain.RankedHit, error) {
	req := &meilisearch.SearchRequest{
		Query:            queryText,
		Limit:            int64(k),
		ShowRankingScore: true,
	}
	if filter := buildFilter(filters); filter != "" {
		req.Filter = filter
	}

	result, err := ix.index.Search(queryText, req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "lexical search", err)
	}

	hits := make([]domain.RankedHit, 0, len(result.Hits))
	for _, raw := range result.Hits {
		hitMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		hits = append(hits, mapHit(hitMap, len(hits)+1))
	}
	return hits, nil
}

func mapHit(m map[string]interface{}, rank int) domain.RankedHit {
	return domain.RankedHit{
		ChunkID:      getString(m, attrChunkID),
		DocumentID:   getString(m, attrDocumentID),
		BackendRank:  rank,
		BackendScore: getFloat(m, "_rankingScore"),
		SectionType:  getString(m, attrSectionType),
		ClauseNumber: getString(m, attrClauseNumber),
		PageNum:      getInt(m, attrPageNum),
		SpanStart:    getInt(m, attrSpanStart),
		SpanEnd:      getInt(m, attrSpanEnd),
		SourceURI:    getString(m, attrSourceURI),
		Text:         getString(m, attrText),
	}
}

// buildFilter renders the push-down filter expression. Values are escaped so
// document ids cannot smuggle filter operators in.
func buildFilter(filters domain.SearchFilters) string {
	var parts []string
	if filters.DocumentID != "" {
		parts = append(parts, fmt.Sprintf("%s = \"%s\"", attrDocumentID, escapeFilterValue(filters.DocumentID)))
	}
	if dr := filters.DateRange; dr != nil {
		parts = append(parts, fmt.Sprintf("%s >= %d", attrEffectiveTS, dr.Start.Unix()))
		parts = append(parts, fmt.Sprintf("%s <= %d", attrEffectiveTS, dr.End.Unix()))
	}
	return strings.Join(parts, " AND ")
}

func escapeFilterValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return 0
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}
