package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
	"github.com/covenantlabs/covenant/internal/infrastructure/resilience"
)

// Client is the dense retrieval backend over a Qdrant chunk collection. It
// embeds the query text through the embedder collaborator, then searches the
// collection over Qdrant's HTTP API.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder
	executor   *resilience.Executor
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(baseURL, collection string, embedder ports.Embedder, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		embedder:   embedder,
		executor:   options.Executor,
	}
}

func (c *Client) Search(ctx context.Context, queryText string, filters domain.SearchFilters, k int) ([]domain.RankedHit, error) {
	vector, err := c.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if must := buildMustConditions(filters); len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}

	call := func(ctx context.Context) error {
		return c.postSearch(ctx, reqBody, &searchResp)
	}
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant.search", call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "vector search", err)
	}

	out := make([]domain.RankedHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RankedHit{
			ChunkID:      getStringPayload(r.Payload, "chunk_id"),
			DocumentID:   getStringPayload(r.Payload, "document_id"),
			BackendRank:  len(out) + 1,
			BackendScore: r.Score,
			SectionType:  getStringPayload(r.Payload, "section_type"),
			ClauseNumber: getStringPayload(r.Payload, "clause_number"),
			PageNum:      getIntPayload(r.Payload, "page_num"),
			SpanStart:    getIntPayload(r.Payload, "span_start"),
			SpanEnd:      getIntPayload(r.Payload, "span_end"),
			SourceURI:    getStringPayload(r.Payload, "source_uri"),
			Text:         getStringPayload(r.Payload, "text"),
		})
	}
	return out, nil
}

func (c *Client) postSearch(ctx context.Context, reqBody map[string]any, out any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

// buildMustConditions renders the push-down filter: exact document match and
// an inclusive effective-date window over the indexed unix timestamp.
func buildMustConditions(filters domain.SearchFilters) []map[string]any {
	var must []map[string]any
	if filters.DocumentID != "" {
		must = append(must, map[string]any{
			"key":   "document_id",
			"match": map[string]any{"value": filters.DocumentID},
		})
	}
	if dr := filters.DateRange; dr != nil {
		must = append(must, map[string]any{
			"key": "effective_ts",
			"range": map[string]any{
				"gte": dr.Start.Unix(),
				"lte": dr.End.Unix(),
			},
		})
	}
	return must
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	if v, ok := payload[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return 0
}
