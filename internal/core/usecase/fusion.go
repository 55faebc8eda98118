package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
)

// FusionConfig carries the retrieval weights and budget. Weight tuning is an
// operational activity, so weights stay configuration and never become code.
type FusionConfig struct {
	WeightLexical float64
	WeightVector  float64
	RRFK          int
	TopK          int
	Timeout       time.Duration
}

func (c FusionConfig) Validate() error {
	if c.WeightLexical < 0 || c.WeightVector < 0 {
		return domain.WrapError(domain.ErrConfiguration, "fusion config",
			fmt.Errorf("backend weights must be non-negative, got lexical=%v vector=%v", c.WeightLexical, c.WeightVector))
	}
	if c.WeightLexical == 0 && c.WeightVector == 0 {
		return domain.WrapError(domain.ErrConfiguration, "fusion config",
			fmt.Errorf("at least one backend weight must be positive"))
	}
	if c.RRFK <= 0 {
		return domain.WrapError(domain.ErrConfiguration, "fusion config",
			fmt.Errorf("rrf k must be positive, got %d", c.RRFK))
	}
	if c.TopK <= 0 {
		return domain.WrapError(domain.ErrConfiguration, "fusion config",
			fmt.Errorf("top k must be positive, got %d", c.TopK))
	}
	if c.Timeout <= 0 {
		return domain.WrapError(domain.ErrConfiguration, "fusion config",
			fmt.Errorf("timeout must be positive, got %v", c.Timeout))
	}
	return nil
}

// FusionRetriever merges lexical and vector results with Reciprocal Rank
// Fusion.
type FusionRetriever struct {
	lexical ports.LexicalIndex
	vector  ports.VectorIndex
	cfg     FusionConfig
}

func NewFusionRetriever(lexical ports.LexicalIndex, vector ports.VectorIndex, cfg FusionConfig) (*FusionRetriever, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &FusionRetriever{lexical: lexical, vector: vector, cfg: cfg}, nil
}

type backendResult struct {
	backend string
	hits    []domain.RankedHit
	err     error
}

// Retrieve issues both backend queries before awaiting either, under one
// shared timeout. A failed or slow backend degrades the result to partial;
// both failing yields RetrievalFailed so the caller can answer "no evidence
// found" instead of crashing.
func (r *FusionRetriever) Retrieve(ctx context.Context, q domain.Query, filters domain.SearchFilters, k int) domain.FusionResult {
	if k <= 0 || k > r.cfg.TopK {
		k = r.cfg.TopK
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	results := make(chan backendResult, 2)
	go func() {
		hits, err := r.lexical.Search(ctx, lexicalQueryText(q), filters, k)
		results <- backendResult{domain.BackendLexical, hits, err}
	}()
	go func() {
		hits, err := r.vector.Search(ctx, vectorQueryText(q), filters, k)
		results <- backendResult{domain.BackendVector, hits, err}
	}()

	// The channel is buffered, so a backend replying after the budget expires
	// never leaks its goroutine.
	byBackend := make(map[string][]domain.RankedHit, 2)
	reported := make(map[string]bool, 2)
	var failed []string
collect:
	for i := 0; i < 2; i++ {
		select {
		case res := <-results:
			reported[res.backend] = true
			if res.err != nil {
				failed = append(failed, res.backend)
				continue
			}
			byBackend[res.backend] = res.hits
		case <-ctx.Done():
			break collect
		}
	}
	for _, name := range []string{domain.BackendLexical, domain.BackendVector} {
		if !reported[name] {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)

	if len(failed) == 2 {
		return domain.FusionResult{Status: domain.RetrievalFailed, FailedBackends: failed}
	}

	hits := fuseRRF(byBackend, r.cfg, k)
	status := domain.RetrievalComplete
	if len(failed) > 0 {
		status = domain.RetrievalPartial
	}
	return domain.FusionResult{Hits: hits, Status: status, FailedBackends: failed}
}

type fusedCandidate struct {
	hit      domain.FusedHit
	backends map[string]bool
}

// fuseRRF scores each chunk by the sum of weight/(K+rank) over the backends
// it appears in. Ties break on both-backend presence, then lower best rank,
// then chunk id, so the final order is deterministic.
func fuseRRF(byBackend map[string][]domain.RankedHit, cfg FusionConfig, k int) []domain.FusedHit {
	weights := map[string]float64{
		domain.BackendLexical: cfg.WeightLexical,
		domain.BackendVector:  cfg.WeightVector,
	}

	acc := make(map[string]*fusedCandidate)
	addList := func(backend string, hits []domain.RankedHit) {
		for i, hit := range hits {
			rank := i + 1
			key := hit.ChunkID
			if key == "" {
				key = fmt.Sprintf("%s|%d|%d", hit.DocumentID, hit.SpanStart, hit.SpanEnd)
			}
			cand, ok := acc[key]
			if !ok {
				cand = &fusedCandidate{
					hit:      domain.FusedHit{ChunkID: key, BestRank: rank},
					backends: make(map[string]bool, 2),
				}
				acc[key] = cand
			}
			copyRicherPassage(&cand.hit, hit)
			cand.hit.RRFScore += weights[backend] / float64(cfg.RRFK+rank)
			cand.backends[backend] = true
			if rank < cand.hit.BestRank {
				cand.hit.BestRank = rank
			}
		}
	}
	addList(domain.BackendLexical, byBackend[domain.BackendLexical])
	addList(domain.BackendVector, byBackend[domain.BackendVector])

	out := make([]domain.FusedHit, 0, len(acc))
	for _, cand := range acc {
		names := make([]string, 0, len(cand.backends))
		for name := range cand.backends {
			names = append(names, name)
		}
		sort.Strings(names)
		cand.hit.Backends = names
		out = append(out, cand.hit)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		if len(out[i].Backends) != len(out[j].Backends) {
			return len(out[i].Backends) > len(out[j].Backends)
		}
		if out[i].BestRank != out[j].BestRank {
			return out[i].BestRank < out[j].BestRank
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	if len(out) > k {
		out = out[:k]
	}
	return out
}

// copyRicherPassage keeps the longer passage text and fills coordinate
// fields from whichever backend supplied them first.
func copyRicherPassage(dst *domain.FusedHit, src domain.RankedHit) {
	if len(src.Text) > len(dst.Text) {
		dst.Text = src.Text
	}
	if dst.DocumentID == "" {
		dst.DocumentID = src.DocumentID
	}
	if dst.SectionType == "" {
		dst.SectionType = src.SectionType
	}
	if dst.ClauseNumber == "" {
		dst.ClauseNumber = src.ClauseNumber
	}
	if dst.PageNum == 0 {
		dst.PageNum = src.PageNum
	}
	if dst.SpanEnd == 0 {
		dst.SpanStart = src.SpanStart
		dst.SpanEnd = src.SpanEnd
	}
	if dst.SourceURI == "" {
		dst.SourceURI = src.SourceURI
	}
}

// lexicalQueryText appends domain synonyms for governing-law and term
// questions so exact-token matching can hit either phrasing. The vector
// backend receives the reformulated text untouched; dense retrieval does not
// depend on exact tokens.
func lexicalQueryText(q domain.Query) string {
	text := q.Reformulated
	if q.Type != domain.QuestionStructured {
		return text
	}
	switch q.TypeParams[domain.ParamField] {
	case domain.FieldGoverningLaw:
		text = appendMissingTerms(text, "governing law", "jurisdiction")
	case domain.FieldTermMonths:
		text = appendMissingTerms(text, "term", "duration")
	}
	return text
}

func vectorQueryText(q domain.Query) string {
	return q.Reformulated
}

func appendMissingTerms(text string, terms ...string) string {
	for _, term := range terms {
		if !strings.Contains(text, term) {
			text += " " + term
		}
	}
	return text
}
