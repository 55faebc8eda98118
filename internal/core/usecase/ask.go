package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
)

// AskUseCase runs the full question pipeline: normalize, classify, resolve,
// metadata shortcut, fused retrieval, citation assembly. Everything it builds
// is request-scoped; nothing survives the call.
type AskUseCase struct {
	normalizer *Normalizer
	classifier *Classifier
	resolver   *EntityResolver
	shortcut   *MetadataShortcut
	retriever  *FusionRetriever
	assembler  *CitationAssembler
	metadata   ports.MetadataStore
}

func NewAskUseCase(
	normalizer *Normalizer,
	classifier *Classifier,
	resolver *EntityResolver,
	shortcut *MetadataShortcut,
	retriever *FusionRetriever,
	assembler *CitationAssembler,
	metadata ports.MetadataStore,
) *AskUseCase {
	return &AskUseCase{
		normalizer: normalizer,
		classifier: classifier,
		resolver:   resolver,
		shortcut:   shortcut,
		retriever:  retriever,
		assembler:  assembler,
		metadata:   metadata,
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, question string) (*domain.AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is empty"))
	}

	nq := uc.normalizer.Normalize(question)
	qtype, params := uc.classifier.Classify(nq)

	// A failing directory must not block the question; retrieval simply runs
	// over the whole corpus.
	candidates, err := uc.resolver.Resolve(ctx, nq)
	if err != nil {
		candidates = nil
	}

	query := domain.Query{
		Raw:          nq.Raw,
		Normalized:   nq.Normalized,
		Reformulated: nq.Reformulated,
		Type:         qtype,
		TypeParams:   params,
		DateRange:    nq.DateRange,
	}
	if best, ok := BestMatch(candidates); ok {
		query.DocumentFilter = best.DocumentID
	}

	// Shortcut errors fall through to retrieval rather than failing the
	// request.
	if answer, err := uc.shortcut.TryAnswer(ctx, query); err == nil && answer != nil {
		return &domain.AskResult{
			Citations:      uc.assembler.FromMetadata(*answer),
			QuestionType:   qtype,
			ConfidenceHint: domain.HintMetadata,
		}, nil
	}

	if qtype == domain.QuestionDateRange && query.DateRange != nil {
		if result, ok := uc.listByDateRange(ctx, query); ok {
			return result, nil
		}
	}

	filters := domain.SearchFilters{DocumentID: query.DocumentFilter, DateRange: query.DateRange}
	fusion := uc.retriever.Retrieve(ctx, query, filters, 0)
	if fusion.Status == domain.RetrievalFailed {
		return &domain.AskResult{
			Citations:      []domain.Citation{},
			QuestionType:   qtype,
			ConfidenceHint: domain.HintNone,
			FailedBackends: fusion.FailedBackends,
		}, nil
	}

	citations := uc.assembler.FromHits(fusion.Hits)
	hint := domain.HintFused
	switch {
	case len(citations) == 0:
		hint = domain.HintNone
	case fusion.Status == domain.RetrievalPartial:
		hint = domain.HintPartial
	}
	return &domain.AskResult{
		Citations:      citations,
		QuestionType:   qtype,
		ConfidenceHint: hint,
		FailedBackends: fusion.FailedBackends,
	}, nil
}

// listByDateRange answers "created in <period>" questions straight from the
// metadata store. An empty or failed lookup falls back to fused retrieval
// with the date filter pushed down.
func (uc *AskUseCase) listByDateRange(ctx context.Context, q domain.Query) (*domain.AskResult, bool) {
	records, err := uc.metadata.ListByEffectiveDateRange(ctx, *q.DateRange)
	if err != nil || len(records) == 0 {
		return nil, false
	}
	return &domain.AskResult{
		Citations:      uc.assembler.FromContracts(records),
		QuestionType:   q.Type,
		ConfidenceHint: domain.HintMetadata,
	}, true
}
