package ports

import (
	"context"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

// LexicalIndex is the keyword search backend. A document-id filter is pushed
// into the backend query, never applied after the fact.
type LexicalIndex interface {
	Search(ctx context.Context, queryText string, filters domain.SearchFilters, k int) ([]domain.RankedHit, error)
}

// VectorIndex is the dense-embedding search backend. Implementations embed
// the query text internally.
type VectorIndex interface {
	Search(ctx context.Context, queryText string, filters domain.SearchFilters, k int) ([]domain.RankedHit, error)
}

// MetadataStore reads structured contract fields.
type MetadataStore interface {
	GetByID(ctx context.Context, documentID string) (*domain.ContractRecord, error)
	GetField(ctx context.Context, documentID, field string) (*domain.MetadataValue, error)
	ListByEffectiveDateRange(ctx context.Context, dr domain.DateRange) ([]domain.ContractRecord, error)
}

// PartyDirectory supplies the candidate lists for entity resolution plus a
// bounded excerpt of a document's indexed text for location re-ranking.
type PartyDirectory interface {
	ListParties(ctx context.Context) ([]domain.PartyRecord, error)
	ListFilenames(ctx context.Context) ([]domain.FileRecord, error)
	DocumentExcerpt(ctx context.Context, documentID string, maxLen int) (string, error)
}

// Embedder builds a vector for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// MessageQueue publishes/consumes batch evaluation jobs.
type MessageQueue interface {
	PublishAskJob(ctx context.Context, job domain.AskJob) error
	SubscribeAskJobs(ctx context.Context, handler func(context.Context, domain.AskJob) error) error
}
