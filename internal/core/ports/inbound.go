package ports

import (
	"context"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

// QuestionService is the inbound contract for answering contract questions.
type QuestionService interface {
	Ask(ctx context.Context, question string) (*domain.AskResult, error)
}

// ContractReader is the inbound read model for contract metadata.
type ContractReader interface {
	GetByID(ctx context.Context, id string) (*domain.ContractRecord, error)
}
