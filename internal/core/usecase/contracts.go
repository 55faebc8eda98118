package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
)

// ContractUseCase is the read model behind the contract lookup endpoint.
type ContractUseCase struct {
	store ports.MetadataStore
}

func NewContractUseCase(store ports.MetadataStore) *ContractUseCase {
	return &ContractUseCase{store: store}
}

func (uc *ContractUseCase) GetByID(ctx context.Context, id string) (*domain.ContractRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get contract", fmt.Errorf("id is empty"))
	}
	record, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get contract %s: %w", id, err)
	}
	return record, nil
}
