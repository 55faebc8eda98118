package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
)

// MetadataShortcut answers structured questions straight from stored fields,
// skipping retrieval. A nil answer with nil error means the shortcut does not
// apply and the caller falls through to retrieval.
type MetadataShortcut struct {
	store ports.MetadataStore
}

func NewMetadataShortcut(store ports.MetadataStore) *MetadataShortcut {
	return &MetadataShortcut{store: store}
}

func (s *MetadataShortcut) TryAnswer(ctx context.Context, q domain.Query) (*domain.MetadataAnswer, error) {
	if q.Type != domain.QuestionStructured || q.DocumentFilter == "" {
		return nil, nil
	}

	switch q.TypeParams[domain.ParamField] {
	case domain.FieldExpirationDate:
		return s.deriveExpiration(ctx, q.DocumentFilter)
	case domain.FieldTermMonths:
		return s.renderTerm(ctx, q.DocumentFilter)
	case domain.FieldEffectiveDate, domain.FieldGoverningLaw, domain.FieldIsMutual, domain.FieldParties:
		return s.renderField(ctx, q.DocumentFilter, q.TypeParams[domain.ParamField])
	default:
		return nil, nil
	}
}

func (s *MetadataShortcut) renderField(ctx context.Context, documentID, field string) (*domain.MetadataAnswer, error) {
	value, err := s.store.GetField(ctx, documentID, field)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get field %q: %w", field, err)
	}
	if value == nil {
		return nil, nil
	}
	rendered := renderFieldValue(field, value)
	if rendered == "" {
		return nil, nil
	}
	return &domain.MetadataAnswer{
		DocumentID: documentID,
		Field:      field,
		Rendered:   rendered,
		Location:   value.Location,
	}, nil
}

// Expiration is rarely stored verbatim; it derives from the effective date
// plus the confidentiality term. Either field missing falls through to
// retrieval.
func (s *MetadataShortcut) deriveExpiration(ctx context.Context, documentID string) (*domain.MetadataAnswer, error) {
	record, err := s.store.GetByID(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load contract: %w", err)
	}
	if record.EffectiveDate == nil || record.TermMonths == nil {
		return nil, nil
	}
	expires := record.EffectiveDate.AddDate(0, *record.TermMonths, 0)
	return &domain.MetadataAnswer{
		DocumentID: documentID,
		Field:      domain.FieldExpirationDate,
		Rendered: fmt.Sprintf("The agreement expires on %s, %d months after the effective date of %s.",
			expires.Format("January 2, 2006"), *record.TermMonths, record.EffectiveDate.Format("January 2, 2006")),
	}, nil
}

func (s *MetadataShortcut) renderTerm(ctx context.Context, documentID string) (*domain.MetadataAnswer, error) {
	record, err := s.store.GetByID(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load contract: %w", err)
	}
	if record.TermMonths == nil {
		return nil, nil
	}
	rendered := fmt.Sprintf("The confidentiality term is %d months.", *record.TermMonths)
	if record.SurvivalMonths != nil {
		rendered += fmt.Sprintf(" Confidentiality obligations survive for %d months after termination.", *record.SurvivalMonths)
	}
	return &domain.MetadataAnswer{
		DocumentID: documentID,
		Field:      domain.FieldTermMonths,
		Rendered:   rendered,
	}, nil
}

func renderFieldValue(field string, value *domain.MetadataValue) string {
	switch field {
	case domain.FieldEffectiveDate:
		if value.Date == nil {
			return ""
		}
		return fmt.Sprintf("The agreement is effective as of %s.", value.Date.Format("January 2, 2006"))
	case domain.FieldGoverningLaw:
		if value.Text == "" {
			return ""
		}
		return fmt.Sprintf("The agreement is governed by the laws of %s.", value.Text)
	case domain.FieldIsMutual:
		if value.Bool == nil {
			return ""
		}
		if *value.Bool {
			return "The agreement is mutual; confidentiality obligations bind both parties."
		}
		return "The agreement is one-way; confidentiality obligations bind the receiving party only."
	case domain.FieldParties:
		if len(value.List) == 0 {
			return ""
		}
		return fmt.Sprintf("The parties are %s.", humanJoin(value.List))
	default:
		return ""
	}
}

func humanJoin(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
