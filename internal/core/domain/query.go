package domain

import "time"

type QuestionType string

const (
	QuestionStructured    QuestionType = "structured"
	QuestionClause        QuestionType = "clause"
	QuestionDateRange     QuestionType = "date_range"
	QuestionCrossDocument QuestionType = "cross_document"
	QuestionGeneral       QuestionType = "general"
)

// Structured field names carried in TypeParams["field"]. The classifier
// checks expiration before effective date; reordering changes behavior.
const (
	FieldExpirationDate = "expiration_date"
	FieldEffectiveDate  = "effective_date"
	FieldGoverningLaw   = "governing_law"
	FieldTermMonths     = "term_months"
	FieldIsMutual       = "is_mutual"
	FieldParties        = "parties"
)

// TypeParams keys.
const (
	ParamField      = "field"
	ParamClauseName = "clause_name"
)

// DateRange bounds are inclusive calendar-day boundaries.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NormalizedQuery is the normalizer's output: corrected, reformulated text
// plus an optional extracted date range. Pure value, never persisted.
type NormalizedQuery struct {
	Raw          string     `json:"raw"`
	Normalized   string     `json:"normalized"`
	Reformulated string     `json:"reformulated"`
	DateRange    *DateRange `json:"date_range,omitempty"`
}

// Query is a request-scoped value object, immutable once classification
// completes.
type Query struct {
	Raw            string            `json:"raw"`
	Normalized     string            `json:"normalized"`
	Reformulated   string            `json:"reformulated"`
	Type           QuestionType      `json:"question_type"`
	TypeParams     map[string]string `json:"type_params,omitempty"`
	DocumentFilter string            `json:"document_filter,omitempty"`
	DateRange      *DateRange        `json:"date_range,omitempty"`
}
