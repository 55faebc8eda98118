package domain

import "time"

type ContractStatus string

const (
	ContractActive   ContractStatus = "active"
	ContractExpired  ContractStatus = "expired"
	ContractArchived ContractStatus = "archived"
)

// ContractRecord is one row of the structured-metadata store. Pointer
// fields distinguish "extraction found nothing" from zero values.
type ContractRecord struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	Counterparty   string         `json:"counterparty"`
	Parties        []string       `json:"parties,omitempty"`
	EffectiveDate  *time.Time     `json:"effective_date,omitempty"`
	TermMonths     *int           `json:"term_months,omitempty"`
	SurvivalMonths *int           `json:"survival_months,omitempty"`
	GoverningLaw   string         `json:"governing_law,omitempty"`
	IsMutual       *bool          `json:"is_mutual,omitempty"`
	SourceURI      string         `json:"source_uri,omitempty"`
	Status         ContractStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// FieldLocation is the passage coordinate a structured field was extracted
// from, when the extractor recorded one.
type FieldLocation struct {
	PageNum   int    `json:"page_num"`
	SpanStart int    `json:"span_start"`
	SpanEnd   int    `json:"span_end"`
	SourceURI string `json:"source_uri,omitempty"`
}

// MetadataValue is a single structured field projected out of a
// ContractRecord. Exactly one of the value members is set for a present
// field; a nil *MetadataValue from the store means the field is absent.
type MetadataValue struct {
	Field    string         `json:"field"`
	Date     *time.Time     `json:"date,omitempty"`
	Months   *int           `json:"months,omitempty"`
	Bool     *bool          `json:"bool,omitempty"`
	Text     string         `json:"text,omitempty"`
	List     []string       `json:"list,omitempty"`
	Location *FieldLocation `json:"location,omitempty"`
}
