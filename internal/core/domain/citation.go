package domain

// Citation is the externally visible provenance record for one passage.
// At most one Citation exists per distinct (doc_id, span_start, span_end).
// A zero-length span on a metadata citation means the answer came from a
// structured field with no passage-level evidence.
type Citation struct {
	DocID        string `json:"doc_id"`
	ClauseNumber string `json:"clause_number,omitempty"`
	PageNum      int    `json:"page_num"`
	SpanStart    int    `json:"span_start"`
	SpanEnd      int    `json:"span_end"`
	SourceURI    string `json:"source_uri,omitempty"`
	Excerpt      string `json:"excerpt"`
}

// ConfidenceHint tells the answer generator where the citations came from so
// it can calibrate its own confidence reporting.
type ConfidenceHint string

const (
	HintMetadata ConfidenceHint = "metadata"
	HintFused    ConfidenceHint = "fused"
	HintPartial  ConfidenceHint = "partial"
	HintNone     ConfidenceHint = "none"
)

// MetadataAnswer is the metadata shortcut's output: a structured field
// rendered for humans plus its source location when extraction recorded one.
type MetadataAnswer struct {
	DocumentID string         `json:"document_id"`
	Field      string         `json:"field"`
	Rendered   string         `json:"rendered"`
	Location   *FieldLocation `json:"location,omitempty"`
}

// AskResult is the upward interface toward the answer-generation layer.
// FailedBackends names the retrieval backends that errored or timed out, so
// callers can flag degraded answers.
type AskResult struct {
	Citations      []Citation     `json:"citations"`
	QuestionType   QuestionType   `json:"matched_question_type"`
	ConfidenceHint ConfidenceHint `json:"confidence_hint"`
	FailedBackends []string       `json:"failed_backends,omitempty"`
}
