package domain

import "time"

// AskJob is one queued batch-evaluation question. Expected carries the
// evaluation set's reference answer when there is one; EnqueuedAt lets the
// worker report queue lag.
type AskJob struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Expected   string    `json:"expected,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AskJobResult is the batch worker's output message: the citations produced
// for one job plus enough context to score the run offline. Error is set when
// the pipeline rejected the question outright.
type AskJobResult struct {
	JobID          string         `json:"job_id"`
	Question       string         `json:"question"`
	Expected       string         `json:"expected,omitempty"`
	QuestionType   QuestionType   `json:"matched_question_type,omitempty"`
	ConfidenceHint ConfidenceHint `json:"confidence_hint,omitempty"`
	Citations      []Citation     `json:"citations"`
	Error          string         `json:"error,omitempty"`
}
