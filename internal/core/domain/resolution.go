package domain

type MatchKind string

const (
	MatchPartyName MatchKind = "party_name"
	MatchFilename  MatchKind = "filename"
)

// PartyRecord links a counterparty name to the contract it appears in.
type PartyRecord struct {
	DocumentID string `json:"document_id"`
	PartyName  string `json:"party_name"`
}

// FileRecord links a stored filename to its contract.
type FileRecord struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
}

// CandidateMatch is one entity-resolution candidate. Confidence is in [0,1]:
// exact matches score 1.0, containment 0.85 to 0.95, first-word similarity
// 0.7 to 0.9, weaker overlap below that.
type CandidateMatch struct {
	DocumentID   string    `json:"document_id"`
	MatchedValue string    `json:"matched_value"`
	Kind         MatchKind `json:"match_kind"`
	Confidence   float64   `json:"confidence"`
}
