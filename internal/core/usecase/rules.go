package usecase

// LanguageRules extends the built-in normalization and classification tables
// with deployment-specific entries. Overlay entries append after the
// built-ins, so built-in behavior keeps priority on overlap.
type LanguageRules struct {
	PhraseCorrections []CorrectionRule `yaml:"phrase_corrections"`
	WordCorrections   []CorrectionRule `yaml:"word_corrections"`
	FillerPrefixes    []string         `yaml:"filler_prefixes"`
	ClauseNames       []ClauseNameRule `yaml:"clause_names"`
}

// CorrectionRule rewrites every whole-word occurrence of From into To. From is
// treated as literal text, not a pattern.
type CorrectionRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ClauseNameRule maps a lowercase keyword to the canonical clause title it
// names.
type ClauseNameRule struct {
	Keyword string `yaml:"keyword"`
	Title   string `yaml:"title"`
}
