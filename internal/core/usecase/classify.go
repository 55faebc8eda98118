package usecase

import (
	"regexp"
	"strings"

	"github.com/covenantlabs/covenant/internal/core/domain"
)

type fieldRule struct {
	field    string
	keywords []string
	pattern  *regexp.Regexp
	blocked  func(text string) bool
}

type clauseNameEntry struct {
	keyword   string
	canonical string
}

// Classifier labels a normalized query with exactly one QuestionType. Rules
// are evaluated in a fixed priority order; the order is part of the contract
// (expiration is checked before effective date, term is skipped when the
// question is about survival) and must not be rearranged.
type Classifier struct {
	structured    []fieldRule
	clauseNames   []clauseNameEntry
	crossKeywords []string
	clauseHints   []string
	clausePattern *regexp.Regexp
}

func NewClassifier() *Classifier {
	return NewClassifierWithRules(LanguageRules{})
}

// NewClassifierWithRules appends overlay clause-name entries after the
// built-in table.
func NewClassifierWithRules(rules LanguageRules) *Classifier {
	afterOrSurvival := regexp.MustCompile(`\b(survival|survive|survives|after)\b`)
	c := &Classifier{
		structured: []fieldRule{
			{
				field:    domain.FieldExpirationDate,
				keywords: []string{"expir", "expiration date"},
			},
			{
				field:    domain.FieldEffectiveDate,
				keywords: []string{"effective", "start date", "commencement", "commence"},
				pattern:  regexp.MustCompile(`\bwhen\b.*\bsigned\b`),
			},
			{
				field:    domain.FieldGoverningLaw,
				keywords: []string{"governing law", "governing state", "jurisdiction", "which law", "what law", "law governs", "governed by"},
			},
			{
				field:    domain.FieldTermMonths,
				keywords: []string{"duration", "how long", "length of"},
				pattern:  regexp.MustCompile(`\bterms?\b`),
				blocked: func(text string) bool {
					return afterOrSurvival.MatchString(text)
				},
			},
			{
				field:    domain.FieldIsMutual,
				keywords: []string{"mutual", "one-way", "one way", "unilateral", "bilateral", "reciprocal"},
			},
			{
				field:    domain.FieldParties,
				keywords: []string{"parties", "counterpart", "who signed", "who are", "between whom"},
				pattern:  regexp.MustCompile(`\bparty\b`),
			},
		},
		clauseNames: []clauseNameEntry{
			{"non-disclosure", "Non-Disclosure"},
			{"survival", "Survival"},
			{"survive", "Survival"},
			{"termination", "Termination"},
			{"confidentiality", "Confidentiality"},
			{"confidential information", "Confidentiality"},
			{"injunctive relief", "Injunctive Relief"},
			{"remedies", "Remedies"},
			{"return of materials", "Return of Materials"},
			{"definition", "Definitions"},
		},
		crossKeywords: []string{"compare", "across all", "difference", "versus", "all ndas", "all agreements", "which documents"},
		clauseHints:   []string{"clause", "provision", "section", "specify", "specifies", "specified"},
		clausePattern: regexp.MustCompile(`the ([a-z][a-z\- ]{0,40}?)\s+(?:clause|provision|section)`),
	}
	for _, entry := range rules.ClauseNames {
		keyword := strings.ToLower(strings.TrimSpace(entry.Keyword))
		if keyword == "" || entry.Title == "" {
			continue
		}
		c.clauseNames = append(c.clauseNames, clauseNameEntry{keyword, entry.Title})
	}
	return c
}

// Classify is total: every input maps to exactly one QuestionType and general
// is the catch-all.
func (c *Classifier) Classify(nq domain.NormalizedQuery) (domain.QuestionType, map[string]string) {
	text := nq.Normalized

	if nq.DateRange != nil {
		return domain.QuestionDateRange, nil
	}

	for _, kw := range c.crossKeywords {
		if strings.Contains(text, kw) {
			return domain.QuestionCrossDocument, nil
		}
	}

	for _, rule := range c.structured {
		if rule.blocked != nil && rule.blocked(text) {
			continue
		}
		if matchesFieldRule(rule, text) {
			return domain.QuestionStructured, map[string]string{domain.ParamField: rule.field}
		}
	}

	if name, ok := c.extractClauseName(text); ok {
		return domain.QuestionClause, map[string]string{domain.ParamClauseName: name}
	}
	for _, hint := range c.clauseHints {
		if strings.Contains(text, hint) {
			return domain.QuestionClause, nil
		}
	}

	return domain.QuestionGeneral, nil
}

func matchesFieldRule(rule fieldRule, text string) bool {
	for _, kw := range rule.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return rule.pattern != nil && rule.pattern.MatchString(text)
}

// extractClauseName pulls a clause title from "the X clause" constructions,
// falling back to the fixed keyword table.
func (c *Classifier) extractClauseName(text string) (string, bool) {
	if m := c.clausePattern.FindStringSubmatch(text); m != nil {
		if name := canonicalClauseTitle(m[1]); name != "" {
			return name, true
		}
	}
	for _, entry := range c.clauseNames {
		if strings.Contains(text, entry.keyword) {
			return entry.canonical, true
		}
	}
	return "", false
}

func canonicalClauseTitle(raw string) string {
	words := strings.Fields(strings.TrimSpace(raw))
	for i, w := range words {
		words[i] = titleCaseHyphenated(w)
	}
	return strings.Join(words, " ")
}

func titleCaseHyphenated(word string) string {
	parts := strings.Split(word, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}
