// Package validate flags answers that may assert content not present in the
// tool evidence they were composed from. It is a keyword heuristic and cannot
// prove an answer correct.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity orders warnings; the zero value is Low.
type Severity int

const (
	Low Severity = iota
	Medium
	High
)

func (s Severity) String() string {
	switch s {
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "low"
	}
}

// Warning is one suspicious claim found in an answer.
type Warning struct {
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Validator inspects an answer against the evidence it was built from.
type Validator interface {
	Validate(query, answer, evidence string) []Warning
}

// Risk is the highest severity among warnings, Low when there are none.
func Risk(warnings []Warning) Severity {
	risk := Low
	for _, w := range warnings {
		if w.Severity > risk {
			risk = w.Severity
		}
	}
	return risk
}

// Nop never warns.
type Nop struct{}

func (Nop) Validate(string, string, string) []Warning { return nil }

var (
	DefaultTriggers   = []string{"contain", "with", "has", "ingredient"}
	DefaultVocabulary = []string{
		"cumin", "garlic", "onion", "tomato", "pepper", "salt", "oil",
		"lemon", "cashew", "nutritional yeast", "ginger", "turmeric",
	}
)

// KeywordValidator checks ingredient claims made in answers to ingredient
// searches. A vocabulary term named in the answer but absent from the evidence
// is a High warning; any recipe-content claim is a Medium warning.
type KeywordValidator struct {
	triggers   *regexp.Regexp
	vocabulary *regexp.Regexp
	claim      *regexp.Regexp
}

// NewKeywordValidator builds a validator. Nil arguments select the defaults.
func NewKeywordValidator(triggers, vocabulary []string) *KeywordValidator {
	if triggers == nil {
		triggers = DefaultTriggers
	}
	if vocabulary == nil {
		vocabulary = DefaultVocabulary
	}
	return &KeywordValidator{
		// triggers match word prefixes so "contain" also catches "contains"
		triggers:   alternation(`\b(?:%s)`, triggers),
		vocabulary: alternation(`\b(?:%s)\b`, vocabulary),
		claim:      regexp.MustCompile(`\b(?:contains|has)\b`),
	}
}

func alternation(format string, words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(strings.ToLower(w)); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		// matches nothing
		return regexp.MustCompile(`[^\s\S]`)
	}
	return regexp.MustCompile(fmt.Sprintf(format, strings.Join(quoted, "|")))
}

func (v *KeywordValidator) Validate(query, answer, evidence string) []Warning {
	q := strings.ToLower(query)
	a := strings.ToLower(answer)
	e := strings.ToLower(evidence)

	var warnings []Warning

	if v.triggers.MatchString(q) {
		seen := map[string]bool{}
		for _, term := range v.vocabulary.FindAllString(a, -1) {
			if seen[term] || strings.Contains(e, term) {
				continue
			}
			seen[term] = true
			warnings = append(warnings, Warning{
				Severity:   High,
				Message:    fmt.Sprintf("Claims '%s' but not found in tool results", term),
				Suggestion: fmt.Sprintf("Remove mention of '%s' or state it was not found", term),
			})
		}
	}

	if strings.Contains(a, "recipe") && v.claim.MatchString(a) {
		warnings = append(warnings, Warning{
			Severity: Medium,
			Message:  "Making specific claims about recipe contents",
		})
	}

	return warnings
}
