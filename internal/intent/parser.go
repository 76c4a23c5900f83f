// Package intent extracts structured workflow intent from free-form text.
//
// The parser is deterministic string matching: action verbs anchor operations,
// the tokens that follow them become the operation target, and remaining
// content words become entities. Identical input always produces identical
// output, which keeps downstream pipeline runs reproducible.
package intent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Sensitivity expresses how aggressively downstream stages should trade cost
// for performance.
type Sensitivity string

// Recognized sensitivity levels. Empty means unspecified and is treated as
// medium by consumers.
const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Valid reports whether s is empty or one of the recognized levels.
func (s Sensitivity) Valid() bool {
	switch s {
	case "", SensitivityLow, SensitivityMedium, SensitivityHigh:
		return true
	}
	return false
}

// Profile carries the caller-supplied load and cost constraints through the
// pipeline. The zero value means no constraint was given.
type Profile struct {
	ExpectedLoad    float64     `json:"expected_load,omitempty"`
	Sensitivity     Sensitivity `json:"sensitivity,omitempty"`
	MaxComputeUnits float64     `json:"max_compute_units,omitempty"`
	MaxStorageUnits float64     `json:"max_storage_units,omitempty"`
	MaxMonthlyCost  float64     `json:"max_monthly_cost,omitempty"`
}

// ParsedIntent is the structured form of a free-text workflow description.
type ParsedIntent struct {
	Objective  string   `json:"objective"`
	Operations []string `json:"operations"`
	Entities   []string `json:"entities"`
	Profile    Profile  `json:"profile"`
}

// Parser turns raw intent text into a ParsedIntent.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser. A nil logger defaults to a no-op logger.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// actionVerbs anchor operation extraction. Lowercase, matched exactly.
var actionVerbs = map[string]struct{}{
	"build": {}, "create": {}, "implement": {}, "develop": {}, "add": {},
	"design": {}, "automate": {}, "migrate": {}, "move": {}, "convert": {},
	"optimize": {}, "improve": {}, "streamline": {}, "reduce": {},
	"simplify": {}, "integrate": {}, "connect": {}, "deploy": {},
	"release": {}, "launch": {}, "analyze": {}, "review": {}, "assess": {},
	"audit": {}, "test": {}, "validate": {}, "verify": {}, "document": {},
	"monitor": {}, "track": {}, "process": {}, "import": {}, "export": {},
	"generate": {}, "schedule": {}, "consolidate": {}, "eliminate": {},
}

// articles are skipped silently inside an operation target phrase.
var articles = map[string]struct{}{
	"a": {}, "an": {}, "the": {},
}

// stopwords end a target phrase and never become entities.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"with": {}, "for": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"by": {}, "from": {}, "that": {}, "this": {}, "these": {},
	"those": {}, "it": {}, "its": {}, "is": {}, "are": {}, "be": {},
	"was": {}, "were": {}, "will": {}, "would": {}, "should": {},
	"could": {}, "can": {}, "our": {}, "we": {}, "you": {}, "your": {},
	"they": {}, "them": {}, "their": {}, "as": {}, "at": {}, "into": {},
	"via": {}, "per": {}, "each": {}, "every": {}, "all": {}, "any": {},
	"some": {}, "so": {}, "then": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "also": {}, "more": {}, "less": {},
	"very": {}, "new": {}, "existing": {}, "current": {},
}

// loadUnits mark a number as an expected-load hint when it precedes one.
var loadUnits = map[string]struct{}{
	"users": {}, "requests": {}, "jobs": {}, "orders": {}, "tickets": {},
	"transactions": {}, "records": {}, "items": {}, "documents": {},
	"invoices": {}, "events": {},
}

// maxTargetTokens bounds how many tokens follow a verb into its operation.
const maxTargetTokens = 4

// Parse extracts operations and entities from text. The context is accepted
// for interface symmetry with the other stage collaborators; parsing is pure
// computation and does not block.
func (p *Parser) Parse(_ context.Context, text string, profile Profile) (*ParsedIntent, error) {
	objective := strings.TrimSpace(text)
	if objective == "" {
		return nil, fmt.Errorf("intent text is empty")
	}

	tokens := tokenize(objective)

	parsed := &ParsedIntent{
		Objective:  objective,
		Operations: extractOperations(tokens),
		Entities:   extractEntities(tokens),
		Profile:    profile,
	}

	if parsed.Profile.ExpectedLoad == 0 {
		if hint, ok := loadHint(tokens); ok {
			parsed.Profile.ExpectedLoad = hint
		}
	}

	p.logger.Debug("parsed intent",
		zap.Int("operations", len(parsed.Operations)),
		zap.Int("entities", len(parsed.Entities)),
		zap.Float64("expected_load", parsed.Profile.ExpectedLoad))

	return parsed, nil
}

// tokenize lowercases text and splits it on any non-alphanumeric rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		}
		return true
	})
}

// extractOperations finds each action verb and attaches the tokens that follow
// it as the operation target. Articles inside the target are skipped; any
// other stopword or a second verb ends the target.
func extractOperations(tokens []string) []string {
	var ops []string
	for i, tok := range tokens {
		if _, ok := actionVerbs[tok]; !ok {
			continue
		}

		var target []string
		for j := i + 1; j < len(tokens) && len(target) < maxTargetTokens; j++ {
			next := tokens[j]
			if _, ok := articles[next]; ok {
				continue
			}
			if _, ok := actionVerbs[next]; ok {
				break
			}
			if _, ok := stopwords[next]; ok {
				break
			}
			if isNumber(next) {
				break
			}
			target = append(target, next)
		}

		op := tok
		if len(target) > 0 {
			op = tok + " " + strings.Join(target, " ")
		}
		ops = append(ops, op)
	}
	return dedupe(ops)
}

// extractEntities returns the content words: not verbs, not stopwords, not
// bare numbers, longer than two runes. Order of first appearance is kept.
func extractEntities(tokens []string) []string {
	var entities []string
	for _, tok := range tokens {
		if len(tok) <= 2 {
			continue
		}
		if _, ok := actionVerbs[tok]; ok {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if isNumber(tok) {
			continue
		}
		entities = append(entities, tok)
	}
	return dedupe(entities)
}

// loadHint finds the first "<number> <unit>" pair, e.g. "5000 invoices".
func loadHint(tokens []string) (float64, bool) {
	for i := 0; i+1 < len(tokens); i++ {
		n, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil || n <= 0 {
			continue
		}
		if _, ok := loadUnits[tokens[i+1]]; ok {
			return n, true
		}
	}
	return 0, false
}

func isNumber(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
