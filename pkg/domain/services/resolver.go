package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/macho715/wh3/pkg/domain/entities"
)

var (
	// ErrUnknownTarget is returned when a rule targets an id outside the vocabulary
	ErrUnknownTarget = errors.New("rule target not in vocabulary")
	// ErrInvalidPattern is returned when a rule pattern does not compile
	ErrInvalidPattern = errors.New("invalid rule pattern")
)

type compiledRule struct {
	rule   entities.ResolutionRule
	re     *regexp.Regexp
	target entities.CanonicalLocation
}

// Resolver maps raw location labels onto a closed vocabulary using an ordered
// list of rules. The first matching rule wins; labels no rule matches resolve
// to the unmatched sentinel. A Resolver is immutable and safe for concurrent use.
type Resolver struct {
	vocab *Vocabulary
	rules []compiledRule
}

// NewResolver compiles rules against vocab. Patterns are matched case-insensitively
// against the normalized label.
func NewResolver(vocab *Vocabulary, rules []entities.ResolutionRule) (*Resolver, error) {
	if vocab == nil {
		return nil, fmt.Errorf("vocabulary cannot be nil")
	}

	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		target, ok := vocab.Lookup(rule.Target)
		if !ok {
			return nil, fmt.Errorf("rule %d (%q): %w: %s", i, rule.Pattern, ErrUnknownTarget, rule.Target)
		}
		if strings.TrimSpace(rule.Pattern) == "" {
			return nil, fmt.Errorf("rule %d: %w: empty pattern", i, ErrInvalidPattern)
		}
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w: %v", i, rule.Pattern, ErrInvalidPattern, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re, target: target})
	}

	return &Resolver{vocab: vocab, rules: compiled}, nil
}

// NewDefaultResolver returns a resolver over the default vocabulary and rules
func NewDefaultResolver() *Resolver {
	r, err := NewResolver(DefaultVocabulary(), DefaultRules())
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the canonical location for raw. It never fails.
func (r *Resolver) Resolve(raw string) entities.CanonicalLocation {
	loc, _ := r.ResolveWithRule(raw)
	return loc
}

// ResolveWithRule is Resolve plus the index of the rule that matched, or -1
// when the label fell through to the sentinel.
func (r *Resolver) ResolveWithRule(raw string) (entities.CanonicalLocation, int) {
	label := NormalizeLabel(raw)
	if label == "" {
		return r.vocab.Unmatched(), -1
	}

	for i, cr := range r.rules {
		if cr.re.MatchString(label) {
			return cr.target, i
		}
	}
	return r.vocab.Unmatched(), -1
}

// Vocabulary returns the vocabulary the resolver was built with
func (r *Resolver) Vocabulary() *Vocabulary {
	return r.vocab
}

// Rules returns the rule list in evaluation order
func (r *Resolver) Rules() []entities.ResolutionRule {
	out := make([]entities.ResolutionRule, len(r.rules))
	for i, cr := range r.rules {
		out[i] = cr.rule
	}
	return out
}

// NormalizeLabel applies NFKC, turns underscores into spaces and collapses
// whitespace runs to a single space.
func NormalizeLabel(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.ReplaceAll(s, "_", " ")

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// DefaultRules returns the built-in rule table. Specific names come before
// codes, site tokens and finally generic keywords.
func DefaultRules() []entities.ResolutionRule {
	return []entities.ResolutionRule{
		{Pattern: `^DSV\s*Indoor\b`, Target: "DSV Indoor"},
		{Pattern: `^DSV\s*Outdoor\b`, Target: "DSV Outdoor"},
		{Pattern: `^DSV\s*Al\s*Markaz\b`, Target: "DSV Al Markaz"},
		{Pattern: `^DSV\s*MZP\b`, Target: "DSV MZP"},
		{Pattern: `^DSV\s*Kizad\b`, Target: "DSV Kizad"},
		{Pattern: `^DSV\s*(WH|Warehouse)\b`, Target: "DSV WH"},
		{Pattern: `^Hauler\s*DG`, Target: "Hauler DG Storage"},
		{Pattern: `^Hauler\s*Indoor\b`, Target: "DSV Indoor"},
		{Pattern: `^DHL\b`, Target: "DHL WH"},
		{Pattern: `^AAA\b`, Target: "AAA Storage"},
		{Pattern: `^ZENER\b`, Target: "ZENER WH"},
		{Pattern: `^Vijay\b`, Target: "Vijay Tanks"},
		{Pattern: `^Shifting\b`, Target: "Shifting"},
		{Pattern: `^M44\b`, Target: "DSV Indoor"},
		{Pattern: `^M1\b`, Target: "DSV Al Markaz"},
		{Pattern: `^OUT\b`, Target: "DSV Outdoor"},
		{Pattern: `^MOSB\b|\bbarge\b`, Target: "MOSB"},
		{Pattern: `^MZP\b`, Target: "DSV MZP"},
		{Pattern: `\bAGI\b`, Target: "AGI"},
		{Pattern: `\bDAS\b`, Target: "DAS"},
		{Pattern: `\bMIR\b`, Target: "MIR"},
		{Pattern: `\bSHU\b`, Target: "SHU"},
		{Pattern: `\bIndoor\b`, Target: "DSV Indoor"},
		{Pattern: `\bOutdoor\b`, Target: "DSV Outdoor"},
		{Pattern: `\bMarkaz\b`, Target: "DSV Al Markaz"},
	}
}
