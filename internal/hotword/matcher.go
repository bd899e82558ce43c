// Package hotword decides whether a transcribed utterance contains one of
// the configured interrupt keywords and, when armed, turns that decision
// into an interrupt trigger.
//
// Matching is tolerant of recognition noise: a keyword counts as spoken when
// a transcript token matches it exactly, shares a Double Metaphone code with
// it and scores above the phonetic threshold on Jaro-Winkler similarity, or
// scores above the stricter fuzzy threshold on similarity alone.
package hotword

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// token that phonetically aligns with a keyword. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when a
// token shares no phonetic code with the keyword. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// keyword is a pre-encoded interrupt word.
type keyword struct {
	text  string
	codes map[string]struct{}
}

// Matcher tests transcripts against a closed keyword list. Read-only after
// construction, safe for concurrent use.
type Matcher struct {
	keywords          []keyword
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher builds a Matcher for the given keywords. Keywords are matched
// case-insensitively; empty entries are dropped.
func NewMatcher(keywords []string, opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		m.keywords = append(m.keywords, keyword{text: k, codes: codesFor(k)})
	}
	return m
}

// Match reports whether transcript contains any configured keyword, along
// with the keyword that matched.
func (m *Matcher) Match(transcript string) (matched string, ok bool) {
	tokens := strings.Fields(strings.ToLower(transcript))
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,!?;:\"'")
		if tok == "" {
			continue
		}
		for _, kw := range m.keywords {
			if m.tokenMatches(tok, kw) {
				return kw.text, true
			}
		}
	}
	return "", false
}

func (m *Matcher) tokenMatches(tok string, kw keyword) bool {
	if tok == kw.text {
		return true
	}
	score := matchr.JaroWinkler(tok, kw.text, false)
	if codesOverlap(codesFor(tok), kw.codes) {
		return score >= m.phoneticThreshold
	}
	return score >= m.fuzzyThreshold
}

// codesFor returns the Double Metaphone code set of one word. Empty codes
// are excluded.
func codesFor(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
