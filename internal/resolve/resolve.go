/*
Package resolve maps free-text company mentions onto canonical reference
records using normalization, lexical variant generation, and token-order-
insensitive fuzzy scoring.
*/
package resolve

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"growthwatch/internal/refdata"
)

// DefaultThreshold is the minimum similarity score (0-100) for a transcript
// mention to be accepted as a match. Empirically tuned, not principled.
const DefaultThreshold = 80

// DefaultTitleThreshold is the stricter score used by the title pre-filter,
// where candidates are noisier.
const DefaultTitleThreshold = 85

// substitutions are applied in both directions when generating lexical
// variants of a normalized name.
var substitutions = [][2]string{
	{"limited", "ltd"},
	{"corporation", "corp"},
	{"private", "pvt"},
	{"incorporated", "inc"},
}

// DefaultSuffixTokens is the closed set of corporate suffix tokens stripped
// from the end of a name when generating variants.
var DefaultSuffixTokens = []string{
	"limited", "ltd", "corporation", "corp", "private", "pvt", "india", "group",
}

// Resolver scores free-text names against a reference index.
type Resolver struct {
	index        *refdata.Index
	threshold    int
	suffixTokens []string
}

// Option adjusts resolver construction.
type Option func(*Resolver)

// WithThreshold overrides the acceptance threshold.
func WithThreshold(threshold int) Option {
	return func(r *Resolver) { r.threshold = threshold }
}

// WithSuffixTokens overrides the strippable corporate suffix token set.
func WithSuffixTokens(tokens []string) Option {
	return func(r *Resolver) { r.suffixTokens = tokens }
}

// New builds a resolver over the given index.
func New(index *refdata.Index, opts ...Option) *Resolver {
	r := &Resolver{
		index:        index,
		threshold:    DefaultThreshold,
		suffixTokens: DefaultSuffixTokens,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Variants generates the candidate set of lexical variants for a normalized
// key: suffix/synonym substitutions plus progressive stripping of trailing
// corporate suffix tokens. The input key is always included; variants are
// deduplicated.
func (r *Resolver) Variants(baseKey string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(baseKey)

	for _, sub := range substitutions {
		for _, v := range []string{
			replaceToken(baseKey, sub[0], sub[1]),
			replaceToken(baseKey, sub[1], sub[0]),
		} {
			add(v)
		}
	}

	// Strip trailing suffix tokens one at a time so "x industries pvt ltd"
	// also yields "x industries pvt" and "x industries".
	tokens := strings.Fields(baseKey)
	for len(tokens) > 1 && r.isSuffixToken(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
		add(strings.Join(tokens, " "))
	}

	return out
}

func (r *Resolver) isSuffixToken(token string) bool {
	for _, s := range r.suffixTokens {
		if token == s {
			return true
		}
	}
	return false
}

func replaceToken(s, from, to string) string {
	tokens := strings.Fields(s)
	changed := false
	for i, tok := range tokens {
		if tok == from {
			tokens[i] = to
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(tokens, " ")
}

// Resolve maps a free-text company name to a reference record. Lexical
// variants are tried as exact index hits first; the fuzzy match decision is
// then anchored on the single normalized base form, scored with a
// token-order-insensitive ratio against every index key. Empty input after
// normalization yields no match; no match is a normal outcome, not an error.
func (r *Resolver) Resolve(name string) (refdata.Record, bool) {
	baseKey := refdata.NormalizeKey(name)
	if baseKey == "" {
		return refdata.Record{}, false
	}

	for _, variant := range r.Variants(baseKey) {
		if rec, ok := r.index.Get(variant); ok {
			return rec, true
		}
	}

	bestKey, bestScore := "", -1
	for _, key := range r.index.Keys() {
		score := fuzzy.TokenSortRatio(baseKey, key)
		if score > bestScore {
			bestKey, bestScore = key, score
		}
	}
	if bestScore < r.threshold {
		return refdata.Record{}, false
	}
	rec, ok := r.index.Get(bestKey)
	return rec, ok
}

// ResolveAll resolves a batch of free-text names and deduplicates the final
// matches by ISIN. Records without an ISIN are never deduplicated against
// each other and are each kept.
func (r *Resolver) ResolveAll(names []string) []refdata.Record {
	seenISIN := map[string]bool{}
	var out []refdata.Record
	for _, name := range names {
		rec, ok := r.Resolve(name)
		if !ok {
			continue
		}
		if rec.ISIN != "" {
			if seenISIN[rec.ISIN] {
				continue
			}
			seenISIN[rec.ISIN] = true
		}
		out = append(out, rec)
	}
	return out
}
