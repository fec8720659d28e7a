package resolve

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"growthwatch/internal/refdata"
)

// financialStopWords are dropped from title candidates before scoring so
// "reliance industries stock" still anchors on "reliance".
var financialStopWords = map[string]bool{
	"earnings": true, "report": true, "call": true, "guidance": true,
	"analysis": true, "stock": true, "stocks": true, "market": true,
	"quarter": true, "investing": true, "finance": true, "inc": true,
	"company": true, "corporation": true, "ltd": true, "limited": true,
	"industries": true,
}

const maxCandidateTokens = 5

// titleDelimiters split a video title into phrase segments.
const titleDelimiters = "|:;,?!–—-"

// TitleCandidates extracts noun-phrase-like candidates from a video title:
// the title is split on punctuation into segments, and each segment
// contributes its token windows of up to five words, with financial stop
// words removed. Candidates shorter than three characters are dropped.
func TitleCandidates(title string) []string {
	segments := strings.FieldsFunc(title, func(r rune) bool {
		return strings.ContainsRune(titleDelimiters, r)
	})

	seen := map[string]bool{}
	var candidates []string
	for _, segment := range segments {
		tokens := strings.Fields(strings.ToLower(strings.TrimSpace(segment)))
		for width := len(tokens); width >= 1; width-- {
			if width > maxCandidateTokens {
				continue
			}
			for start := 0; start+width <= len(tokens); start++ {
				window := tokens[start : start+width]
				var kept []string
				for _, tok := range window {
					if !financialStopWords[tok] {
						kept = append(kept, tok)
					}
				}
				candidate := strings.Join(kept, " ")
				if len(candidate) < 3 || seen[candidate] {
					continue
				}
				seen[candidate] = true
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates
}

// ResolveTitle runs the cheap title-level pre-filter: every candidate
// extracted from the title is fuzzy-scored against the index, and accepted
// matches are deduplicated by ISIN. An empty result means the video mentions
// no known company and is not worth a transcript.
func (r *Resolver) ResolveTitle(title string, threshold int) []refdata.Record {
	if threshold <= 0 {
		threshold = DefaultTitleThreshold
	}

	seenISIN := map[string]bool{}
	seenName := map[string]bool{}
	var out []refdata.Record
	for _, candidate := range TitleCandidates(title) {
		key := refdata.NormalizeKey(candidate)
		if key == "" {
			continue
		}

		bestKey, bestScore := "", -1
		for _, indexKey := range r.index.Keys() {
			score := fuzzy.TokenSetRatio(key, indexKey)
			if score > bestScore {
				bestKey, bestScore = indexKey, score
			}
		}
		if bestScore < threshold {
			continue
		}
		rec, ok := r.index.Get(bestKey)
		if !ok {
			continue
		}
		if rec.ISIN != "" {
			if seenISIN[rec.ISIN] {
				continue
			}
			seenISIN[rec.ISIN] = true
		} else {
			if seenName[rec.CompanyName] {
				continue
			}
			seenName[rec.CompanyName] = true
		}
		out = append(out, rec)
	}
	return out
}
