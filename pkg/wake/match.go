// Package wake provides fuzzy wake-phrase matching over transcript
// fragments using edit distance on a trailing token window.
package wake

import (
	"strings"
	"unicode"
)

const (
	// windowRunes bounds matching cost and focuses on the most recent
	// speech; wake phrases are short and always at the tail.
	windowRunes = 40
	// windowTokens is how many trailing words form the working window.
	windowTokens = 5
)

// MatchResult reports whether a fragment matched a wake phrase.
type MatchResult struct {
	Matched  bool
	Phrase   string
	Distance int
}

// Evaluate scores fragment against the given phrases and returns the first
// qualifying hit with edit distance <= maxDistance. Candidates are, in
// order: the full trailing token window, the last-2-token suffix, and the
// last-3-token suffix; the suffixes guard against the window boundary
// truncating or padding the phrase. Phrases are the outer loop. Pure
// function, no side effects.
func Evaluate(fragment string, phrases []string, maxDistance int) MatchResult {
	if maxDistance < 0 {
		return MatchResult{}
	}

	tokens := windowOf(fragment)
	if len(tokens) == 0 {
		return MatchResult{}
	}

	candidates := candidatesOf(tokens)
	for _, phrase := range phrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p == "" {
			continue
		}
		for _, cand := range candidates {
			if dist := editDistance(cand, p); dist <= maxDistance {
				return MatchResult{Matched: true, Phrase: phrase, Distance: dist}
			}
		}
	}

	return MatchResult{}
}

// windowOf normalizes a fragment and returns its trailing token window:
// lowercase, trim, keep the last windowRunes runes, split on
// non-alphanumeric runs, keep the last windowTokens words.
func windowOf(fragment string) []string {
	norm := strings.ToLower(strings.TrimSpace(fragment))
	if runes := []rune(norm); len(runes) > windowRunes {
		norm = string(runes[len(runes)-windowRunes:])
	}

	tokens := strings.FieldsFunc(norm, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) > windowTokens {
		tokens = tokens[len(tokens)-windowTokens:]
	}
	return tokens
}

// candidatesOf builds the candidate strings for one window, skipping
// duplicates when the window itself is only 2 or 3 tokens long.
func candidatesOf(tokens []string) []string {
	full := strings.Join(tokens, " ")
	candidates := []string{full}
	for _, n := range []int{2, 3} {
		if len(tokens) <= n {
			continue
		}
		candidates = append(candidates, strings.Join(tokens[len(tokens)-n:], " "))
	}
	return candidates
}

// editDistance computes the unit-cost Levenshtein distance between a and b
// using two rolling rows: O(len(a)*len(b)) time, O(min) space.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
