package wake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_ExactPhrase(t *testing.T) {
	res := Evaluate("hey jacq", []string{"hey jacq"}, 2)

	assert.True(t, res.Matched)
	assert.Equal(t, "hey jacq", res.Phrase)
	assert.Equal(t, 0, res.Distance)
}

func TestEvaluate_CloseMatch(t *testing.T) {
	// Truncated interim fragment: "jac" is one insertion from "jacq".
	res := Evaluate("please hey jac", []string{"hey jacq"}, 2)

	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Distance)
}

func TestEvaluate_NoMatch(t *testing.T) {
	res := Evaluate("completely unrelated sentence", []string{"hey jacq"}, 2)

	assert.False(t, res.Matched)
	assert.Empty(t, res.Phrase)
}

func TestEvaluate_SuffixAlignment(t *testing.T) {
	// The full five-token window is far from the phrase, but the last-2
	// suffix lines up exactly.
	res := Evaluate("open the door hey jacq", []string{"hey jacq"}, 2)

	assert.True(t, res.Matched)
	assert.Equal(t, 0, res.Distance)
}

func TestEvaluate_PunctuationAndCase(t *testing.T) {
	res := Evaluate("  Hey, Jacq!  ", []string{"hey jacq"}, 2)

	assert.True(t, res.Matched)
	assert.Equal(t, 0, res.Distance)
}

func TestEvaluate_PhraseOutsideTrailingWindow(t *testing.T) {
	// The phrase was said too long ago: the trailing 40 runes no longer
	// contain it.
	res := Evaluate("hey jacq please open the curtains and play some jazz music now",
		[]string{"hey jacq"}, 2)

	assert.False(t, res.Matched)
}

func TestEvaluate_PhraseAtWindowTail(t *testing.T) {
	res := Evaluate("blah blah blah blah blah blah hey jacq", []string{"hey jacq"}, 2)

	assert.True(t, res.Matched)
	assert.Equal(t, 0, res.Distance)
}

func TestEvaluate_FirstQualifyingPhraseWins(t *testing.T) {
	res := Evaluate("ok computer", []string{"hey jacq", "ok computer"}, 1)

	assert.True(t, res.Matched)
	assert.Equal(t, "ok computer", res.Phrase)
}

func TestEvaluate_MaxDistanceBoundary(t *testing.T) {
	// "hey jaq" is distance 1, "hey jq" is distance 2.
	assert.True(t, Evaluate("hey jaq", []string{"hey jacq"}, 1).Matched)
	assert.True(t, Evaluate("hey jq", []string{"hey jacq"}, 2).Matched)
	assert.False(t, Evaluate("hey jq", []string{"hey jacq"}, 1).Matched)
}

func TestEvaluate_DegenerateInputs(t *testing.T) {
	assert.False(t, Evaluate("", []string{"hey jacq"}, 2).Matched)
	assert.False(t, Evaluate("   ...   ", []string{"hey jacq"}, 2).Matched)
	assert.False(t, Evaluate("hey jacq", nil, 2).Matched)
	assert.False(t, Evaluate("hey jacq", []string{"", "  "}, 2).Matched)
	assert.False(t, Evaluate("hey jacq", []string{"hey jacq"}, -1).Matched)
}

func TestWindowOf_TokenLimit(t *testing.T) {
	tokens := windowOf("one two three four five six seven")

	assert.Equal(t, []string{"three", "four", "five", "six", "seven"}, tokens)
}

func TestWindowOf_StripsNonAlphanumeric(t *testing.T) {
	tokens := windowOf("well -- hey... jacq?! 123")

	assert.Equal(t, []string{"well", "hey", "jacq", "123"}, tokens)
}

func TestCandidatesOf_SkipsDuplicates(t *testing.T) {
	// A two-token window: the full window already is the last-2 suffix.
	assert.Equal(t, []string{"hey jacq"}, candidatesOf([]string{"hey", "jacq"}))

	// Three tokens: full window covers the last-3 suffix.
	assert.Equal(t,
		[]string{"one hey jacq", "hey jacq"},
		candidatesOf([]string{"one", "hey", "jacq"}))

	// Five tokens: all three candidates, full window first.
	assert.Equal(t,
		[]string{"a b c d e", "d e", "c d e"},
		candidatesOf([]string{"a", "b", "c", "d", "e"}))
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("", ""))
	assert.Equal(t, 3, editDistance("", "abc"))
	assert.Equal(t, 3, editDistance("abc", ""))
	assert.Equal(t, 0, editDistance("hey jacq", "hey jacq"))
	assert.Equal(t, 3, editDistance("kitten", "sitting"))
	assert.Equal(t, 1, editDistance("hey jac", "hey jacq"))
	assert.Equal(t, 1, editDistance("héy", "hey"))
}
