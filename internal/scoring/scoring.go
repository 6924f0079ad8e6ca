// Package scoring compares extracted text with a caller-supplied reference transcription.
package scoring

import (
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// Match holds error rates of an extraction against the expected text. Rates are
// in [0, +inf); MatchScore is 1-CER clamped to [0, 1].
type Match struct {
	ExpectedText string  `json:"expected_text"`
	CER          float64 `json:"cer"`
	WER          float64 `json:"wer"`
	MatchScore   float64 `json:"match_score"`
}

// Compare scores extracted against expected after normalising whitespace, case
// and markdown decoration. An empty expected text yields nil.
func Compare(extracted, expected string) *Match {
	ref := Normalize(expected)
	if ref == "" {
		return nil
	}
	hyp := Normalize(extracted)

	cer := CharacterErrorRate(ref, hyp)
	return &Match{
		ExpectedText: expected,
		CER:          cer,
		WER:          WordErrorRate(ref, hyp),
		MatchScore:   clamp01(1 - cer),
	}
}

// CharacterErrorRate is the edit distance between the strings divided by the reference length in runes.
func CharacterErrorRate(reference, hypothesis string) float64 {
	refLen := len([]rune(reference))
	if refLen == 0 {
		if hypothesis == "" {
			return 0
		}
		return 1
	}
	return float64(levenshtein.Distance(reference, hypothesis)) / float64(refLen)
}

// WordErrorRate is the word-level edit distance divided by the number of reference words.
func WordErrorRate(reference, hypothesis string) float64 {
	refWords := strings.Fields(reference)
	if len(refWords) == 0 {
		if strings.TrimSpace(hypothesis) == "" {
			return 0
		}
		return 1
	}
	rate, _ := wer.WER(refWords, strings.Fields(hypothesis))
	return rate
}

// Normalize lowercases, strips markdown emphasis/heading/table markers and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '#', '*', '_', '`', '|', '>':
			return ' '
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
